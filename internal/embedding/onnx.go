//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	onnxInputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	onnxOutputNames = []string{"output"}
)

// ONNXEmbedder runs a local sentence-embedding model with ONNX Runtime. Texts are
// tokenized into one (batch, maxTokens) tensor per run, so a batch of chunks
// costs a single inference. It requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.DynamicAdvancedSession
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer

	mu sync.Mutex
}

// NewONNXEmbedder loads the model at modelPath. The runtime environment is
// initialized on first use.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("embedding.model_path is required for the onnx provider")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("embedding.dimensions must be positive, got %d", dimensions)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, onnxInputNames, onnxOutputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &ONNXEmbedder{
		session:    session,
		dimensions: dimensions,
		maxTokens:  normalizeMaxTokens(maxTokens),
		tokenizer:  HashTokenizer{},
	}, nil
}

// Embed embeds a single text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in groups of at most maxONNXBatch per inference.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxONNXBatch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+maxONNXBatch, len(texts))
		vecs, err := e.run(texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *ONNXEmbedder) run(texts []string) ([][]float32, error) {
	batch := packBatch(e.tokenizer, texts, e.maxTokens)
	shape := ort.NewShape(int64(len(texts)), int64(e.maxTokens))

	inputIDs, err := ort.NewTensor(shape, batch.inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer inputIDs.Destroy()
	attentionMask, err := ort.NewTensor(shape, batch.attentionMask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer attentionMask.Destroy()
	tokenTypeIDs, err := ort.NewTensor(shape, batch.tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	defer tokenTypeIDs.Destroy()
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(len(texts)), int64(e.dimensions)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("ONNX embedder is closed")
	}
	err = e.session.Run(
		[]ort.ArbitraryTensor{inputIDs, attentionMask, tokenTypeIDs},
		[]ort.ArbitraryTensor{output},
	)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return splitOutput(output.GetData(), len(texts), e.dimensions)
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}
