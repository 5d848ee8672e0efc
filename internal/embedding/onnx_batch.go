package embedding

import (
	"fmt"

	"github.com/hyperjump/molegis/pkg/utils"
)

// maxONNXBatch caps the rows of one inference so the input tensors stay small
// for long bill texts.
const maxONNXBatch = 32

// tokenBatch holds row-major (rows, maxTokens) model inputs.
type tokenBatch struct {
	inputIDs      []int64
	attentionMask []int64
	tokenTypeIDs  []int64
}

func normalizeMaxTokens(maxTokens int) int {
	if maxTokens <= 2 {
		return 256
	}
	return maxTokens
}

// packBatch tokenizes each text into its own row.
func packBatch(tok Tokenizer, texts []string, maxTokens int) tokenBatch {
	maxTokens = normalizeMaxTokens(maxTokens)
	b := tokenBatch{
		inputIDs:      make([]int64, 0, len(texts)*maxTokens),
		attentionMask: make([]int64, 0, len(texts)*maxTokens),
		tokenTypeIDs:  make([]int64, 0, len(texts)*maxTokens),
	}
	for _, text := range texts {
		ids, mask, types := tok.Tokenize(text, maxTokens)
		b.inputIDs = append(b.inputIDs, ids...)
		b.attentionMask = append(b.attentionMask, mask...)
		b.tokenTypeIDs = append(b.tokenTypeIDs, types...)
	}
	return b
}

// splitOutput cuts a (rows, dims) output tensor into L2-normalized vectors.
func splitOutput(data []float32, rows, dims int) ([][]float32, error) {
	if len(data) < rows*dims {
		return nil, fmt.Errorf("model output has %d values, want %d (%d x %d)", len(data), rows*dims, rows, dims)
	}
	out := make([][]float32, rows)
	for i := range out {
		vec := make([]float32, dims)
		copy(vec, data[i*dims:(i+1)*dims])
		utils.NormalizeL2(vec)
		out[i] = vec
	}
	return out, nil
}
