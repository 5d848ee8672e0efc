package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hyperjump/molegis/internal/chunking"
	"github.com/hyperjump/molegis/internal/config"
	"github.com/hyperjump/molegis/internal/embedding"
	"github.com/hyperjump/molegis/internal/indexer"
	"github.com/hyperjump/molegis/internal/keyword"
	"github.com/hyperjump/molegis/internal/metrics"
	"github.com/hyperjump/molegis/internal/ranking"
	"github.com/hyperjump/molegis/internal/search"
	"github.com/hyperjump/molegis/internal/storage"
	"github.com/hyperjump/molegis/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Config       *config.Config
	Storage      storage.Storage
	Embedder     embedding.Embedder
	VectorIndex  *vector.MemoryIndex
	KeywordIndex *keyword.BleveIndex
	Engine       *search.Engine
	Indexer      *indexer.Indexer
	Metrics      *metrics.Pipeline
	logger       *zap.Logger
	// ready is set once indexes are loaded; only then is the vector index saved on Close.
	ready bool
}

// Close saves the vector index and releases everything.
func (c *Components) Close() {
	if c.ready && c.Config.Storage.VectorIndexPath != "" {
		if err := c.VectorIndex.Save(c.Config.Storage.VectorIndexPath); err != nil {
			c.logger.Warn("vector index save failed",
				zap.String("path", c.Config.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Config: cfg, Metrics: metrics.NewPipeline(), logger: logger}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	c.Embedder, err = embedding.New(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	c.VectorIndex, err = vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	c.KeywordIndex, err = keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	chunker := chunking.NewChunker(cfg.Chunking.TargetTokens, cfg.Chunking.OverlapTokens, tokenCounter(cfg.Chunking.Encoding, logger))

	c.Indexer = indexer.NewIndexer(store, c.Embedder, c.VectorIndex, chunker,
		indexer.WithLogger(logger),
		indexer.WithKeywordIndex(c.KeywordIndex))
	var engineOpts []search.EngineOption
	if cfg.Search.RerankOrDefault() {
		engineOpts = append(engineOpts, search.WithRanker(ranking.NewRanker(nil)))
	}
	c.Engine = search.NewEngine(store, c.Embedder, c.VectorIndex, c.KeywordIndex, &cfg.Search, logger, engineOpts...)

	if err := c.loadIndexes(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.ready = true
	return c, nil
}

// loadIndexes loads the saved vector index, rebuilding it from SQLite when the
// file is missing or was written for other dimensions. An empty keyword index
// is rebuilt too.
func (c *Components) loadIndexes(ctx context.Context) error {
	path := c.Config.Storage.VectorIndexPath
	rebuildVectors := path == ""
	if path != "" {
		err := c.VectorIndex.Load(path)
		switch {
		case err == nil:
			c.logger.Info("vector index loaded", zap.String("path", path), zap.Int("size", c.VectorIndex.Size()))
		case errors.Is(err, os.ErrNotExist):
			rebuildVectors = true
		default:
			c.logger.Warn("vector index unusable, rebuilding", zap.String("path", path), zap.Error(err))
			rebuildVectors = true
		}
	}

	stored, err := c.Storage.CountEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("failed to count embeddings: %w", err)
	}
	if stored == 0 {
		return nil
	}
	docs, err := c.KeywordIndex.DocCount()
	if err != nil {
		return fmt.Errorf("failed to read keyword index: %w", err)
	}
	rebuildKeyword := docs == 0

	if !rebuildVectors && !rebuildKeyword {
		return nil
	}
	if !rebuildVectors {
		err = c.rebuildKeywordOnly(ctx)
	} else {
		_, err = c.Indexer.RebuildIndexes(ctx, rebuildKeyword)
	}
	if err != nil {
		c.logger.Warn("index rebuild incomplete, run embed --force if the embedding dimensions changed", zap.Error(err))
	}
	return nil
}

func (c *Components) rebuildKeywordOnly(ctx context.Context) error {
	kwOnly := indexer.NewIndexer(c.Storage, c.Embedder, nil, nil,
		indexer.WithLogger(c.logger),
		indexer.WithKeywordIndex(c.KeywordIndex))
	_, err := kwOnly.RebuildIndexes(ctx, true)
	return err
}

func tokenCounter(encoding string, logger *zap.Logger) chunking.TokenCounter {
	if encoding == config.EncodingWords {
		return chunking.WordCounter{}
	}
	counter, err := chunking.NewTiktokenCounter(encoding)
	if err != nil {
		logger.Warn("tokenizer unavailable, counting words", zap.String("encoding", encoding), zap.Error(err))
		return chunking.WordCounter{}
	}
	return counter
}
