package fetch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/hyperjump/molegis/internal/docid"
	"go.uber.org/zap"
)

// BlobCache keeps downloaded documents keyed by URL in a badger store so
// re-runs do not hit the network.
type BlobCache struct {
	db *badger.DB
}

type badgerLogger struct {
	l *zap.SugaredLogger
}

func (b badgerLogger) Errorf(msg string, args ...any)   { b.l.Errorf(msg, args...) }
func (b badgerLogger) Warningf(msg string, args ...any) { b.l.Warnf(msg, args...) }
func (b badgerLogger) Infof(msg string, args ...any)    { b.l.Debugf(msg, args...) }
func (b badgerLogger) Debugf(msg string, args ...any)   { b.l.Debugf(msg, args...) }

// OpenBlobCache opens the cache at dir, creating it if needed. An empty dir
// opens an in-memory cache.
func OpenBlobCache(dir string, logger *zap.Logger) (*BlobCache, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create blob cache directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	if logger != nil {
		opts.Logger = badgerLogger{l: logger.Named("badger").Sugar()}
	} else {
		opts.Logger = nil
	}
	// PDFs are already compressed.
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob cache: %w", err)
	}
	return &BlobCache{db: db}, nil
}

func blobKey(url string) []byte {
	return []byte(docid.Key(url))
}

// Get returns the cached document for url, or ok=false.
func (c *BlobCache) Get(url string) (*Response, bool, error) {
	var resp *Response
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(url))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			r, err := decodeBlob(val)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}

// Put stores a document for url.
func (c *BlobCache) Put(url string, resp *Response) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blobKey(url), encodeBlob(resp))
	})
}

// Delete removes the document for url.
func (c *BlobCache) Delete(url string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(blobKey(url))
	})
}

// Close closes the underlying store.
func (c *BlobCache) Close() error {
	return c.db.Close()
}

// Blob layout: uint16 content-type length, content type, content.
func encodeBlob(r *Response) []byte {
	ct := r.ContentType
	if len(ct) > 0xFFFF {
		ct = ct[:0xFFFF]
	}
	out := make([]byte, 2+len(ct)+len(r.Content))
	binary.BigEndian.PutUint16(out, uint16(len(ct)))
	copy(out[2:], ct)
	copy(out[2+len(ct):], r.Content)
	return out
}

func decodeBlob(val []byte) (*Response, error) {
	if len(val) < 2 {
		return nil, fmt.Errorf("corrupt blob: %d bytes", len(val))
	}
	n := int(binary.BigEndian.Uint16(val))
	if len(val) < 2+n {
		return nil, fmt.Errorf("corrupt blob: content type length %d", n)
	}
	content := make([]byte, len(val)-2-n)
	copy(content, val[2+n:])
	return &Response{ContentType: string(val[2 : 2+n]), Content: content}, nil
}
