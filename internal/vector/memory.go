package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/molegis/pkg/utils"
)

// indexMagic prefixes every saved index file.
const indexMagic = "MLVX"

// MemoryIndex is an in-memory vector index using brute-force inner product search.
// Adding an id that is already present replaces its vector.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	slots      map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		slots:      make(map[string]int),
	}, nil
}

// Dimensions returns the vector width the index accepts.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Add stores vectors under the given ids.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	for _, vec := range vectors {
		if len(vec) != m.dimensions {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		if slot, ok := m.slots[id]; ok {
			m.vectors[slot] = vec
			continue
		}
		m.slots[id] = len(m.ids)
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, vec)
	}
	return nil
}

// Search returns the top-k ids by inner product, best first.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), m.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	results := make([]*VectorResult, len(m.ids))
	for i, vec := range m.vectors {
		results[i] = &VectorResult{ID: m.ids[i], Score: InnerProduct(query, vec)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Remove drops the given ids. Unknown ids are ignored.
func (m *MemoryIndex) Remove(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		slot, ok := m.slots[id]
		if !ok {
			continue
		}
		last := len(m.ids) - 1
		if slot != last {
			m.ids[slot] = m.ids[last]
			m.vectors[slot] = m.vectors[last]
			m.slots[m.ids[slot]] = slot
		}
		m.ids = m.ids[:last]
		m.vectors = m.vectors[:last]
		delete(m.slots, id)
	}
	return nil
}

// Save writes the index to path, creating parent directories.
// Layout: magic, dimensions (u32), count (u32), then per entry id length (u32), id, vector bytes.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	w := bufio.NewWriter(f)
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(m.dimensions))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(m.ids)))
	if _, err := w.WriteString(indexMagic); err != nil {
		f.Close()
		return err
	}
	if _, err := w.Write(hdr[:]); err != nil {
		f.Close()
		return err
	}
	for i, id := range m.ids {
		var n [4]byte
		binary.LittleEndian.PutUint32(n[:], uint32(len(id)))
		if _, err := w.Write(n[:]); err != nil {
			f.Close()
			return err
		}
		if _, err := w.WriteString(id); err != nil {
			f.Close()
			return err
		}
		if _, err := w.Write(utils.Float32sToBytes(m.vectors[i])); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load replaces the index contents with the file at path. A file saved with
// different dimensions returns ErrDimensionMismatch and leaves the index untouched.
func (m *MemoryIndex) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("failed to read index header: %w", err)
	}
	if string(magic) != indexMagic {
		return fmt.Errorf("not a vector index file: %s", path)
	}
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("failed to read index header: %w", err)
	}
	dims := int(binary.LittleEndian.Uint32(hdr[0:4]))
	count := int(binary.LittleEndian.Uint32(hdr[4:8]))
	if dims != m.dimensions {
		return fmt.Errorf("%w: file has %d, expected %d", ErrDimensionMismatch, dims, m.dimensions)
	}

	ids := make([]string, 0, count)
	vectors := make([][]float32, 0, count)
	slots := make(map[string]int, count)
	vecBuf := make([]byte, dims*4)
	for i := 0; i < count; i++ {
		var n [4]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return fmt.Errorf("failed to read entry %d: %w", i, err)
		}
		idBuf := make([]byte, binary.LittleEndian.Uint32(n[:]))
		if _, err := io.ReadFull(r, idBuf); err != nil {
			return fmt.Errorf("failed to read entry %d: %w", i, err)
		}
		if _, err := io.ReadFull(r, vecBuf); err != nil {
			return fmt.Errorf("failed to read entry %d: %w", i, err)
		}
		id := string(idBuf)
		slots[id] = len(ids)
		ids = append(ids, id)
		vectors = append(vectors, utils.BytesToFloat32s(vecBuf))
	}

	m.mu.Lock()
	m.ids, m.vectors, m.slots = ids, vectors, slots
	m.mu.Unlock()
	return nil
}

// Size returns the number of stored vectors.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Close releases the stored vectors.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = nil
	m.vectors = nil
	m.slots = make(map[string]int)
	return nil
}
