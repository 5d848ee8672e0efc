package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "molegis.db")
	blobs := filepath.Join(dir, "blobs")
	nested := filepath.Join(blobs, "000")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	for path, content := range map[string]string{
		db:                            "hello",
		filepath.Join(blobs, "a.vlog"): "ab",
		filepath.Join(nested, "b.sst"): "c",
	} {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{db}, 5},
		{"nested directory", []string{blobs}, 3},
		{"file and directory", []string{db, blobs}, 8},
		{"missing path skipped", []string{db, filepath.Join(dir, "nonexistent"), blobs}, 8},
		{"empty path skipped", []string{"", db}, 5},
		{"nothing", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DiskUsageBytes(%v) = %d, want %d", tt.paths, got, tt.want)
			}
		})
	}
}
