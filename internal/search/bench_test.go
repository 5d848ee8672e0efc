package search

import (
	"fmt"
	"testing"

	"github.com/hyperjump/molegis/internal/ranking"
)

func BenchmarkFuse(b *testing.B) {
	kw := make(map[string]float64)
	sem := make(map[string]float64)
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("chunk-%d", i)
		kw[id] = float64(i) / 100
		sem[id] = float64(100-i) / 100
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Fuse(kw, sem, 0.4, 0.6)
	}
}

func BenchmarkRerank(b *testing.B) {
	r := ranking.NewRanker(nil)
	q := ranking.Analyze(`HB 1366 "sales tax" exemption -gasoline`)
	base := make([]ranking.Candidate, 200)
	for i := range base {
		base[i] = ranking.Candidate{
			ChunkID:    fmt.Sprintf("chunk-%d", i),
			Score:      float64(i%50) / 50,
			Content:    "This act exempts certain food items from state and local sales tax.",
			BillNumber: fmt.Sprintf("HB%d", 1300+i%100),
		}
	}
	candidates := make([]ranking.Candidate, len(base))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		copy(candidates, base)
		_ = r.Rerank(q, candidates)
	}
}
