package ranking

import "sort"

// Config holds the rerank multipliers.
type Config struct {
	BillNumberMultiplier  float64
	PhraseMatchMultiplier float64
	AllWordsMultiplier    float64
}

// DefaultConfig returns the default multipliers.
func DefaultConfig() *Config {
	return &Config{
		BillNumberMultiplier:  2.0,
		PhraseMatchMultiplier: 1.3,
		AllWordsMultiplier:    1.1,
	}
}

// ApplyDefaults fills any non-positive multiplier.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.BillNumberMultiplier <= 0 {
		c.BillNumberMultiplier = d.BillNumberMultiplier
	}
	if c.PhraseMatchMultiplier <= 0 {
		c.PhraseMatchMultiplier = d.PhraseMatchMultiplier
	}
	if c.AllWordsMultiplier <= 0 {
		c.AllWordsMultiplier = d.AllWordsMultiplier
	}
}

// Ranker applies multipliers to fused candidates and re-sorts them.
type Ranker struct {
	config      *Config
	multipliers []Multiplier
}

// NewRanker creates a ranker. A nil config uses DefaultConfig.
func NewRanker(config *Config) *Ranker {
	if config == nil {
		config = DefaultConfig()
	}
	config.ApplyDefaults()
	return &Ranker{config: config, multipliers: DefaultMultipliers(config)}
}

// WithMultipliers sets custom multipliers.
func (r *Ranker) WithMultipliers(multipliers []Multiplier) *Ranker {
	r.multipliers = multipliers
	return r
}

// Rerank scores every candidate, drops those scored to zero, and sorts by
// score descending. Ties keep their input order.
func (r *Ranker) Rerank(q *AnalyzedQuery, candidates []Candidate) []Candidate {
	out := candidates[:0]
	for _, c := range candidates {
		score := c.Score
		for _, m := range r.multipliers {
			score = m.Multiply(q, &c, score)
			if score == 0 {
				break
			}
		}
		if score == 0 && c.Score > 0 {
			continue
		}
		c.Score = score
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
