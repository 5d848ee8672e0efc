package embedding

import (
	"math"
	"reflect"
	"testing"
)

func TestPackBatch(t *testing.T) {
	tok := HashTokenizer{}
	texts := []string{"motor vehicle registration", "", "school funding formula for districts"}
	b := packBatch(tok, texts, 8)

	if len(b.inputIDs) != 3*8 || len(b.attentionMask) != 3*8 || len(b.tokenTypeIDs) != 3*8 {
		t.Fatalf("lengths = %d/%d/%d, want %d", len(b.inputIDs), len(b.attentionMask), len(b.tokenTypeIDs), 3*8)
	}
	for i, text := range texts {
		ids, mask, _ := tok.Tokenize(text, 8)
		if got := b.inputIDs[i*8 : (i+1)*8]; !reflect.DeepEqual(got, ids) {
			t.Errorf("row %d input_ids = %v, want %v", i, got, ids)
		}
		if got := b.attentionMask[i*8 : (i+1)*8]; !reflect.DeepEqual(got, mask) {
			t.Errorf("row %d attention_mask = %v, want %v", i, got, mask)
		}
	}
}

func TestPackBatchDefaultWidth(t *testing.T) {
	b := packBatch(HashTokenizer{}, []string{"a"}, 0)
	if len(b.inputIDs) != 256 {
		t.Errorf("len = %d, want 256", len(b.inputIDs))
	}
}

func TestSplitOutput(t *testing.T) {
	data := []float32{3, 4, 0, 0, 5, 0}
	out, err := splitOutput(data, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float32{{0.6, 0.8}, {0, 0}, {1, 0}}
	for i := range want {
		for j := range want[i] {
			if math.Abs(float64(out[i][j]-want[i][j])) > 1e-6 {
				t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
				break
			}
		}
	}

	data[4] = 99
	if out[2][0] != 1 {
		t.Error("output rows should not alias the tensor data")
	}
}

func TestSplitOutputShortData(t *testing.T) {
	if _, err := splitOutput(make([]float32, 5), 2, 3); err == nil {
		t.Error("expected error for short output")
	}
}
