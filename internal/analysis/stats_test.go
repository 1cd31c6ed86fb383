package analysis

import (
	"math"
	"testing"
)

func TestPearson(t *testing.T) {
	tests := []struct {
		name   string
		xs, ys []float64
		want   float64
		wantOK bool
	}{
		{
			name:   "perfect positive",
			xs:     []float64{1, 2, 3, 4, 5},
			ys:     []float64{2, 4, 6, 8, 10},
			want:   1,
			wantOK: true,
		},
		{
			name:   "perfect negative",
			xs:     []float64{1, 2, 3, 4, 5},
			ys:     []float64{10, 8, 6, 4, 2},
			want:   -1,
			wantOK: true,
		},
		{
			name:   "zero variance",
			xs:     []float64{3, 3, 3, 3},
			ys:     []float64{1, 2, 3, 4},
			wantOK: false,
		},
		{
			name:   "empty",
			xs:     nil,
			ys:     nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Pearson(tt.xs, tt.ys)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("r = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFisherPValue(t *testing.T) {
	// r=0.5 over 30 samples is comfortably significant, r=0.1 is not.
	if p := fisherPValue(0.5, 30); p >= 0.05 {
		t.Errorf("p(0.5, 30) = %v, want < 0.05", p)
	}
	if p := fisherPValue(0.1, 30); p < 0.05 {
		t.Errorf("p(0.1, 30) = %v, want >= 0.05", p)
	}

	// Sign of r must not matter.
	if p1, p2 := fisherPValue(0.4, 50), fisherPValue(-0.4, 50); math.Abs(p1-p2) > 1e-12 {
		t.Errorf("p(0.4) = %v, p(-0.4) = %v, want equal", p1, p2)
	}

	if p := fisherPValue(0.9, 3); p != 1 {
		t.Errorf("p with n<=3 = %v, want 1", p)
	}
	if p := fisherPValue(1, 100); p != 0 {
		t.Errorf("p at r=1 = %v, want 0", p)
	}
}
