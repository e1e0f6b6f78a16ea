package domain

import (
	"testing"

	"github.com/holiman/uint256"

	chain "github.com/fd1az/mordor-monitor/business/chain/domain"
)

func wei(vs ...uint64) []uint256.Int {
	out := make([]uint256.Int, len(vs))
	for i, v := range vs {
		out[i] = *uint256.NewInt(v)
	}
	return out
}

func eq(t *testing.T, field string, got uint256.Int, want uint64) {
	t.Helper()
	if !got.Eq(uint256.NewInt(want)) {
		t.Errorf("%s = %s, want %d", field, got.Dec(), want)
	}
}

func TestNewSample_Percentiles(t *testing.T) {
	s := NewSample(chain.Header{
		Number:      7,
		GasUsed:     4_000_000,
		GasLimit:    8_000_000,
		TxCount:     4,
		TxGasPrices: wei(40, 10, 30, 20),
	})

	eq(t, "Min", s.Min, 10)
	eq(t, "Max", s.Max, 40)
	eq(t, "Median", s.Median, 25)
	eq(t, "P25", s.P25, 17) // 17.5 truncated
	eq(t, "P75", s.P75, 32) // 32.5 truncated
	eq(t, "Mean", s.Mean, 25)

	if s.Utilization != 50 {
		t.Errorf("Utilization = %v, want 50", s.Utilization)
	}
	if s.BlockNumber != 7 || s.TxCount != 4 {
		t.Errorf("sample = %+v", s)
	}
}

func TestNewSample_Fallbacks(t *testing.T) {
	t.Run("base fee", func(t *testing.T) {
		fee := uint256.NewInt(1_000_000_000)
		s := NewSample(chain.Header{Number: 1, GasLimit: 8_000_000, BaseFee: fee})
		for name, v := range map[string]uint256.Int{"Min": s.Min, "Median": s.Median, "Max": s.Max, "Mean": s.Mean} {
			eq(t, name, v, 1_000_000_000)
		}
	})

	t.Run("zero", func(t *testing.T) {
		s := NewSample(chain.Header{Number: 1})
		if !s.Max.IsZero() || !s.Median.IsZero() {
			t.Errorf("expected zero prices, got %+v", s)
		}
		if s.Utilization != 0 {
			t.Errorf("Utilization with zero limit = %v, want 0", s.Utilization)
		}
	})
}

func TestNewSample_DoesNotReorderInput(t *testing.T) {
	prices := wei(3, 1, 2)
	NewSample(chain.Header{Number: 1, TxGasPrices: prices})
	eq(t, "prices[0]", prices[0], 3)
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name     string
		values   []uint64
		num, den uint64
		want     uint64
	}{
		{"single", []uint64{42}, 1, 2, 42},
		{"exact rank", []uint64{10, 20, 30}, 1, 2, 20},
		{"p75 of five", []uint64{1, 2, 3, 4, 5}, 3, 4, 4},
		{"interpolated", []uint64{100, 200}, 1, 4, 125},
		{"upper bound", []uint64{5, 9}, 1, 1, 9},
		{"empty", nil, 1, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eq(t, "Percentile", Percentile(wei(tt.values...), tt.num, tt.den), tt.want)
		})
	}
}

func TestPercentile_LargeValues(t *testing.T) {
	big, _ := uint256.FromDecimal("340282366920938463463374607431768211455") // 2^128-1
	var small uint256.Int
	small.Sub(big, uint256.NewInt(4))

	got := Percentile([]uint256.Int{small, *big}, 1, 2)
	var want uint256.Int
	want.Sub(big, uint256.NewInt(2))
	if !got.Eq(&want) {
		t.Errorf("got %s, want %s", got.Dec(), want.Dec())
	}
}
