package fincalc_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/openclear/guardrail/internal/fincalc"
)

func TestCalculateInterest(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		periods   string
		frequency int64
		want      string
	}{
		{"annual compounding", "1000", "0.05", "10", 1, "628.89"},
		{"monthly compounding", "1000", "0.12", "1", 12, "126.83"},
		{"zero rate", "1000", "0", "5", 1, "0"},
		{"zero periods", "1000", "0.05", "0", 1, "0"},
		{"single period", "100", "0.005", "1", 1, "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fincalc.CalculateInterest(
				decimal.RequireFromString(tt.principal),
				decimal.RequireFromString(tt.rate),
				decimal.RequireFromString(tt.periods),
				tt.frequency,
			)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCalculateInterestInvalidInput(t *testing.T) {
	var calcErr *fincalc.CalculationError

	_, err := fincalc.CalculateInterest(
		decimal.NewFromInt(1000), decimal.NewFromFloat(0.05), decimal.NewFromInt(-1), 1)
	if !errors.As(err, &calcErr) {
		t.Fatalf("negative periods: expected CalculationError, got %v", err)
	}

	_, err = fincalc.CalculateInterest(
		decimal.NewFromInt(1000), decimal.NewFromFloat(0.05), decimal.NewFromInt(10), 0)
	if !errors.As(err, &calcErr) {
		t.Fatalf("zero frequency: expected CalculationError, got %v", err)
	}

	_, err = fincalc.CalculateInterest(
		decimal.NewFromInt(1000), decimal.NewFromFloat(0.05), decimal.NewFromInt(1000000), 365)
	if !errors.As(err, &calcErr) {
		t.Fatalf("huge exponent: expected CalculationError, got %v", err)
	}
}

func TestCalculatePresentValue(t *testing.T) {
	tests := []struct {
		name    string
		future  string
		rate    string
		periods string
		want    string
	}{
		{"one period", "1100", "0.1", "1", "1000"},
		{"zero rate", "500", "0", "5", "500"},
		{"zero periods", "750.25", "0.08", "0", "750.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fincalc.CalculatePresentValue(
				decimal.RequireFromString(tt.future),
				decimal.RequireFromString(tt.rate),
				decimal.RequireFromString(tt.periods),
			)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	var calcErr *fincalc.CalculationError
	_, err := fincalc.CalculatePresentValue(
		decimal.NewFromInt(100), decimal.NewFromFloat(0.1), decimal.NewFromInt(-2))
	if !errors.As(err, &calcErr) {
		t.Fatalf("negative periods: expected CalculationError, got %v", err)
	}
}

// Compounding and discounting are inverses: discounting principal+interest
// over the same horizon recovers the principal within rounding tolerance.
func TestPresentValueRoundTrip(t *testing.T) {
	principal := decimal.NewFromInt(1000)
	rate := decimal.NewFromFloat(0.05)
	periods := decimal.NewFromInt(10)

	interest, err := fincalc.CalculateInterest(principal, rate, periods, 1)
	if err != nil {
		t.Fatalf("interest: %v", err)
	}

	back, err := fincalc.CalculatePresentValue(principal.Add(interest), rate, periods)
	if err != nil {
		t.Fatalf("present value: %v", err)
	}

	diff := back.Sub(principal).Abs()
	if diff.GreaterThan(decimal.NewFromFloat(0.01)) {
		t.Errorf("round trip drifted by %s (got %s, want %s)", diff, back, principal)
	}
}

func TestCalculateNetPresentValue(t *testing.T) {
	t.Run("investment with returns", func(t *testing.T) {
		flows := []decimal.Decimal{
			decimal.NewFromInt(-1000),
			decimal.NewFromInt(500),
			decimal.NewFromInt(500),
			decimal.NewFromInt(500),
		}
		got, err := fincalc.CalculateNetPresentValue(flows, decimal.NewFromFloat(0.1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := decimal.RequireFromString("243.43"); !got.Equal(want) {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("index zero is undiscounted", func(t *testing.T) {
		flows := []decimal.Decimal{decimal.NewFromInt(100)}
		got, err := fincalc.CalculateNetPresentValue(flows, decimal.NewFromFloat(0.5))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := decimal.NewFromInt(100); !got.Equal(want) {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("empty flows", func(t *testing.T) {
		got, err := fincalc.CalculateNetPresentValue(nil, decimal.NewFromFloat(0.1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.IsZero() {
			t.Errorf("got %s, want 0", got)
		}
	})

	t.Run("rounds half away from zero", func(t *testing.T) {
		flows := []decimal.Decimal{decimal.Zero, decimal.RequireFromString("1.05")}
		got, err := fincalc.CalculateNetPresentValue(flows, decimal.NewFromInt(1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := decimal.RequireFromString("0.53"); !got.Equal(want) {
			t.Errorf("got %s, want %s", got, want)
		}

		flows = []decimal.Decimal{decimal.Zero, decimal.RequireFromString("-1.05")}
		got, err = fincalc.CalculateNetPresentValue(flows, decimal.NewFromInt(1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := decimal.RequireFromString("-0.53"); !got.Equal(want) {
			t.Errorf("got %s, want %s", got, want)
		}
	})
}

func TestCalculateIRR(t *testing.T) {
	t.Run("converges", func(t *testing.T) {
		flows := []decimal.Decimal{
			decimal.NewFromInt(-1000),
			decimal.NewFromInt(500),
			decimal.NewFromInt(500),
			decimal.NewFromInt(500),
		}
		got, err := fincalc.CalculateIRR(flows, fincalc.DefaultIRRGuess)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := decimal.RequireFromString("0.2338"); !got.Equal(want) {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("zero derivative", func(t *testing.T) {
		flows := []decimal.Decimal{decimal.NewFromInt(100)}
		_, err := fincalc.CalculateIRR(flows, fincalc.DefaultIRRGuess)
		var convErr *fincalc.ConvergenceError
		if !errors.As(err, &convErr) {
			t.Fatalf("expected ConvergenceError, got %v", err)
		}
	})

	t.Run("break-even flows", func(t *testing.T) {
		// -100 now, +100 in one period: IRR is exactly zero.
		flows := []decimal.Decimal{decimal.NewFromInt(-100), decimal.NewFromInt(100)}
		got, err := fincalc.CalculateIRR(flows, fincalc.DefaultIRRGuess)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.IsZero() {
			t.Errorf("got %s, want 0", got)
		}
	})
}
