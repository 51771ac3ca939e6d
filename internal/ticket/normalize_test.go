package ticket

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNormalizeStepFloors(t *testing.T) {
	tests := []struct {
		name  string
		value string
		step  string
		want  string
	}{
		{"exact multiple", "5", "0.01", "5"},
		{"rounds down", "5.019", "0.01", "5.01"},
		{"never rounds up", "0.0199999999", "0.01", "0.01"},
		{"tiny step", "1.234567891", "0.00000001", "1.23456789"},
		{"value below step", "0.004", "0.01", "0"},
		{"zero value", "0", "0.01", "0"},
		{"negative clamps to zero", "-3", "0.01", "0"},
		{"coarse step", "17", "5", "15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeStep(dec(tt.value), dec(tt.step))
			if err != nil {
				t.Fatalf("NormalizeStep(%s, %s): %v", tt.value, tt.step, err)
			}
			if !got.Equal(dec(tt.want)) {
				t.Errorf("NormalizeStep(%s, %s) = %s, want %s", tt.value, tt.step, got, tt.want)
			}
		})
	}
}

func TestNormalizeStepProperties(t *testing.T) {
	values := []string{"0", "0.00000001", "0.5", "1", "3.14159265", "99.99999999", "12345.678"}
	steps := []string{"0.00000001", "0.01", "0.1", "1", "2.5"}

	for _, v := range values {
		for _, s := range steps {
			value, step := dec(v), dec(s)

			got, err := NormalizeStep(value, step)
			if err != nil {
				t.Fatalf("NormalizeStep(%s, %s): %v", v, s, err)
			}

			// Floor property: result never exceeds the input.
			if got.GreaterThan(value) {
				t.Errorf("NormalizeStep(%s, %s) = %s exceeds input", v, s, got)
			}

			// Result is an exact multiple of step.
			if !got.Mod(step).IsZero() {
				t.Errorf("NormalizeStep(%s, %s) = %s is not a multiple of step", v, s, got)
			}

			// Idempotence: normalizing twice changes nothing.
			again, err := NormalizeStep(got, step)
			if err != nil {
				t.Fatalf("NormalizeStep(%s, %s) second pass: %v", got, s, err)
			}
			if !again.Equal(got) {
				t.Errorf("NormalizeStep not idempotent: %s -> %s -> %s (step %s)", v, got, again, s)
			}
		}
	}
}

func TestNormalizeStepRejectsBadStep(t *testing.T) {
	for _, s := range []string{"0", "-0.01"} {
		if _, err := NormalizeStep(dec("1"), dec(s)); !errors.Is(err, domain.ErrInvalidInstrument) {
			t.Errorf("NormalizeStep with step %s: got %v, want ErrInvalidInstrument", s, err)
		}
	}
}

func TestOnTick(t *testing.T) {
	tick := dec("0.01")

	tests := []struct {
		price string
		want  bool
	}{
		{"100.01", true},
		{"100.00", true},
		{"100.015", false},
		{"0.005", false},
		// Within the tick*1e-9 epsilon on either side of the grid.
		{"100.010000000000001", true},
		{"100.009999999999999", true},
		// Just outside the epsilon.
		{"100.0101", false},
	}

	for _, tt := range tests {
		if got := OnTick(dec(tt.price), tick); got != tt.want {
			t.Errorf("OnTick(%s, %s) = %v, want %v", tt.price, tick, got, tt.want)
		}
	}
}
