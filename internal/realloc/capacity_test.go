package realloc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"remanejo/internal/core"
)

func TestCapacity(t *testing.T) {
	tests := []struct {
		name     string
		original string
		current  string
		want     string
	}{
		{"untouched donor capped per operation", "1000", "1000", "400"},
		{"small donor", "375", "375", "150"},
		{"after one donation", "1000", "600", "400"},
		{"lifetime allowance left", "1000", "300", "100"},
		{"at reserve", "1000", "200", "0"},
		{"below reserve", "1000", "150", "0"},
		{"exhausted", "1000", "0", "0"},
		{"deficit nature", "-200", "-200", "0"},
		{"deficit covered to zero", "-200", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := core.Nature{Original: dec(tt.original), Current: dec(tt.current)}
			got := Capacity(n, DefaultReservePct, DefaultMaxPerOperationPct)
			assert.True(t, dec(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestCapacityNeverBreachesReserve(t *testing.T) {
	for _, cur := range []string{"1000", "801", "600.01", "400", "250.5", "200.01"} {
		n := core.Nature{Original: dec("1000"), Current: dec(cur)}
		c := Capacity(n, DefaultReservePct, DefaultMaxPerOperationPct)
		assert.False(t, n.Current.Sub(c).LessThan(dec("200")), "current %s capacity %s", cur, c)
		assert.False(t, c.GreaterThan(dec("400")))
	}
}

func TestReserve(t *testing.T) {
	assert.True(t, dec("200").Equal(Reserve(core.Nature{Original: dec("1000")}, DefaultReservePct)))
	assert.True(t, Reserve(core.Nature{Original: dec("-10")}, DefaultReservePct).IsZero())
}
