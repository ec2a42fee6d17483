package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetBuilder(t *testing.T) {
	src := NewBudget().
		Unit(500, "450201", "ALPHA", "800").
		Nature(0, "319011", "Vencimentos", "1000").
		Nature(761, "339039", "Serviços", "-200").
		Source("alpha.xlsx")

	assert.Equal(t, "alpha.xlsx", src.Name())
	rows, err := src.ReadGrid(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"500", "450201 - ALPHA", "800"}, rows[2])
	assert.Equal(t, []string{"", "319011 - Vencimentos", "1000"}, rows[3])
	assert.Equal(t, "761", rows[4][0])
}

func TestReadGridReturnsCopy(t *testing.T) {
	src := New("x", [][]string{{"a", "b"}})
	rows, err := src.ReadGrid(context.Background())
	require.NoError(t, err)
	rows[0][0] = "changed"

	again, err := src.ReadGrid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", again[0][0])
}

func TestReadGridHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New("x", nil).ReadGrid(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
