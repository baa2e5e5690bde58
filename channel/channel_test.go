package channel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	c := New(0)
	rows := [][]string{
		{"0.0", "1.0"},
		{"0.1", "2.0"},
		{" 0.2", "1.5 "},
	}

	err := c.Load(rows)
	require.NoError(t, err)

	assert.Equal(t, Loaded, c.State())
	assert.Equal(t, 0, c.Cursor())
	assert.Equal(t, len(rows), c.Len())
	assert.Equal(t, []float64{0.0, 0.1, 0.2}, Times(c.Samples()))
	assert.Equal(t, []float64{1.0, 2.0, 1.5}, Amplitudes(c.Samples()))
}

func TestLoad_ParseErrorIsAtomic(t *testing.T) {
	tt := []struct {
		name   string
		rows   [][]string
		row    int
		column int
	}{
		{"too few fields", [][]string{{"0.0", "1.0"}, {"0.1"}}, 1, -1},
		{"too many fields", [][]string{{"0.0", "1.0", "3"}}, 0, -1},
		{"time not numeric", [][]string{{"0.0", "1.0"}, {"x", "1.0"}}, 1, 0},
		{"amplitude not numeric", [][]string{{"0.0", ""}}, 0, 1},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			c := New(1)

			err := c.Load(tc.rows)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, tc.row, parseErr.Row)
			assert.Equal(t, tc.column, parseErr.Column)
			assert.Equal(t, Empty, c.State())
			assert.False(t, c.HasData())
		})
	}
}

func TestLoad_FailureKeepsPreviousData(t *testing.T) {
	c := New(0)
	require.NoError(t, c.Load([][]string{{"0", "1"}, {"1", "2"}}))

	err := c.Load([][]string{{"0", "a"}})
	assert.Error(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, Loaded, c.State())
}

func TestClear(t *testing.T) {
	c := New(2)
	require.NoError(t, c.Load([][]string{{"0", "1"}, {"1", "2"}}))
	c.SetState(Playing)
	c.Advance(1)

	c.Clear()
	assert.Equal(t, Empty, c.State())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Cursor())

	c.Clear()
	assert.Equal(t, Empty, c.State())
	assert.Empty(t, c.Revealed())
}

func TestAdvance_ClampsToLength(t *testing.T) {
	c := New(0)
	require.NoError(t, c.Load([][]string{{"0", "1"}, {"1", "2"}, {"2", "3"}}))

	assert.Equal(t, 2, c.Advance(2))
	assert.Equal(t, 3, c.Advance(2))
	assert.Equal(t, 3, c.Advance(2))
	assert.Len(t, c.Revealed(), 3)
}

func TestBounds(t *testing.T) {
	_, _, _, _, ok := Bounds(nil)
	assert.False(t, ok)

	tMin, tMax, aMin, aMax, ok := Bounds([]Sample{{0.5, -1}, {0.1, 3}, {0.9, 0}})
	assert.True(t, ok)
	assert.Equal(t, 0.1, tMin)
	assert.Equal(t, 0.9, tMax)
	assert.Equal(t, -1.0, aMin)
	assert.Equal(t, 3.0, aMax)
}

func TestIDValid(t *testing.T) {
	assert.True(t, ID(0).Valid())
	assert.True(t, ID(2).Valid())
	assert.False(t, ID(3).Valid())
	assert.False(t, ID(-1).Valid())
}
