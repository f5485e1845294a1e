package fixed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromString(t *testing.T) {
	v, err := FromString("-12345", 4)
	require.NoError(t, err)
	assert.Equal(t, int32(4), v.Scale())
	assert.Equal(t, "-1.2345", v.String())

	_, err = FromString("12.5", 4)
	assert.Error(t, err, "non-integer strings must be rejected")
}

func TestAddSub(t *testing.T) {
	a := FromInt64(1500, 2) // 15.00
	b := FromInt64(250, 2)  // 2.50

	assert.Equal(t, "17.5", a.Add(b).String())
	assert.Equal(t, "12.5", a.Sub(b).String())
}

func TestAddPanicsOnScaleMismatch(t *testing.T) {
	a := FromInt64(1, 2)
	b := FromInt64(1, 3)

	assert.Panics(t, func() { a.Add(b) })
	assert.Panics(t, func() { a.Sub(b) })
	assert.Panics(t, func() { a.Cmp(b) })
}

func TestMulTo(t *testing.T) {
	tests := []struct {
		name        string
		a, b        Value
		resultScale int32
		expected    string
	}{
		{
			name:        "token amount times price lands on usd scale",
			a:           FromInt64(2_000_000, 6), // 2.0 tokens at 6 decimals
			b:           FromInt64(3_500, 3),     // 3.5 usd per token at scale 3
			resultScale: 9,
			expected:    "7",
		},
		{
			name:        "rescaling down truncates toward zero",
			a:           FromInt64(1, 0),
			b:           FromInt64(999, 3), // 0.999
			resultScale: 1,
			expected:    "0.9",
		},
		{
			name:        "negative operand",
			a:           FromInt64(-3, 0),
			b:           FromInt64(25, 1),
			resultScale: 1,
			expected:    "-7.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.MulTo(tt.b, tt.resultScale).String())
		})
	}
}

func TestDivTo(t *testing.T) {
	// 7 / 2 at scale 4
	a := FromInt64(7, 0)
	b := FromInt64(2, 0)
	assert.Equal(t, "3.5", a.DivTo(b, 4).String())

	// entry-price shape: usd(scale 4) / tokens(scale 2) at price scale 2
	size := FromInt64(1_000_000, 4) // 100 usd
	tokens := FromInt64(400, 2)     // 4 tokens
	assert.Equal(t, "25", size.DivTo(tokens, 2).String())
}

func TestDivToPanicsOnZeroDivisor(t *testing.T) {
	a := FromInt64(1, 0)
	assert.Panics(t, func() { a.DivTo(Zero(0), 4) })
}

func TestRescale(t *testing.T) {
	v := FromInt64(12345, 2) // 123.45

	up := v.Rescale(4)
	assert.Equal(t, "123.45", up.String())
	assert.Equal(t, int32(4), up.Scale())

	down := v.Rescale(1) // truncates
	assert.Equal(t, "123.4", down.String())

	negative := FromInt64(-12345, 2).Rescale(1)
	assert.Equal(t, "-1234", negative.Int().String(), "truncation must go toward zero")
}

func TestMax(t *testing.T) {
	a := FromInt64(10, 2)
	b := FromInt64(30, 2)
	assert.True(t, a.Max(b).Equal(b))
	assert.True(t, b.Max(a).Equal(b))
}

func TestZeroValueIsUsable(t *testing.T) {
	var v Value
	assert.True(t, v.IsZero())
	assert.Equal(t, 0, v.Sign())
	assert.Equal(t, "0", v.String())
}

func TestDeterminism(t *testing.T) {
	a := FromInt64(123456789, 8)
	b := FromInt64(987654321, 8)

	first := a.MulTo(b, 8).DivTo(b, 8)
	second := a.MulTo(b, 8).DivTo(b, 8)
	assert.True(t, first.Equal(second))
	assert.Equal(t, first.Int().Bytes(), second.Int().Bytes())
}

func TestDecimalView(t *testing.T) {
	v := FromInt64(-250075, 4)
	assert.Equal(t, "-25.0075", v.Decimal().String())
}
