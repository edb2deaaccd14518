package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TimeLock/mp"
)

func TestParseStrides(t *testing.T) {
	s, err := parseStrides("1, 2,8")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 8}, s)

	for _, bad := range []string{"", "0", "1,x", "-3"} {
		_, err := parseStrides(bad)
		assert.Error(t, err, bad)
	}
}

func TestModulus(t *testing.T) {
	n, err := modulus("toy", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(253), n.Int64())

	n, err = modulus("", 512)
	require.NoError(t, err)
	assert.Equal(t, 512, n.BitLen())
	assert.Equal(t, uint(1), n.Bit(0))

	_, err = modulus("", 2)
	assert.Error(t, err)
	_, err = modulus("nope", 0)
	assert.Error(t, err)
}

func TestMeasure(t *testing.T) {
	n, err := modulus("toy", 0)
	require.NoError(t, err)
	for _, name := range mp.Backends() {
		s, err := mp.NewSquarer(name, n)
		require.NoError(t, err)
		assert.Greater(t, measure(s, n, 3, 100), 0.0, name)
	}
}
