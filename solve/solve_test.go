package main

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TimeLock/checkpoint"
	"TimeLock/codec"
	"TimeLock/engine"
	"TimeLock/factor"
	"TimeLock/puzzle"
	"TimeLock/trapdoor"
)

// The toy puzzle end to end: N = 11*23, T = 10, Z = 0x13.
func TestToyScenario(t *testing.T) {
	params, err := loadParams("toy", "")
	require.NoError(t, err)

	var keys []*big.Int
	for _, stride := range []uint64{1, 8} {
		store, err := checkpoint.NewStore(filepath.Join(t.TempDir(), "rivest.json"), params)
		require.NoError(t, err)
		e, err := engine.New(params, store, engine.Config{Stride: stride, Interval: 2}, nil)
		require.NoError(t, err)
		key, err := e.Run(context.Background())
		require.NoError(t, err)
		keys = append(keys, key)
	}
	assert.Equal(t, 0, keys[0].Cmp(keys[1]))
	assert.Equal(t, int64(71), keys[0].Int64())

	fast, err := trapdoor.Evaluate(params, trapdoor.FactorPair{P: big.NewInt(11), Q: big.NewInt(23)})
	require.NoError(t, err)
	assert.Equal(t, 0, keys[0].Cmp(fast))

	// 0x13 ^ 0x47
	plain, err := codec.Decode(params.Z(), keys[0])
	require.NoError(t, err)
	assert.Equal(t, []byte{0x54}, plain)
}

func TestCrossCheck(t *testing.T) {
	params, err := puzzle.Preset("toy")
	require.NoError(t, err)
	require.NoError(t, crossCheck(context.Background(), params, big.NewInt(71)))
	assert.Error(t, crossCheck(context.Background(), params, big.NewInt(70)))

	xmas, err := puzzle.Preset("xmas")
	require.NoError(t, err)
	assert.Error(t, crossCheck(context.Background(), xmas, new(big.Int)))
}

func TestLoadParamsFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, os.WriteFile(name, []byte(`{"n": "0xfd", "t": "10", "z": "19"}`), 0o644))
	params, err := loadParams("xmas", name)
	require.NoError(t, err)
	assert.Equal(t, int64(253), params.N().Int64())

	_, err = loadParams("nope", "")
	assert.ErrorIs(t, err, puzzle.ErrUnknownPreset)
}

func TestBuildStrategies(t *testing.T) {
	s, err := buildStrategies("", "", "", "", "1M")
	require.NoError(t, err)
	assert.Empty(t, s)

	s, err = buildStrategies("11", "23", "1000", "20", "5")
	require.NoError(t, err)
	require.Len(t, s, 3)
	assert.Equal(t, factor.TrialDivision{From: 2, To: 1000}, s[1])

	pair, ok, err := factor.First(context.Background(), big.NewInt(253), s...)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(11), pair.P.Int64())

	// a wrong -p/-q pair still lets -search run
	s, err = buildStrategies("11", "21", "1000", "", "5")
	require.NoError(t, err)
	pair, ok, err = factor.First(context.Background(), big.NewInt(253), s...)
	require.True(t, ok)
	assert.Equal(t, int64(11), pair.P.Int64())
	assert.ErrorIs(t, err, trapdoor.ErrInvalidFactorization)

	_, err = buildStrategies("11", "", "", "", "1M")
	assert.Error(t, err)
	_, err = buildStrategies("", "", "lots", "", "1M")
	assert.Error(t, err)
	_, err = buildStrategies("", "", "", "0xzz", "1M")
	assert.Error(t, err)
	_, err = buildStrategies("", "", "", "20", "far")
	assert.Error(t, err)
}

func TestAbbreviate(t *testing.T) {
	assert.Equal(t, "11 * 23", abbreviate("11 * 23"))
	long := abbreviate(string(make([]byte, 200)))
	assert.Len(t, long, 79)
}
