package mp

import (
	"math/big"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowSquare is the reference: k squarings one at a time.
func slowSquare(x *big.Int, k uint64, n *big.Int) *big.Int {
	z := new(big.Int).Set(x)
	for i := uint64(0); i < k; i++ {
		z.Mul(z, z).Mod(z, n)
	}
	return z
}

func randomOdd(r *rand.Rand, words int) *big.Int {
	z := new(big.Int)
	for i := 0; i < words; i++ {
		z.Lsh(z, 64)
		z.Or(z, new(big.Int).SetUint64(r.Uint64()))
	}
	z.SetBit(z, 0, 1)
	z.SetBit(z, words*64-1, 1)
	return z
}

func TestPowTwoPowToy(t *testing.T) {
	n := big.NewInt(11 * 23)
	z := PowTwoPow(new(big.Int), big.NewInt(2), 10, n)
	assert.Equal(t, int64(71), z.Int64())

	// 2 -> 4 -> 16 -> 3 after three squarings mod 253
	z = PowTwoPow(new(big.Int), big.NewInt(2), 3, n)
	assert.Equal(t, int64(3), z.Int64())

	z = PowTwoPow(new(big.Int), big.NewInt(2), 0, n)
	assert.Equal(t, int64(2), z.Int64())
}

func TestPowTwo(t *testing.T) {
	z := PowTwo(new(big.Int), big.NewInt(144), big.NewInt(253))
	assert.Equal(t, int64(71), z.Int64())
}

func TestBackendsAgree(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for _, words := range []int{1, 2, 4, 16} {
		n := randomOdd(r, words)
		x := new(big.Int).Mod(randomOdd(r, words+1), n)
		for _, k := range []uint64{0, 1, 2, 7, 8, 9, 33} {
			want := slowSquare(x, k, n)
			for _, name := range Backends() {
				s, err := NewSquarer(name, n)
				require.NoError(t, err, name)
				got := s.Square(new(big.Int), x, k)
				assert.Equal(t, 0, want.Cmp(got), "backend %s words %d k %d", name, words, k)
			}
		}
	}
}

func TestSquareInPlace(t *testing.T) {
	n := big.NewInt(253)
	for _, name := range Backends() {
		s, err := NewSquarer(name, n)
		require.NoError(t, err)
		x := big.NewInt(2)
		s.Square(x, x, 5)
		s.Square(x, x, 5)
		assert.Equal(t, int64(71), x.Int64(), name)
	}
}

func TestSquareZero(t *testing.T) {
	n := big.NewInt(253)
	for _, name := range Backends() {
		s, err := NewSquarer(name, n)
		require.NoError(t, err)
		assert.Equal(t, 0, s.Square(new(big.Int), new(big.Int), 4).Sign(), name)
	}
}

func TestNewSquarer(t *testing.T) {
	n := big.NewInt(253)
	s, err := NewSquarer("", n)
	require.NoError(t, err)
	assert.Equal(t, "exp", s.Name())

	_, err = NewSquarer("quantum", n)
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = NewSquarer("montgomery", big.NewInt(254))
	assert.Error(t, err)

	// even moduli still work with the other backends
	for _, name := range []string{"exp", "fft"} {
		s, err := NewSquarer(name, big.NewInt(254))
		require.NoError(t, err)
		assert.Equal(t, 0, slowSquare(big.NewInt(3), 6, big.NewInt(254)).Cmp(s.Square(new(big.Int), big.NewInt(3), 6)))
	}
}

func TestBackends(t *testing.T) {
	assert.Equal(t, []string{"exp", "fft", "montgomery"}, Backends())
}

func TestLongBatchesSplit(t *testing.T) {
	saved := maxBatch
	maxBatch = 4
	defer func() { maxBatch = saved }()

	r := rand.New(rand.NewPCG(3, 4))
	n := randomOdd(r, 2)
	x := new(big.Int).Mod(randomOdd(r, 3), n)
	for _, k := range []uint64{1, 3, 4, 5, 8, 9, 17} {
		want := slowSquare(x, k, n)
		for _, name := range Backends() {
			s, err := NewSquarer(name, n)
			require.NoError(t, err, name)
			assert.Equal(t, 0, want.Cmp(s.Square(new(big.Int), x, k)), "backend %s k %d", name, k)
		}
	}
}

func TestStrideBeyondBatchLimit(t *testing.T) {
	n := big.NewInt(1_000_003 * 999_983)
	k := 3*maxBatch + 5
	want := slowSquare(big.NewInt(2), k, n)
	for _, name := range []string{"exp", "montgomery"} {
		s, err := NewSquarer(name, n)
		require.NoError(t, err, name)
		assert.Equal(t, 0, want.Cmp(s.Square(new(big.Int), big.NewInt(2), k)), name)
	}
}
