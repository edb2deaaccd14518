package mp

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"filippo.io/bigmod"
	"github.com/remyoudompheng/bigfft"
)

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

var ErrUnknownBackend = errors.New("unknown squaring backend")

// Squarer repeatedly squares modulo a fixed modulus. Square sets z to
// x^(2^k) mod n and returns z. x must already be reduced into [0, n) and is
// not modified unless z and x are the same value.
type Squarer interface {
	Square(z, x *big.Int, k uint64) *big.Int
	Name() string
}

// maxBatch bounds the squarings folded into one exponentiation. The exponent
// 2^k takes k bits, so larger batches are split.
var maxBatch uint64 = 1 << 16

// batches calls f with chunk sizes of at most maxBatch summing to k.
func batches(k uint64, f func(uint64)) {
	for k > 0 {
		c := min(k, maxBatch)
		f(c)
		k -= c
	}
}

// PowTwoPow sets z = x^(2^k) mod n. This is exactly k sequential squarings
// since (x^2)^2... = x^(2^k); each exponentiation covers at most maxBatch of
// them.
func PowTwoPow(z, x *big.Int, k uint64, n *big.Int) *big.Int {
	if k == 0 {
		return z.Mod(x, n)
	}
	z.Set(x)
	e := new(big.Int)
	batches(k, func(c uint64) {
		e.Lsh(one, uint(c))
		z.Exp(z, e, n)
	})
	return z
}

// PowTwo sets z = 2^e mod n.
func PowTwo(z, e, n *big.Int) *big.Int {
	return z.Exp(two, e, n)
}

type expSquarer struct {
	n *big.Int
}

// NewExpSquarer uses big.Int.Exp for each batch. It works for any n > 1.
func NewExpSquarer(n *big.Int) Squarer {
	return &expSquarer{n: new(big.Int).Set(n)}
}

func (s *expSquarer) Name() string { return "exp" }

func (s *expSquarer) Square(z, x *big.Int, k uint64) *big.Int {
	return PowTwoPow(z, x, k, s.n)
}

type fftSquarer struct {
	n *big.Int
}

// NewFFTSquarer squares with Schönhage-Strassen multiplication from bigfft.
// bigfft falls back to schoolbook multiplication below its threshold, so this
// only pays off for moduli of many thousands of bits.
func NewFFTSquarer(n *big.Int) Squarer {
	return &fftSquarer{n: new(big.Int).Set(n)}
}

func (s *fftSquarer) Name() string { return "fft" }

func (s *fftSquarer) Square(z, x *big.Int, k uint64) *big.Int {
	acc := new(big.Int).Set(x)
	for i := uint64(0); i < k; i++ {
		acc.Mod(bigfft.Mul(acc, acc), s.n)
	}
	return z.Set(acc)
}

type montgomerySquarer struct {
	n *big.Int
	m *bigmod.Modulus
}

// NewMontgomerySquarer keeps the modulus in Montgomery form using
// filippo.io/bigmod. The modulus must be odd.
func NewMontgomerySquarer(n *big.Int) (Squarer, error) {
	if n.Bit(0) == 0 {
		return nil, fmt.Errorf("montgomery backend needs an odd modulus, got even %d-bit value", n.BitLen())
	}
	m, err := bigmod.NewModulusFromBig(n)
	if err != nil {
		return nil, fmt.Errorf("montgomery modulus: %w", err)
	}
	return &montgomerySquarer{n: new(big.Int).Set(n), m: m}, nil
}

func (s *montgomerySquarer) Name() string { return "montgomery" }

func (s *montgomerySquarer) Square(z, x *big.Int, k uint64) *big.Int {
	base, err := bigmod.NewNat().SetBytes(x.Bytes(), s.m)
	if err != nil {
		// x was not reduced, which callers promise never happens
		panic(fmt.Sprintf("montgomery square: %v", err))
	}
	batches(k, func(c uint64) {
		e := new(big.Int).Lsh(one, uint(c)).Bytes()
		base = bigmod.NewNat().Exp(base, e, s.m)
	})
	return z.SetBytes(base.Bytes(s.m))
}

var backends = map[string]func(*big.Int) (Squarer, error){
	"exp": func(n *big.Int) (Squarer, error) { return NewExpSquarer(n), nil },
	"fft": func(n *big.Int) (Squarer, error) { return NewFFTSquarer(n), nil },
	"montgomery": NewMontgomerySquarer,
}

// NewSquarer returns the backend with the given name. An empty name selects exp.
func NewSquarer(name string, n *big.Int) (Squarer, error) {
	if name == "" {
		name = "exp"
	}
	build, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (have %v)", ErrUnknownBackend, name, Backends())
	}
	return build(n)
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
