// Package trapdoor solves the puzzle in O(log T) once the factors of N are
// known.
//
// With phi = (p-1)(q-1), Euler's theorem gives 2^phi = 1 mod N, so the tower
// 2^(2^T) collapses to 2^(2^T mod phi) mod N.
package trapdoor

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/cznic/mathutil"

	"TimeLock/mp"
	"TimeLock/puzzle"
)

var ErrInvalidFactorization = errors.New("invalid factorization")

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// FactorPair is a candidate factorization N = P * Q.
type FactorPair struct {
	P, Q *big.Int
}

func (f FactorPair) String() string {
	return fmt.Sprintf("%d * %d", f.P, f.Q)
}

// Check verifies P, Q > 1 and P * Q == N.
func (f FactorPair) Check(n *big.Int) error {
	if f.P == nil || f.Q == nil {
		return fmt.Errorf("%w: missing factor", ErrInvalidFactorization)
	}
	if f.P.Cmp(one) <= 0 || f.Q.Cmp(one) <= 0 {
		return fmt.Errorf("%w: factors must be greater than 1", ErrInvalidFactorization)
	}
	if new(big.Int).Mul(f.P, f.Q).Cmp(n) != 0 {
		return fmt.Errorf("%w: p * q != N", ErrInvalidFactorization)
	}
	return nil
}

// Phi returns (P-1)(Q-1).
func (f FactorPair) Phi() *big.Int {
	p1 := new(big.Int).Sub(f.P, one)
	q1 := new(big.Int).Sub(f.Q, one)
	return p1.Mul(p1, q1)
}

// Evaluate returns 2^(2^T) mod N using the factorization.
//
// Only p * q == N is checked. P and Q must be distinct primes and N odd for
// the result to be right; any other pair that multiplies to N yields a
// well-formed but wrong key.
func Evaluate(params puzzle.Parameters, pair FactorPair) (*big.Int, error) {
	n := params.N()
	if err := pair.Check(n); err != nil {
		return nil, err
	}
	phi := pair.Phi()
	t := new(big.Int).SetUint64(params.T())
	reduced := mathutil.ModPowBigInt(two, t, phi)
	if reduced == nil {
		return nil, fmt.Errorf("%w: cannot reduce exponent modulo %d", ErrInvalidFactorization, phi)
	}
	// keep both results reduced even when phi or N is tiny
	reduced.Mod(reduced, phi)
	return mp.PowTwo(new(big.Int), reduced, n), nil
}
