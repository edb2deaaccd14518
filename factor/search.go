// Package factor looks for a factorization of N that the trapdoor evaluator
// can use. Strategies are independent: each either finds a pair, reports that
// it found nothing in its range, or stops when the context is done.
package factor

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/cznic/mathutil"

	"TimeLock/trapdoor"
)

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
	two  = big.NewInt(2)
)

// check the context this often inside tight loops
const pollEvery = 1 << 14

type Strategy interface {
	Search(ctx context.Context, n *big.Int) (trapdoor.FactorPair, bool, error)
}

// Known returns a factorization supplied from outside, if it divides N.
type Known struct {
	P, Q *big.Int
}

func (k Known) Search(_ context.Context, n *big.Int) (trapdoor.FactorPair, bool, error) {
	pair := trapdoor.FactorPair{P: k.P, Q: k.Q}
	if err := pair.Check(n); err != nil {
		return trapdoor.FactorPair{}, false, err
	}
	return pair, true, nil
}

// TrialDivision tries every prime divisor d with From <= d <= To.
type TrialDivision struct {
	From, To uint64
}

func (s TrialDivision) Search(ctx context.Context, n *big.Int) (trapdoor.FactorPair, bool, error) {
	d := new(big.Int)
	r := new(big.Int)
	q := new(big.Int)
	from := max(s.From, 2)
	for i, c := uint64(0), from; c <= s.To && c >= from; i, c = i+1, c+1 {
		if i%pollEvery == 0 {
			if err := ctx.Err(); err != nil {
				return trapdoor.FactorPair{}, false, err
			}
		}
		if !mathutil.IsPrimeUint64(c) {
			continue
		}
		d.SetUint64(c)
		if d.Cmp(n) >= 0 {
			break
		}
		q.QuoRem(n, d, r)
		if r.Sign() == 0 {
			return trapdoor.FactorPair{P: new(big.Int).Set(d), Q: new(big.Int).Set(q)}, true, nil
		}
	}
	return trapdoor.FactorPair{}, false, nil
}

// Window tests the odd candidates Hint-Radius .. Hint+Radius, nearest to
// Hint first. It suits moduli whose digits give away roughly where a factor
// sits.
type Window struct {
	Hint   *big.Int
	Radius uint64
}

func (s Window) Search(ctx context.Context, n *big.Int) (trapdoor.FactorPair, bool, error) {
	if s.Hint == nil || s.Hint.Sign() <= 0 {
		return trapdoor.FactorPair{}, false, errors.New("window search needs a positive hint")
	}
	r := new(big.Int)
	q := new(big.Int)
	c := new(big.Int)
	off := new(big.Int)
	try := func(c *big.Int) (trapdoor.FactorPair, bool) {
		if c.Cmp(one) <= 0 || c.Cmp(n) >= 0 {
			return trapdoor.FactorPair{}, false
		}
		q.QuoRem(n, c, r)
		if r.Sign() != 0 {
			return trapdoor.FactorPair{}, false
		}
		return trapdoor.FactorPair{P: new(big.Int).Set(c), Q: new(big.Int).Set(q)}, true
	}
	for i := uint64(0); i <= s.Radius; i++ {
		if i%pollEvery == 0 {
			if err := ctx.Err(); err != nil {
				return trapdoor.FactorPair{}, false, err
			}
		}
		off.SetUint64(i)
		for _, sign := range []int{1, -1} {
			if i == 0 && sign < 0 {
				continue
			}
			if sign > 0 {
				c.Add(s.Hint, off)
			} else {
				c.Sub(s.Hint, off)
			}
			if c.Bit(0) == 0 && c.Cmp(two) != 0 {
				continue
			}
			if pair, ok := try(c); ok {
				return pair, true, nil
			}
		}
	}
	return trapdoor.FactorPair{}, false, nil
}

// First runs the strategies in order and returns the first pair found. A
// strategy that fails does not stop the others; its error is joined into the
// returned error, which can accompany a pair found by a later strategy. A
// done context stops the search at once.
func First(ctx context.Context, n *big.Int, strategies ...Strategy) (trapdoor.FactorPair, bool, error) {
	if n.Cmp(zero) <= 0 {
		return trapdoor.FactorPair{}, false, errors.New("N must be positive")
	}
	var errs []error
	for _, s := range strategies {
		pair, ok, err := s.Search(ctx, n)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return trapdoor.FactorPair{}, false, errors.Join(append(errs, ctxErr)...)
			}
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
			continue
		}
		if ok {
			return pair, true, errors.Join(errs...)
		}
	}
	return trapdoor.FactorPair{}, false, errors.Join(errs...)
}
