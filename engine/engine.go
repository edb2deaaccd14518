// Package engine computes 2^(2^T) mod N by repeated squaring.
//
// The loop is sequential by nature. Squarings are batched into strides of k,
// each evaluated as one exponentiation x^(2^k) mod N, which is exact and only
// saves per-call overhead. Progress is checkpointed every Interval squarings
// so that a run can be killed at any moment and resumed later.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"TimeLock/checkpoint"
	"TimeLock/mp"
	"TimeLock/puzzle"
)

const DefaultStride = 8

// Store is the persistence the engine needs. *checkpoint.Store satisfies it.
type Store interface {
	Load() (checkpoint.Record, checkpoint.State, error)
	Save(checkpoint.Record) error
}

type Config struct {
	// Stride is the number of squarings between cancellation checks. The
	// backend splits very long strides into bounded exponentiations, but a
	// stride is never interrupted, so keep it small for large T.
	Stride uint64
	// Interval is the number of squarings between checkpoints. Zero saves
	// after every stride.
	Interval uint64
	// Backend names the mp squaring backend; empty selects exp.
	Backend string
}

// Progress is reported every time a checkpoint is written.
type Progress struct {
	Done         uint64
	Total        uint64
	Fraction     decimal.Decimal
	RunElapsed   decimal.Decimal
	TotalElapsed decimal.Decimal
	Resumed      bool
}

type Observer func(Progress)

// State is everything the loop carries from one stride to the next.
type State struct {
	Accumulator *big.Int
	Done        uint64
	Elapsed     decimal.Decimal
	// Pending counts squarings since the last checkpoint.
	Pending uint64
}

type Engine struct {
	params   puzzle.Parameters
	store    Store
	cfg      Config
	squarer  mp.Squarer
	observer Observer
	now      func() time.Time
}

func New(params puzzle.Parameters, store Store, cfg Config, observer Observer) (*Engine, error) {
	if store == nil {
		return nil, errors.New("nil checkpoint store")
	}
	if cfg.Stride == 0 {
		return nil, errors.New("stride must be at least 1")
	}
	squarer, err := mp.NewSquarer(cfg.Backend, params.N())
	if err != nil {
		return nil, err
	}
	if observer == nil {
		observer = func(Progress) {}
	}
	return &Engine{
		params:   params,
		store:    store,
		cfg:      cfg,
		squarer:  squarer,
		observer: observer,
		now:      time.Now,
	}, nil
}

// Step performs one batch, clamped so that Done never passes T.
func (e *Engine) Step(s State) State {
	t := e.params.T()
	if s.Done >= t {
		return s
	}
	step := min(e.cfg.Stride, t-s.Done)
	next := State{
		Accumulator: e.squarer.Square(new(big.Int), s.Accumulator, step),
		Done:        s.Done + step,
		Elapsed:     s.Elapsed,
		Pending:     s.Pending + step,
	}
	return next
}

// due reports whether s should be checkpointed now.
func (e *Engine) due(s State) bool {
	return s.Pending >= e.cfg.Interval || s.Done == e.params.T()
}

// Run loads the last checkpoint and squares until T is reached, returning
// 2^(2^T) mod N. If ctx is cancelled the loop stops between strides, saves
// its position and returns ctx.Err().
func (e *Engine) Run(ctx context.Context) (*big.Int, error) {
	rec, state, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	s := State{
		Accumulator: new(big.Int).Mod(rec.Accumulator, e.params.N()),
		Done:        rec.Done,
		Elapsed:     rec.Elapsed,
	}
	if s.Done >= e.params.T() {
		return s.Accumulator, nil
	}

	run := runClock{start: e.now(), base: rec.Elapsed, resumed: state == checkpoint.Resumed}
	for s.Done < e.params.T() {
		if err := ctx.Err(); err != nil {
			if s.Pending > 0 {
				if _, serr := e.save(s, run); serr != nil {
					return nil, errors.Join(err, serr)
				}
			}
			return nil, err
		}
		s = e.Step(s)
		if e.due(s) {
			if s, err = e.save(s, run); err != nil {
				return nil, err
			}
		}
	}
	return s.Accumulator, nil
}

// runClock measures the wall-clock time of this process on top of the time
// recorded by earlier runs.
type runClock struct {
	start   time.Time
	base    decimal.Decimal
	resumed bool
}

// save persists s, reports progress and returns s with Pending cleared.
func (e *Engine) save(s State, clock runClock) (State, error) {
	run := seconds(e.now().Sub(clock.start))
	s.Elapsed = clock.base.Add(run)
	rec := checkpoint.Record{
		Accumulator: s.Accumulator,
		Done:        s.Done,
		Elapsed:     s.Elapsed,
	}
	if err := e.store.Save(rec); err != nil {
		return s, fmt.Errorf("save checkpoint at %d: %w", s.Done, err)
	}
	s.Pending = 0
	e.observer(Progress{
		Done:         s.Done,
		Total:        e.params.T(),
		Fraction:     fraction(s.Done, e.params.T()),
		RunElapsed:   run,
		TotalElapsed: s.Elapsed,
		Resumed:      clock.resumed,
	})
	return s, nil
}

func seconds(d time.Duration) decimal.Decimal {
	return decimal.New(d.Nanoseconds(), -9)
}

func fraction(done, total uint64) decimal.Decimal {
	if total == 0 {
		return decimal.NewFromInt(1)
	}
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(done), 0)
	return d.DivRound(decimal.NewFromBigInt(new(big.Int).SetUint64(total), 0), 12)
}
