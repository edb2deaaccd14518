package checkpoint

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"TimeLock/puzzle"
)

// Record is the persisted progress of the squaring loop.
// Accumulator == 2^(2^Done) mod N whenever it was produced by the sequential
// loop.
type Record struct {
	Accumulator *big.Int
	Done        uint64
	Elapsed     decimal.Decimal
}

// Initial is the record used when nothing has been saved yet.
func Initial() Record {
	return Record{
		Accumulator: big.NewInt(2),
		Done:        0,
		Elapsed:     decimal.Zero,
	}
}

// Validate checks the record against the puzzle it belongs to.
func (r Record) Validate(params puzzle.Parameters) error {
	var errs []error
	if r.Accumulator == nil {
		errs = append(errs, errors.New("accumulator is required"))
	} else if !params.Reduced(r.Accumulator) {
		errs = append(errs, fmt.Errorf("accumulator outside [0, N) (%d bits)", r.Accumulator.BitLen()))
	}
	if r.Done > params.T() {
		errs = append(errs, fmt.Errorf("iterations_done %d exceeds T = %d", r.Done, params.T()))
	}
	if r.Elapsed.IsNegative() {
		errs = append(errs, fmt.Errorf("elapsed_seconds %s is negative", r.Elapsed))
	}
	return errors.Join(errs...)
}

// Equal compares two records by value.
func (r Record) Equal(o Record) bool {
	if (r.Accumulator == nil) != (o.Accumulator == nil) {
		return false
	}
	if r.Accumulator != nil && r.Accumulator.Cmp(o.Accumulator) != 0 {
		return false
	}
	return r.Done == o.Done && r.Elapsed.Equal(o.Elapsed)
}

// wire is the on-disk form. Numbers are strings so no JSON reader can round
// them.
type wire struct {
	Puzzle      string           `json:"puzzle"`
	Accumulator string           `json:"accumulator"`
	Done        *uint64          `json:"iterations_done"`
	Elapsed     *decimal.Decimal `json:"elapsed_seconds"`
}

func (r Record) toWire(params puzzle.Parameters) wire {
	done := r.Done
	elapsed := r.Elapsed
	return wire{
		Puzzle:      params.Fingerprint(),
		Accumulator: r.Accumulator.String(),
		Done:        &done,
		Elapsed:     &elapsed,
	}
}

func (w wire) toRecord(params puzzle.Parameters) (Record, error) {
	var errs []error
	if w.Puzzle != params.Fingerprint() {
		errs = append(errs, errors.New("checkpoint belongs to a different puzzle"))
	}
	acc, ok := new(big.Int).SetString(w.Accumulator, 10)
	if !ok {
		errs = append(errs, errors.New("accumulator is not a base 10 integer"))
	}
	if w.Done == nil {
		errs = append(errs, errors.New("iterations_done is required"))
	}
	if w.Elapsed == nil {
		errs = append(errs, errors.New("elapsed_seconds is required"))
	}
	if len(errs) > 0 {
		return Record{}, errors.Join(errs...)
	}
	r := Record{
		Accumulator: acc,
		Done:        *w.Done,
		Elapsed:     *w.Elapsed,
	}
	if err := r.Validate(params); err != nil {
		return Record{}, err
	}
	return r, nil
}
