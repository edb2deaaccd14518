package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/profile"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"TimeLock/checkpoint"
	"TimeLock/codec"
	"TimeLock/common"
	"TimeLock/engine"
	"TimeLock/factor"
	"TimeLock/mp"
	"TimeLock/puzzle"
	"TimeLock/trapdoor"
)

/*
Solves a time-lock puzzle in the style of Rivest's LCS35: compute
2^(2^T) mod N and XOR the result into the ciphertext Z.

Without the factors of N the only known way is T sequential squarings. That
can take years, so progress is checkpointed and the program can be stopped
with ^C and restarted at any time. If the factors are known (-p/-q) or can be
found by one of the search strategies, the answer takes milliseconds.
*/

// longest T that -verify will recompute sequentially
const verifyLimit = 10_000_000

func main() {
	preset := flag.String("preset", "toy", fmt.Sprintf("built-in puzzle, one of %v", puzzle.Presets()))
	paramFile := flag.String("params", "", `JSON file {"n": ..., "t": ..., "z": ...} overriding -preset`)
	cpPath := flag.String("checkpoint", "rivest.json", "checkpoint file")
	stride := flag.Uint64("stride", engine.DefaultStride, "squarings per exponentiation")
	intervalString := flag.String("interval", "1M", "squarings between checkpoints. Can use M, G, T, P and E as power of ten")
	backend := flag.String("backend", "exp", fmt.Sprintf("squaring backend, one of %v", mp.Backends()))
	pString := flag.String("p", "", "known factor p of N")
	qString := flag.String("q", "", "known factor q of N")
	searchTo := flag.String("search", "", "trial divide N by primes up to this bound before squaring")
	hintString := flag.String("hint", "", "look for a factor of N near this value")
	radius := flag.String("radius", "1M", "distance from -hint to search")
	verify := flag.Bool("verify", false, "cross-check a trapdoor answer against the sequential loop")
	prof := flag.String("profile", "", "write a cpu or mem profile")
	verbose := flag.Bool("verbose", false, "verbose output")
	flag.Parse()

	switch *prof {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	default:
		log.Fatalf("unknown profile %q, want cpu or mem", *prof)
	}

	params, err := loadParams(*preset, *paramFile)
	if err != nil {
		log.Fatal(err)
	}
	if *verbose {
		log.Printf("puzzle: %s", params)
	}
	interval, err := common.DecodeLimit(*intervalString, *verbose)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := message.NewPrinter(language.English)

	strategies, err := buildStrategies(*pString, *qString, *searchTo, *hintString, *radius)
	if err != nil {
		log.Fatal(err)
	}

	var key *big.Int
	pair, found, err := factor.First(ctx, params.N(), strategies...)
	if err != nil {
		log.Printf("factor search: %v", err)
	}
	if found {
		log.Printf("using trapdoor with %s", abbreviate(pair.String()))
		key, err = trapdoor.Evaluate(params, pair)
		if err != nil {
			log.Printf("trapdoor rejected, falling back to squaring: %v", err)
			key = nil
		} else if *verify {
			if err := crossCheck(ctx, params, key); err != nil {
				log.Fatal(err)
			}
		}
	}

	if key == nil {
		store, err := checkpoint.NewStore(*cpPath, params)
		if err != nil {
			log.Fatal(err)
		}
		e, err := engine.New(params, store, engine.Config{
			Stride:   *stride,
			Interval: interval,
			Backend:  *backend,
		}, reporter(p))
		if err != nil {
			log.Fatal(err)
		}
		key, err = e.Run(ctx)
		if errors.Is(err, context.Canceled) {
			log.Printf("stopped, progress saved in %s", *cpPath)
			return
		}
		if err != nil {
			log.Fatal(err)
		}
	}

	_, _ = p.Printf("2^(2^%d) = %s\n", params.T(), key.String())
	plain, err := codec.Decode(params.Z(), key)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("message (hex) = %s\n", hex.EncodeToString(plain))
	text, err := codec.Text(plain)
	if err != nil {
		fmt.Printf("message is not text: %v\n", err)
		return
	}
	fmt.Printf("message = %q\n", text)
}

func loadParams(preset, paramFile string) (puzzle.Parameters, error) {
	if paramFile != "" {
		return puzzle.Load(paramFile)
	}
	return puzzle.Preset(preset)
}

func buildStrategies(pString, qString, searchTo, hintString, radius string) ([]factor.Strategy, error) {
	var strategies []factor.Strategy
	if pString != "" || qString != "" {
		pp, err := common.DecodeBig(pString)
		if err != nil {
			return nil, fmt.Errorf("-p: %w", err)
		}
		qq, err := common.DecodeBig(qString)
		if err != nil {
			return nil, fmt.Errorf("-q: %w", err)
		}
		strategies = append(strategies, factor.Known{P: pp, Q: qq})
	}
	if searchTo != "" {
		to, err := common.DecodeLimit(searchTo, false)
		if err != nil {
			return nil, fmt.Errorf("-search: %w", err)
		}
		strategies = append(strategies, factor.TrialDivision{From: 2, To: to})
	}
	if hintString != "" {
		hint, err := common.DecodeBig(hintString)
		if err != nil {
			return nil, fmt.Errorf("-hint: %w", err)
		}
		r, err := common.DecodeLimit(radius, false)
		if err != nil {
			return nil, fmt.Errorf("-radius: %w", err)
		}
		strategies = append(strategies, factor.Window{Hint: hint, Radius: r})
	}
	return strategies, nil
}

// reporter logs each checkpoint with a rate and time remaining based on the
// squarings done since the previous one.
func reporter(p *message.Printer) engine.Observer {
	var lastDone uint64
	lastRun := decimal.Zero
	first := true
	return func(pr engine.Progress) {
		pct := pr.Fraction.Mul(decimal.NewFromInt(100))
		line := p.Sprintf("t = %d of %d (%s%%), run %ss, total %ss",
			pr.Done, pr.Total, pct.StringFixed(2),
			pr.RunElapsed.StringFixed(1), pr.TotalElapsed.StringFixed(1))
		if !first {
			dt := pr.RunElapsed.Sub(lastRun)
			if dt.IsPositive() {
				rate := decimal.NewFromBigInt(new(big.Int).SetUint64(pr.Done-lastDone), 0).Div(dt)
				if rate.IsPositive() {
					left := decimal.NewFromBigInt(new(big.Int).SetUint64(pr.Total-pr.Done), 0).Div(rate)
					line += p.Sprintf(", %d squarings/s, %ss remaining", rate.IntPart(), left.StringFixed(0))
				}
			}
		}
		first = false
		lastDone, lastRun = pr.Done, pr.RunElapsed
		log.Print(line)
	}
}

// crossCheck recomputes the key the slow way in a scratch directory.
func crossCheck(ctx context.Context, params puzzle.Parameters, key *big.Int) error {
	if params.T() > verifyLimit {
		return fmt.Errorf("-verify needs T <= %d, have %d", verifyLimit, params.T())
	}
	dir, err := os.MkdirTemp("", "timelock-verify")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	store, err := checkpoint.NewStore(filepath.Join(dir, "verify.json"), params)
	if err != nil {
		return err
	}
	e, err := engine.New(params, store, engine.Config{Stride: engine.DefaultStride, Interval: verifyLimit}, nil)
	if err != nil {
		return err
	}
	slow, err := e.Run(ctx)
	if err != nil {
		return err
	}
	if slow.Cmp(key) != 0 {
		return fmt.Errorf("trapdoor key %d disagrees with sequential key %d: factors are not prime", key, slow)
	}
	log.Printf("trapdoor key verified by %d squarings", params.T())
	return nil
}

func abbreviate(s string) string {
	if len(s) <= 80 {
		return s
	}
	return s[:38] + "..." + s[len(s)-38:]
}
