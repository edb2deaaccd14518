package main

import (
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/profile"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"TimeLock/common"
	"TimeLock/mp"
	"TimeLock/puzzle"
)

/*
Measures how fast each squaring backend runs at a range of strides so the
default stride can be picked for a given machine and modulus size.

A stride of k evaluates x^(2^k) mod N in one call instead of k separate
squarings. Larger strides save call overhead, but the gain flattens out and
past some point the bigger exponent costs more than it saves.
*/
func main() {
	preset := flag.String("preset", "xmas", fmt.Sprintf("take N from a built-in puzzle, one of %v", puzzle.Presets()))
	bits := flag.Int("bits", 0, "use a random odd modulus of this many bits instead of -preset")
	countString := flag.String("count", "20_000", "squarings per measurement. Can use M, G, T, P and E as power of ten")
	strideList := flag.String("strides", "1,2,4,8,16,32,64", "comma separated strides to try")
	backendList := flag.String("backends", strings.Join(mp.Backends(), ","), "comma separated backends to try")
	cpu := flag.Bool("cpuprofile", false, "write a cpu profile to the current directory")
	verbose := flag.Bool("verbose", false, "verbose output")
	flag.Parse()

	if *cpu {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	}

	count, err := common.DecodeLimit(*countString, *verbose)
	if err != nil {
		log.Fatal(err)
	}
	strides, err := parseStrides(*strideList)
	if err != nil {
		log.Fatal(err)
	}
	n, err := modulus(*preset, *bits)
	if err != nil {
		log.Fatal(err)
	}

	p := message.NewPrinter(language.English)
	_, _ = p.Printf("%d-bit modulus, %d squarings per run\n", n.BitLen(), count)
	fmt.Printf("%12s %8s %14s %10s\n", "backend", "stride", "squarings/s", "relative")

	for _, name := range strings.Split(*backendList, ",") {
		name = strings.TrimSpace(name)
		s, err := mp.NewSquarer(name, n)
		if err != nil {
			log.Printf("skipping %s: %v", name, err)
			continue
		}
		var base float64
		for _, k := range strides {
			rate := measure(s, n, k, count)
			if base == 0 {
				base = rate
			}
			_, _ = p.Printf("%12s %8d %14.0f %10.2f\n", name, k, rate, rate/base)
		}
	}
}

// measure returns squarings per second for count squarings done k at a time.
func measure(s mp.Squarer, n *big.Int, k, count uint64) float64 {
	x := new(big.Int).Mod(big.NewInt(2), n)
	t0 := time.Now()
	for done := uint64(0); done < count; {
		step := min(k, count-done)
		s.Square(x, x, step)
		done += step
	}
	return float64(count) / time.Since(t0).Seconds()
}

func parseStrides(list string) ([]uint64, error) {
	var out []uint64
	for _, f := range strings.Split(list, ",") {
		k, err := strconv.ParseUint(strings.TrimSpace(f), 10, 64)
		if err != nil || k == 0 {
			return nil, fmt.Errorf("bad stride %q", f)
		}
		out = append(out, k)
	}
	return out, nil
}

func modulus(preset string, bits int) (*big.Int, error) {
	if bits <= 0 {
		params, err := puzzle.Preset(preset)
		if err != nil {
			return nil, err
		}
		return params.N(), nil
	}
	if bits < 3 {
		return nil, errors.New("-bits must be at least 3")
	}
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), uint(bits)))
	if err != nil {
		return nil, err
	}
	n.SetBit(n, bits-1, 1)
	n.SetBit(n, 0, 1)
	return n, nil
}
