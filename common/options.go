package common

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

var ErrBadCount = errors.New("unrecognized count")

var decoder = regexp.MustCompile(`^([0-9_]+)([MGTPE]*)$`)

// DecodeLimit parses counts such as "10M", "1_000" or "10G". Each suffix letter
// multiplies by the matching power of ten, so "1GM" is 10^15.
func DecodeLimit(limitString string, verbose bool) (uint64, error) {
	pieces := decoder.FindStringSubmatch(strings.TrimSpace(limitString))
	if pieces == nil {
		return 0, fmt.Errorf("%w: %q", ErrBadCount, limitString)
	}
	limit, err := strconv.ParseUint(strings.ReplaceAll(pieces[1], "_", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrBadCount, limitString, err)
	}
	for _, s := range pieces[2] {
		var scale uint64
		switch s {
		case 'M':
			scale = 1_000_000
		case 'G':
			scale = 1_000_000_000
		case 'T':
			scale = 1_000_000_000_000
		case 'P':
			scale = 1_000_000_000_000_000
		case 'E':
			scale = 1_000_000_000_000_000_000
		}
		if limit > math.MaxUint64/scale {
			return 0, fmt.Errorf("%w: %q overflows 64 bits", ErrBadCount, limitString)
		}
		limit *= scale
	}
	if verbose {
		if limit >= 1_000_000_000_000_000 {
			log.Printf(`Limit: %.1fP`, float64(limit)/1e15)
		} else if limit >= 1_000_000_000_000 {
			log.Printf(`Limit: %.1fT`, float64(limit)/1e12)
		} else if limit >= 1_000_000_000 {
			log.Printf(`Limit: %.1fG`, float64(limit)/1e9)
		} else if limit >= 1_000_000 {
			log.Printf(`Limit: %.1fM`, float64(limit)/1e6)
		} else {
			log.Printf("Limit: %d", limit)
		}
	}
	return limit, nil
}

// DecodeBig parses an arbitrarily large integer. Decimal, 0x hex, 0o octal and
// 0b binary forms are accepted, as are underscores between digits.
func DecodeBig(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty integer")
	}
	z, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("malformed integer %q", abbreviate(s))
	}
	return z, nil
}

// abbreviate keeps error messages readable when the input is a 600 digit number.
func abbreviate(s string) string {
	if len(s) <= 40 {
		return s
	}
	return s[:20] + "..." + s[len(s)-20:]
}
