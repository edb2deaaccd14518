// Package puzzle holds the immutable parameters of a time-lock puzzle: the
// modulus N, the squaring count T and the ciphertext Z.
package puzzle

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sort"

	"TimeLock/common"
)

var (
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	ErrInvalidModulus      = errors.New("invalid modulus")
	ErrMalformedParameters = errors.New("malformed puzzle parameters")
	ErrUnknownPreset       = errors.New("unknown preset")
)

// Parameters is the (N, T, Z) tuple. Accessors return copies so a value can
// be shared freely once constructed.
type Parameters struct {
	n *big.Int
	t uint64
	z *big.Int
}

// New validates and copies the parameters. N must be at least 2 and Z must be
// non-negative.
func New(n *big.Int, t uint64, z *big.Int) (Parameters, error) {
	if n == nil || n.Cmp(big.NewInt(2)) < 0 {
		return Parameters{}, fmt.Errorf("%w: N must be at least 2", ErrInvalidModulus)
	}
	if z == nil {
		return Parameters{}, fmt.Errorf("%w: Z is missing", ErrMalformedCiphertext)
	}
	if z.Sign() < 0 {
		return Parameters{}, fmt.Errorf("%w: Z is negative", ErrMalformedCiphertext)
	}
	return Parameters{
		n: new(big.Int).Set(n),
		t: t,
		z: new(big.Int).Set(z),
	}, nil
}

// Parse builds parameters from their textual forms. N and Z accept decimal or
// 0x hex, T accepts counts such as "10G".
func Parse(n, t, z string) (Parameters, error) {
	nn, err := common.DecodeBig(n)
	if err != nil {
		return Parameters{}, fmt.Errorf("%w: n: %v", ErrMalformedParameters, err)
	}
	tt, err := common.DecodeLimit(t, false)
	if err != nil {
		return Parameters{}, fmt.Errorf("%w: t: %v", ErrMalformedParameters, err)
	}
	zz, err := common.DecodeBig(z)
	if err != nil {
		return Parameters{}, fmt.Errorf("%w: z: %v", ErrMalformedCiphertext, err)
	}
	return New(nn, tt, zz)
}

func (p Parameters) N() *big.Int { return new(big.Int).Set(p.n) }
func (p Parameters) T() uint64   { return p.t }
func (p Parameters) Z() *big.Int { return new(big.Int).Set(p.z) }

// Reduced reports whether x lies in [0, N).
func (p Parameters) Reduced(x *big.Int) bool {
	return x.Sign() >= 0 && x.Cmp(p.n) < 0
}

// Fingerprint identifies the (N, T) pair. Checkpoints carry it so that a
// record computed for one puzzle is never resumed against another.
func (p Parameters) Fingerprint() string {
	h := sha256.New()
	h.Write(p.n.Bytes())
	var tb [8]byte
	binary.BigEndian.PutUint64(tb[:], p.t)
	h.Write(tb[:])
	return hex.EncodeToString(h.Sum(nil))
}

func (p Parameters) String() string {
	return fmt.Sprintf("N: %d bits, T: %d, Z: %d bits", p.n.BitLen(), p.t, p.z.BitLen())
}

// File is the JSON form of a parameter file. All values are strings so that
// numbers of any size survive the round trip.
type File struct {
	N string `json:"n"`
	T string `json:"t"`
	Z string `json:"z"`
}

// Load reads a parameter file.
func Load(name string) (Parameters, error) {
	txt, err := os.ReadFile(name)
	if err != nil {
		return Parameters{}, err
	}
	var f File
	if err := json.Unmarshal(txt, &f); err != nil {
		return Parameters{}, fmt.Errorf("%w: %s: %v", ErrMalformedParameters, name, err)
	}
	return Parse(f.N, f.T, f.Z)
}

var presets = map[string]File{
	// December 22, 2021 puzzle modelled on Rivest's LCS35
	"xmas": {
		N: "5282449308163313563859644746297215365863349077961746596247430181965949736011111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111058286618029477975472514663648138957452477620331493645148636809291451613751",
		T: "9999999996",
		Z: "668982906662259241898499065103473245960164961956379608176477385568916730412708940627183786580130305413916213903107370821687807114455622233129065284523542286660747383208859057005014109901179025180585657310560580373893562272798582372082139636432607739424027324558809706621124173160967213211956896669859138626558962483744668579313732058599658824157337817420528373805887095539165385293563750768",
	},
	"toy": {
		N: "253",
		T: "10",
		Z: "0x13",
	},
}

// Preset returns one of the built-in puzzles.
func Preset(name string) (Parameters, error) {
	f, ok := presets[name]
	if !ok {
		return Parameters{}, fmt.Errorf("%w %q (have %v)", ErrUnknownPreset, name, Presets())
	}
	return Parse(f.N, f.T, f.Z)
}

func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
