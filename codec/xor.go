// Package codec recovers the puzzle message by XORing the ciphertext with a
// repeating key.
//
// The key is repeated with an offset of len(data) mod len(key), so byte j of
// the data meets key byte (j + len(data) mod len(key)) mod len(key). When
// len(data) mod len(key) is zero or half the key length this puts the last
// key byte on the last data byte. The puzzle was encoded this way; a plain
// left-aligned repeating XOR decodes it wrongly.
package codec

import (
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

var (
	ErrEmptyKey = errors.New("empty key")
	// ErrUnrepresentable is returned by Encode when the ciphertext would
	// begin with a zero byte, which its integer form cannot carry.
	ErrUnrepresentable = errors.New("ciphertext not representable as an integer")
	ErrInvalidText     = errors.New("plaintext is not valid UTF-8")
)

// XOR applies the repeating key to data and returns a new slice. It is its
// own inverse.
func XOR(data, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	out := make([]byte, len(data))
	offset := len(data) % len(key)
	for j := range data {
		out[j] = data[j] ^ key[(j+offset)%len(key)]
	}
	return out, nil
}

// Decode XORs the big-endian bytes of z with the big-endian bytes of key.
// Neither carries leading zero bytes, so z == 0 decodes to an empty message.
func Decode(z, key *big.Int) ([]byte, error) {
	if z == nil || z.Sign() < 0 {
		return nil, errors.New("ciphertext must be a non-negative integer")
	}
	if key == nil || key.Sign() == 0 {
		return nil, ErrEmptyKey
	}
	if key.Sign() < 0 {
		return nil, errors.New("key must be positive")
	}
	return XOR(z.Bytes(), key.Bytes())
}

// Encode is the inverse of Decode for plaintexts whose ciphertext has a
// non-zero leading byte.
func Encode(plain []byte, key *big.Int) (*big.Int, error) {
	if key == nil || key.Sign() <= 0 {
		return nil, ErrEmptyKey
	}
	c, err := XOR(plain, key.Bytes())
	if err != nil {
		return nil, err
	}
	if len(c) > 0 && c[0] == 0 {
		return nil, ErrUnrepresentable
	}
	return new(big.Int).SetBytes(c), nil
}

// Text interprets a decoded message as UTF-8. A failure here means the key
// is wrong or the message is binary, not that the XOR went wrong.
func Text(plain []byte) (string, error) {
	b, _, err := transform.Bytes(encoding.UTF8Validator, plain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidText, err)
	}
	return string(b), nil
}
