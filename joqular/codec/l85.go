// Package codec renders binary keys as printable text that sorts in the same
// order as the bytes it encodes.
package codec

import (
	"errors"
	"fmt"
)

// Alphabet is the L85 digit set in ascending ASCII order, so lexical order of
// encoded strings matches byte order of the input.
const Alphabet = "!$%&()+,-./" +
	"0123456789:;<=>@" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ[]_`" +
	"abcdefghijklmnopqrstuvwxyz{}"

// ErrInvalidCharacter indicates a character outside Alphabet
var ErrInvalidCharacter = errors.New("invalid L85 character")

// digit value + 1 per character; 0 marks characters outside the alphabet
var digits [256]byte

func init() {
	for i := 0; i < len(Alphabet); i++ {
		digits[Alphabet[i]] = byte(i + 1)
	}
}

// EncodedLen returns the length of the encoding of n bytes
func EncodedLen(n int) int {
	full, rem := n/4, n%4
	if rem == 0 {
		return full * 5
	}
	return full*5 + rem + 1
}

// Encode encodes src. Every 4 bytes become 5 characters; a trailing group of
// k bytes becomes k+1 characters.
func Encode(src []byte) string {
	return string(AppendEncode(make([]byte, 0, EncodedLen(len(src))), src))
}

// AppendEncode appends the encoding of src to dst
func AppendEncode(dst, src []byte) []byte {
	for len(src) > 0 {
		var group [4]byte
		n := copy(group[:], src)
		src = src[n:]

		v := uint32(group[0])<<24 | uint32(group[1])<<16 | uint32(group[2])<<8 | uint32(group[3])
		var out [5]byte
		for j := 4; j >= 0; j-- {
			out[j] = Alphabet[v%85]
			v /= 85
		}
		dst = append(dst, out[:n+1]...)
	}
	return dst
}

// Decode reverses Encode
func Decode(src string) ([]byte, error) {
	out := make([]byte, 0, len(src)*4/5+4)
	for len(src) > 0 {
		n := len(src)
		if n > 5 {
			n = 5
		}
		if n == 1 {
			return nil, errors.New("invalid L85 encoding: incomplete group")
		}

		var v uint32
		for j := 0; j < 5; j++ {
			// short groups are padded with the highest digit
			var d byte = 85
			if j < n {
				d = digits[src[j]]
				if d == 0 {
					return nil, fmt.Errorf("%w: %q", ErrInvalidCharacter, src[j])
				}
			}
			v = v*85 + uint32(d-1)
		}

		group := [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
		out = append(out, group[:n-1]...)
		src = src[n:]
	}
	return out, nil
}
