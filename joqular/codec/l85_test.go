package codec

import (
	"bytes"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		{0xFF},
		{0x01, 0x02},
		[]byte("Person@0190d6"),
		{0x00, 0x00, 0x00, 0x00, 0x00},
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	}

	for _, in := range inputs {
		enc := Encode(in)
		assert.Len(t, enc, EncodedLen(len(in)))

		dec, err := Decode(enc)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(in, dec), "round trip of %x gave %x", in, dec)
	}
}

func TestSortOrder(t *testing.T) {
	// Equal-length inputs keep their order once encoded
	inputs := [][]byte{
		[]byte("\x02Person\x00name\x00\x05joe\x00\x01"),
		[]byte("\x02Person\x00name\x00\x05ann\x00\x01"),
		[]byte("\x02Person\x00age\x00\x04\xc0\x35\x00\x00"),
		[]byte("\x01Person@0001\x00\x00\x00\x00\x00\x00"),
		[]byte("\x03Person\xff\xff\xff\xff\xff\xff\xff\xff\xff"),
	}
	for i := range inputs {
		for len(inputs[i]) < 20 {
			inputs[i] = append(inputs[i], 0)
		}
		inputs[i] = inputs[i][:20]
	}

	encoded := make([]string, len(inputs))
	for i, in := range inputs {
		encoded[i] = Encode(in)
	}

	sort.Slice(inputs, func(i, j int) bool { return bytes.Compare(inputs[i], inputs[j]) < 0 })
	sort.Strings(encoded)

	for i := range inputs {
		assert.Equal(t, Encode(inputs[i]), encoded[i])
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode("abc\"d")
	assert.True(t, errors.Is(err, ErrInvalidCharacter))

	_, err = Decode("!!!!!!")
	assert.Error(t, err)
}
