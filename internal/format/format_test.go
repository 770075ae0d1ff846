package format

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naseridev/deepscene/internal/stegerr"
)

func TestCapacity(t *testing.T) {
	tests := []struct {
		width, height int
		want          uint64
	}{
		{100, 100, 3750},
		{1, 1, 0},
		{3, 1, 1},
		{5, 5, 9},
		{20000, 20000, 150000000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Capacity(tt.width, tt.height), "%dx%d", tt.width, tt.height)
	}
}

func TestValidateDimensions(t *testing.T) {
	assert.NoError(t, ValidateDimensions(1, 1))
	assert.NoError(t, ValidateDimensions(MAX_IMAGE_DIMENSION, MAX_IMAGE_DIMENSION))

	for _, dims := range [][2]int{{0, 10}, {10, 0}, {MAX_IMAGE_DIMENSION + 1, 1}, {1, MAX_IMAGE_DIMENSION + 1}} {
		err := ValidateDimensions(dims[0], dims[1])
		assert.True(t, errors.Is(err, stegerr.ErrValidation), "%v", dims)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader(0x01020304)
	raw := h.Marshal()

	assert.Equal(t, []byte("DPSN"), raw[:4])
	assert.Equal(t, []byte{1, 2, 3, 4}, raw[4:8])
	// 'D'+'P'+'S'+'N' + 1+2+3+4 = 309 + 10 = 0x013f
	assert.Equal(t, []byte{0x01, 0x3f}, raw[8:10])

	parsed, err := ParseHeader(raw[:])
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
	assert.Equal(t, uint32(0x01020304), parsed.Length)
}

func TestChecksumWraps(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = 0xff
	}
	assert.Equal(t, uint16(300*0xff%65536), Checksum(data))

	big := make([]byte, 258)
	for i := range big {
		big[i] = 0xff
	}
	// 258*255 = 65790 wraps to 254
	assert.Equal(t, uint16(254), Checksum(big))
}

func TestParseHeader_SingleBitFlips(t *testing.T) {
	raw := NewHeader(42).Marshal()

	for bit := 0; bit < HEADER_BITS; bit++ {
		corrupted := raw
		corrupted[bit/8] ^= 0x80 >> (bit % 8)

		_, err := ParseHeader(corrupted[:])
		require.Error(t, err, "bit %d", bit)
		assert.True(t, errors.Is(err, stegerr.ErrData), "bit %d: %v", bit, err)
	}
}

func TestParseHeader_Errors(t *testing.T) {
	_, err := ParseHeader([]byte("DPSN"))
	assert.True(t, errors.Is(err, stegerr.ErrData))

	raw := NewHeader(7).Marshal()
	raw[0] = 'X'
	_, err = ParseHeader(raw[:])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no embedded data detected")

	raw = NewHeader(7).Marshal()
	raw[9]++
	_, err = ParseHeader(raw[:])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integrity check failed")
}

func TestMinSquareDimension(t *testing.T) {
	tests := []struct {
		required uint64
		want     uint64
	}{
		{0, 0},
		{1, 2},          // 8 bits -> 3 pixels -> 2x2
		{3, 3},          // 24 bits -> 8 pixels -> 3x3
		{3750, 100},     // exactly a 100x100 carrier
		{3751, 101},     // one byte more
		{10, 6},         // 80 bits -> 27 pixels -> 6x6
		{1 << 20, 1673}, // 8388608 bits -> 2796203 pixels
	}

	for _, tt := range tests {
		got := MinSquareDimension(tt.required)
		assert.Equal(t, tt.want, got, "required=%d", tt.required)
		assert.GreaterOrEqual(t, Capacity(int(got), int(got)), tt.required)
	}
}

func TestChannelOffset(t *testing.T) {
	const width, stride = 4, 16

	tests := []struct {
		bit  uint64
		want int
	}{
		{0, 0},   // pixel 0 R
		{1, 1},   // pixel 0 G
		{2, 2},   // pixel 0 B
		{3, 4},   // pixel 1 R, alpha at 3 skipped
		{11, 14}, // pixel 3 B
		{12, 16}, // pixel 4 wraps to row 1
		{14, 18},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChannelOffset(tt.bit, width, stride), "bit %d", tt.bit)
	}

	// A wider stride (sub-image) only shifts rows.
	assert.Equal(t, 40, ChannelOffset(12, width, 40))
}
