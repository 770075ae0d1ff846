package format

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/naseridev/deepscene/internal/stegerr"
)

// Steganography constants
const (
	HEADER_SIZE   = 10              // Magic(4) + Length(4) + Checksum(2)
	HEADER_BITS   = HEADER_SIZE * 8 // Bits occupied by the header
	BITS_PER_BYTE = 8               // Standard byte size
	CHANNELS      = 3               // RGB channels, alpha is never touched

	MAX_IMAGE_DIMENSION = 20000             // Per side, in pixels
	MAX_DATA_LENGTH     = 256 * 1024 * 1024 // Hard cap on the embedded payload
	MAX_FILE_SIZE       = 256 * 1024 * 1024 // Hard cap on the hidden file
	MAX_FILENAME_LENGTH = 255               // Bytes, stored in a single length byte
)

// Security constants
const (
	SALT_SIZE     = 16 // Argon2 salt
	NONCE_SIZE    = 12 // ChaCha20 (IETF) nonce
	KEY_SIZE      = 32 // ChaCha20 key
	CHECKSUM_SIZE = 16 // Truncated BLAKE3 of the plaintext

	// Argon2id parameters. Changing any of these makes existing images undecryptable.
	ARGON2_TIME    = 2
	ARGON2_MEMORY  = 19 * 1024 // KiB
	ARGON2_THREADS = 1

	MIN_ENCRYPTED_SIZE = SALT_SIZE + NONCE_SIZE + CHECKSUM_SIZE
)

// Payload flags
const (
	FLAG_OFF byte = 0
	FLAG_ON  byte = 1

	// Compression is kept only when the output is below this share of the input.
	COMPRESSION_THRESHOLD_PERCENT = 95
)

// MAGIC marks the start of an embedded payload
var MAGIC = [4]byte{'D', 'P', 'S', 'N'}

// Header precedes the payload in bit order
type Header struct {
	Magic    [4]byte
	Length   uint32
	Checksum uint16
}

// NewHeader builds a header for a payload of the given length
func NewHeader(length uint32) Header {
	h := Header{Magic: MAGIC, Length: length}
	raw := h.Marshal()
	h.Checksum = Checksum(raw[:8])
	return h
}

// Marshal serializes the header, big-endian
func (h Header) Marshal() [HEADER_SIZE]byte {
	var raw [HEADER_SIZE]byte
	copy(raw[:4], h.Magic[:])
	binary.BigEndian.PutUint32(raw[4:8], h.Length)
	binary.BigEndian.PutUint16(raw[8:10], h.Checksum)
	return raw
}

// ParseHeader validates magic and checksum before the length is trusted.
func ParseHeader(raw []byte) (Header, error) {
	if len(raw) < HEADER_SIZE {
		return Header{}, stegerr.Data("image dimensions insufficient for data extraction")
	}

	var h Header
	copy(h.Magic[:], raw[:4])
	if !bytes.Equal(h.Magic[:], MAGIC[:]) {
		return Header{}, stegerr.Data("no embedded data detected. This image does not appear to contain steganographic content")
	}

	h.Length = binary.BigEndian.Uint32(raw[4:8])
	h.Checksum = binary.BigEndian.Uint16(raw[8:10])

	if h.Checksum != Checksum(raw[:8]) {
		return Header{}, stegerr.Data("data integrity check failed. The embedded data may be corrupted")
	}

	return h, nil
}

// Checksum is the wrapping 16-bit sum of data.
// It only catches accidental corruption.
func Checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// ValidateDimensions rejects empty and oversized carriers
func ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return stegerr.Validation("image has invalid dimensions")
	}
	if width > MAX_IMAGE_DIMENSION || height > MAX_IMAGE_DIMENSION {
		return stegerr.Validation("image dimensions too large (%dx%d). Maximum is %dx%d pixels",
			width, height, MAX_IMAGE_DIMENSION, MAX_IMAGE_DIMENSION)
	}
	return nil
}

// TotalBits is the number of usable channel bits in a width x height carrier
func TotalBits(width, height int) uint64 {
	return uint64(width) * uint64(height) * CHANNELS
}

// Capacity returns how many bytes (header included) a carrier can hold
func Capacity(width, height int) uint64 {
	return TotalBits(width, height) / BITS_PER_BYTE
}

// MinSquareDimension suggests the side of the smallest square carrier
// that fits required bytes.
func MinSquareDimension(required uint64) uint64 {
	bits := required * BITS_PER_BYTE
	pixels := (bits + CHANNELS - 1) / CHANNELS

	side := uint64(math.Ceil(math.Sqrt(float64(pixels))))
	for side > 0 && (side-1)*(side-1) >= pixels {
		side--
	}
	for side*side < pixels {
		side++
	}
	return side
}

// ChannelOffset maps a bit index to its byte in an NRGBA Pix slice.
// Bits run row-major over pixels, and R, G, B within a pixel.
func ChannelOffset(bit uint64, width, stride int) int {
	pixel := bit / CHANNELS
	y := pixel / uint64(width)
	x := pixel % uint64(width)
	return int(y)*stride + int(x)*4 + int(bit%CHANNELS)
}
