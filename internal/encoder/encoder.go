package encoder

import (
	"image"

	"github.com/naseridev/deepscene/internal/format"
	"github.com/naseridev/deepscene/internal/stegerr"
)

// EmbedBit modifies the LSB of a color value to store a bit
func EmbedBit(colorValue uint8, bit bool) uint8 {
	if bit {
		// Set LSB to 1: use bitwise OR with 1
		return colorValue | 1
	}
	// Set LSB to 0: use bitwise AND with 254 (11111110)
	return colorValue & 0xFE
}

// HideData writes header + payload into the least significant bits of img.
// Pixels past the last written bit are left untouched, as is every alpha
// channel. img is modified in place and only if the payload fits.
func HideData(img *image.NRGBA, payload []byte) error {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	if err := format.ValidateDimensions(width, height); err != nil {
		return err
	}

	capacity := format.Capacity(width, height)
	required := uint64(len(payload)) + format.HEADER_SIZE

	if required > capacity {
		maxData := uint64(0)
		if capacity > format.HEADER_SIZE {
			maxData = capacity - format.HEADER_SIZE
		}
		side := format.MinSquareDimension(required)
		return stegerr.Validation(
			"data too large for image. Image can hold %d bytes, but %d bytes needed. Try using an image at least %dx%d pixels.",
			maxData, len(payload), side, side)
	}

	header := format.NewHeader(uint32(len(payload))).Marshal()

	writeBits(img, header[:], 0)
	writeBits(img, payload, format.HEADER_BITS)

	return nil
}

// writeBits stores data MSB-first starting at channel bit startBit
func writeBits(img *image.NRGBA, data []byte, startBit uint64) {
	width := img.Rect.Dx()

	bitIndex := startBit
	for _, b := range data {
		for j := 7; j >= 0; j-- {
			offset := format.ChannelOffset(bitIndex, width, img.Stride)
			img.Pix[offset] = EmbedBit(img.Pix[offset], (b>>j)&1 == 1)
			bitIndex++
		}
	}
}
