package decoder

import (
	"image"
	"math"

	"github.com/naseridev/deepscene/internal/format"
)

// Cap on pixels sampled by AnalyzeLSB
const maxSamplePixels = 1 << 20

// LSBStats summarizes the least significant bits of a carrier
type LSBStats struct {
	Pixels    int     // pixels sampled
	Zeros     int     // LSBs equal to 0
	Ones      int     // LSBs equal to 1
	ZeroRatio float64 // percentage of zeros
	Entropy   float64 // Shannon entropy of the LSB byte stream, bits per byte (max 8)
}

// LooksRandom reports whether the sampled LSBs are balanced, as encrypted or
// compressed payloads tend to be.
func (s LSBStats) LooksRandom() bool {
	return s.ZeroRatio > 45 && s.ZeroRatio < 55
}

// AnalyzeLSB samples the R, G, B least significant bits in embedding order
func AnalyzeLSB(img *image.NRGBA) LSBStats {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	pixels := min(width*height, maxSamplePixels)
	if pixels <= 0 {
		return LSBStats{}
	}

	var stats LSBStats
	stats.Pixels = pixels

	frequency := make(map[byte]int)
	packed := 0
	bitBuffer := byte(0)
	bitCount := 0

	totalBits := uint64(pixels) * format.CHANNELS
	for i := uint64(0); i < totalBits; i++ {
		bit := img.Pix[format.ChannelOffset(i, width, img.Stride)] & 1
		if bit == 0 {
			stats.Zeros++
		} else {
			stats.Ones++
		}

		bitBuffer = bitBuffer<<1 | bit
		bitCount++
		if bitCount == 8 {
			frequency[bitBuffer]++
			packed++
			bitBuffer = 0
			bitCount = 0
		}
	}

	stats.ZeroRatio = float64(stats.Zeros) / float64(stats.Zeros+stats.Ones) * 100

	total := float64(packed)
	for _, count := range frequency {
		p := float64(count) / total
		if p > 0 {
			stats.Entropy -= p * math.Log2(p)
		}
	}

	return stats
}
