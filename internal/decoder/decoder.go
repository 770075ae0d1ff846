package decoder

import (
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/naseridev/deepscene/internal/format"
	"github.com/naseridev/deepscene/internal/stegerr"
)

// Below this many payload bytes the fan-out costs more than it saves.
const parallelThreshold = 64 * 1024

// Extractor recovers embedded payloads from carriers.
// Workers > 1 splits byte unpacking over disjoint output ranges; every
// output byte maps to a fixed bit range, so the result does not depend on it.
type Extractor struct {
	Workers int
}

// ExtractData runs a sequential Extractor
func ExtractData(img *image.NRGBA) ([]byte, error) {
	return (&Extractor{}).Extract(img)
}

// Extract validates the header and returns the payload it describes
func (e *Extractor) Extract(img *image.NRGBA) ([]byte, error) {
	src, err := newBitStream(img)
	if err != nil {
		return nil, err
	}

	header, err := src.header()
	if err != nil {
		return nil, err
	}

	length := uint64(header.Length)
	if length == 0 {
		return nil, stegerr.Data("no embedded data detected")
	}

	if length > format.MAX_DATA_LENGTH {
		return nil, stegerr.Data("invalid data length detected (%d bytes). Maximum is %d MB.",
			length, format.MAX_DATA_LENGTH/(1024*1024))
	}

	needed := format.HEADER_BITS + length*format.BITS_PER_BYTE
	if needed > src.total {
		return nil, stegerr.Data("image capacity exceeded. Required: %d bits. Available: %d bits",
			needed, src.total)
	}

	if needed > src.available {
		return nil, stegerr.Data("cannot extract data: need %d bits but only %d bits available",
			needed, src.available)
	}

	return e.unpack(src, format.HEADER_BITS, length)
}

// ProbeHeader reads and validates only the header
func ProbeHeader(img *image.NRGBA) (format.Header, error) {
	src, err := newBitStream(img)
	if err != nil {
		return format.Header{}, err
	}
	return src.header()
}

func (e *Extractor) unpack(src *bitStream, startBit, length uint64) ([]byte, error) {
	out := make([]byte, length)

	workers := uint64(max(e.Workers, 1))
	if workers == 1 || length < parallelThreshold {
		if err := src.readBytes(out, startBit); err != nil {
			return nil, err
		}
		return out, nil
	}

	var g errgroup.Group
	g.SetLimit(int(workers))

	span := (length + workers - 1) / workers
	for lo := uint64(0); lo < length; lo += span {
		lo := lo
		hi := min(lo+span, length)
		g.Go(func() error {
			return src.readBytes(out[lo:hi], startBit+lo*format.BITS_PER_BYTE)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// bitStream addresses channel LSBs by bit index
type bitStream struct {
	pix       []byte
	width     int
	stride    int
	total     uint64 // channel bits in the image
	available uint64 // bits we are willing to read
}

func newBitStream(img *image.NRGBA) (*bitStream, error) {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	if err := format.ValidateDimensions(width, height); err != nil {
		return nil, err
	}

	total := format.TotalBits(width, height)
	// Bound the work before the length field has even been read.
	available := min(total, format.HEADER_BITS+uint64(format.MAX_DATA_LENGTH)*format.BITS_PER_BYTE)

	if available < format.HEADER_BITS {
		return nil, stegerr.Data("image dimensions insufficient for data extraction")
	}

	return &bitStream{
		pix:       img.Pix,
		width:     width,
		stride:    img.Stride,
		total:     total,
		available: available,
	}, nil
}

func (s *bitStream) header() (format.Header, error) {
	raw := make([]byte, format.HEADER_SIZE)
	if err := s.readBytes(raw, 0); err != nil {
		return format.Header{}, err
	}
	return format.ParseHeader(raw)
}

func (s *bitStream) bit(index uint64) (byte, error) {
	if index >= s.available {
		return 0, stegerr.Data("unexpected end of data while extracting")
	}
	return s.pix[format.ChannelOffset(index, s.width, s.stride)] & 1, nil
}

// readBytes packs bits MSB-first into dst, starting at startBit
func (s *bitStream) readBytes(dst []byte, startBit uint64) error {
	bitIndex := startBit
	for i := range dst {
		var b byte
		for j := 0; j < 8; j++ {
			bit, err := s.bit(bitIndex)
			if err != nil {
				return err
			}
			b = b<<1 | bit
			bitIndex++
		}
		dst[i] = b
	}
	return nil
}
