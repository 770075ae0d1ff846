// Package compression wraps raw DEFLATE with a "keep it only if it helps" rule.
package compression

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/naseridev/deepscene/internal/format"
	"github.com/naseridev/deepscene/internal/stegerr"
)

// Compress deflates data at maximum effort. The compressed form is returned
// only when it is strictly smaller than 95% of the input; otherwise data is
// returned unchanged and applied is false.
func Compress(data []byte) (out []byte, applied bool, err error) {
	var buf bytes.Buffer
	writer, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, false, stegerr.Compression(err, "failed to create compressor")
	}

	if _, err := writer.Write(data); err != nil {
		return nil, false, stegerr.Compression(err, "failed to compress data")
	}
	if err := writer.Close(); err != nil {
		return nil, false, stegerr.Compression(err, "failed to finalize compression")
	}

	compressed := buf.Bytes()
	if !Worthwhile(len(data), len(compressed)) {
		return data, false, nil
	}
	return compressed, true, nil
}

// Worthwhile applies the threshold: compressed < floor(original*95/100)
func Worthwhile(originalSize, compressedSize int) bool {
	threshold := originalSize * format.COMPRESSION_THRESHOLD_PERCENT / 100
	return compressedSize < threshold
}

// Decompress inflates a raw DEFLATE stream
func Decompress(data []byte) ([]byte, error) {
	reader := flate.NewReader(bytes.NewReader(data))
	defer reader.Close()

	// Bound the output so a crafted stream cannot expand without limit.
	limited := io.LimitReader(reader, format.MAX_DATA_LENGTH+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, stegerr.Compression(err, "failed to decompress data")
	}
	if len(out) > format.MAX_DATA_LENGTH {
		return nil, stegerr.Compression(nil, "decompressed data exceeds %d MB", format.MAX_DATA_LENGTH/(1024*1024))
	}
	return out, nil
}
