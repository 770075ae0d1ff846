// Package pipeline wires framing, compression, encryption and the LSB codec
// into the encode and decode operations.
package pipeline

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/naseridev/deepscene/internal/config"
	"github.com/naseridev/deepscene/internal/decoder"
	"github.com/naseridev/deepscene/internal/encoder"
	"github.com/naseridev/deepscene/internal/fileio"
	"github.com/naseridev/deepscene/internal/format"
	"github.com/naseridev/deepscene/internal/imageio"
	"github.com/naseridev/deepscene/internal/payload"
)

// Embedding describes a payload written into a carrier
type Embedding struct {
	OriginalSize int // outer payload bytes before compression
	FinalSize    int // envelope bytes after the compression flag, excluding the stego header
	Encrypted    bool
	Compressed   bool
}

// Extracted is a file recovered from a carrier
type Extracted struct {
	Name       string
	Data       []byte
	Encrypted  bool
	Compressed bool
}

// EncodeImage frames data under name and hides it in img, which is modified
// in place. A nil password leaves the content unencrypted.
func EncodeImage(img *image.NRGBA, name string, data, password []byte) (*Embedding, error) {
	outer, err := payload.Build(name, data, password)
	if err != nil {
		return nil, err
	}

	envelope, compressed, err := payload.Seal(outer.Bytes)
	if err != nil {
		return nil, err
	}

	if err := encoder.HideData(img, envelope); err != nil {
		return nil, err
	}

	return &Embedding{
		OriginalSize: len(outer.Bytes),
		FinalSize:    len(envelope),
		Encrypted:    outer.Encrypted,
		Compressed:   compressed,
	}, nil
}

// DecodeImage recovers the file hidden in img
func DecodeImage(img *image.NRGBA, password []byte) (*Extracted, error) {
	envelope, err := decoder.ExtractData(img)
	if err != nil {
		return nil, err
	}

	outer, compressed, err := payload.Unseal(envelope)
	if err != nil {
		return nil, err
	}

	parsed, err := payload.Parse(outer)
	if err != nil {
		return nil, err
	}

	data, err := parsed.Open(password)
	if err != nil {
		return nil, err
	}

	return &Extracted{
		Name:       parsed.Name,
		Data:       data,
		Encrypted:  parsed.Encrypted,
		Compressed: compressed,
	}, nil
}

// Processor runs file-level operations with a given configuration
type Processor struct {
	conf      *config.Config
	extractor *decoder.Extractor
}

// New creates a Processor. A nil conf uses defaults.
func New(conf *config.Config) *Processor {
	if conf == nil {
		conf = config.Default()
	}
	return &Processor{
		conf:      conf,
		extractor: &decoder.Extractor{Workers: conf.Workers},
	}
}

// EncodeOptions selects the carrier, the file to hide and the output
type EncodeOptions struct {
	ImagePath  string
	FilePath   string
	OutputPath string // empty means <image dir>/<stem><suffix>.<format>
	Password   []byte // nil means no encryption
}

// EncodeResult reports what Encode wrote
type EncodeResult struct {
	OutputPath     string
	FileName       string
	OriginalSize   int
	FinalSize      int
	Encrypted      bool
	Compressed     bool
	ConvertedToPNG bool
}

// Encode hides a file inside an image and saves the result
func (p *Processor) Encode(opts EncodeOptions) (*EncodeResult, error) {
	converted := !imageio.IsLossless(opts.ImagePath)
	steps := &stepper{total: 5}
	if converted {
		steps.total++
	}

	workingPath := opts.ImagePath
	var carrier *image.NRGBA

	if converted {
		steps.next("converting image to lossless format (PNG)", zap.String("image", opts.ImagePath))
		if p.conf.KeepConverted {
			path, err := imageio.ConvertToLossless(opts.ImagePath)
			if err != nil {
				return nil, err
			}
			workingPath = path
		}

		img, _, err := imageio.Open(workingPath)
		if err != nil {
			return nil, err
		}
		carrier = img
		Logger().Info("converted to PNG format", zap.String("path", workingPath), zap.Bool("kept", p.conf.KeepConverted))
	}

	steps.next("reading file", zap.String("file", opts.FilePath))
	file, err := fileio.ReadFile(opts.FilePath)
	if err != nil {
		return nil, err
	}
	Logger().Info("file read successfully", zap.Int("bytes", len(file.Data)))

	steps.next("preparing payload", zap.Bool("encrypted", opts.Password != nil))
	outer, err := payload.Build(file.Name, file.Data, opts.Password)
	if err != nil {
		return nil, err
	}
	Logger().Info("payload prepared", zap.Int("bytes", len(outer.Bytes)))

	steps.next("analyzing and compressing data")
	envelope, compressed, err := payload.Seal(outer.Bytes)
	if err != nil {
		return nil, err
	}
	if compressed {
		processed := len(envelope) - 1
		reduction := float64(len(outer.Bytes)-processed) / float64(len(outer.Bytes)) * 100
		Logger().Info("compression applied",
			zap.Int("from", len(outer.Bytes)),
			zap.Int("to", processed),
			zap.String("reduction", fmt.Sprintf("%.2f%%", reduction)))
	} else {
		Logger().Info("compression skipped: would not reduce size", zap.Int("bytes", len(outer.Bytes)))
	}

	steps.next("validating output path")
	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = p.defaultEncodeOutput(opts.ImagePath)
	}
	if err := imageio.CheckOutputFormat(outputPath); err != nil {
		return nil, err
	}
	if err := fileio.ValidateOutputPath(outputPath); err != nil {
		return nil, err
	}
	Logger().Info("output path validated", zap.String("output", outputPath))

	steps.next("embedding data into image")
	if carrier == nil {
		img, _, err := imageio.Open(workingPath)
		if err != nil {
			return nil, err
		}
		carrier = img
	}

	if err := encoder.HideData(carrier, envelope); err != nil {
		return nil, err
	}
	if err := imageio.Save(carrier, outputPath); err != nil {
		return nil, err
	}
	Logger().Info("data embedded successfully", zap.Int("bytes", len(envelope)+format.HEADER_SIZE))

	return &EncodeResult{
		OutputPath:     outputPath,
		FileName:       file.Name,
		OriginalSize:   len(outer.Bytes),
		FinalSize:      len(envelope),
		Encrypted:      outer.Encrypted,
		Compressed:     compressed,
		ConvertedToPNG: converted,
	}, nil
}

func (p *Processor) defaultEncodeOutput(imagePath string) string {
	base := filepath.Base(imagePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "output"
	}
	return filepath.Join(filepath.Dir(imagePath), stem+p.conf.OutputSuffix+"."+p.conf.OutputFormat)
}

// DecodeOptions selects the carrier and where to write the recovered file
type DecodeOptions struct {
	ImagePath  string
	OutputPath string // empty means the embedded name, in the working directory
	Password   []byte // must be non-nil exactly when the file is encrypted
}

// DecodeResult reports what Decode wrote
type DecodeResult struct {
	OutputPath string
	FileName   string
	FileSize   int
	Encrypted  bool
	Compressed bool
}

// Decode extracts the hidden file from an image and writes it out
func (p *Processor) Decode(opts DecodeOptions) (*DecodeResult, error) {
	steps := &stepper{total: 4}

	steps.next("extracting data from image", zap.String("image", opts.ImagePath))
	img, _, err := imageio.Open(opts.ImagePath)
	if err != nil {
		return nil, err
	}
	envelope, err := p.extractor.Extract(img)
	if err != nil {
		return nil, err
	}
	Logger().Info("extracted", zap.Int("bytes", len(envelope)))

	steps.next("processing data")
	outer, compressed, err := payload.Unseal(envelope)
	if err != nil {
		return nil, err
	}
	if compressed {
		Logger().Info("decompressed", zap.Int("from", len(envelope)-1), zap.Int("to", len(outer)))
	} else {
		Logger().Info("no compression detected")
	}

	steps.next("parsing metadata")
	parsed, err := payload.Parse(outer)
	if err != nil {
		return nil, err
	}
	data, err := parsed.Open(opts.Password)
	if err != nil {
		return nil, err
	}
	Logger().Info("metadata parsed successfully", zap.String("name", parsed.Name), zap.Bool("encrypted", parsed.Encrypted))

	steps.next("writing output file")
	outputPath := opts.OutputPath
	if outputPath == "" {
		// Never let an embedded name pick a directory.
		outputPath = filepath.Base(parsed.Name)
	}
	if err := fileio.WriteFile(outputPath, data); err != nil {
		return nil, err
	}
	Logger().Info("file written", zap.String("output", outputPath), zap.Int("bytes", len(data)))

	return &DecodeResult{
		OutputPath: outputPath,
		FileName:   parsed.Name,
		FileSize:   len(data),
		Encrypted:  parsed.Encrypted,
		Compressed: compressed,
	}, nil
}

// Inspection summarizes a carrier without decoding its payload
type Inspection struct {
	Path       string
	Format     string
	Width      int
	Height     int
	Lossless   bool
	Capacity   uint64 // bytes, header included
	MaxPayload uint64 // bytes available after the header
	HasPayload bool
	Embedded   uint32 // envelope length recorded in the header
	LSB        decoder.LSBStats
}

// Inspect reports capacity, whether a valid header is present and LSB statistics
func (p *Processor) Inspect(path string) (*Inspection, error) {
	img, name, err := imageio.Open(path)
	if err != nil {
		return nil, err
	}

	width, height := img.Rect.Dx(), img.Rect.Dy()
	capacity := format.Capacity(width, height)

	info := &Inspection{
		Path:     path,
		Format:   name,
		Width:    width,
		Height:   height,
		Lossless: imageio.IsLossless(path),
		Capacity: capacity,
		LSB:      decoder.AnalyzeLSB(img),
	}
	if capacity > format.HEADER_SIZE {
		info.MaxPayload = capacity - format.HEADER_SIZE
	}

	header, err := decoder.ProbeHeader(img)
	if err == nil && header.Length > 0 {
		info.HasPayload = true
		info.Embedded = header.Length
	} else if err != nil {
		Logger().Debug("no valid header", zap.Error(err))
	}

	return info, nil
}
