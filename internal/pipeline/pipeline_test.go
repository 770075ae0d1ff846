package pipeline

import (
	"bytes"
	"crypto/rand"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/naseridev/deepscene/internal/config"
	"github.com/naseridev/deepscene/internal/decoder"
	"github.com/naseridev/deepscene/internal/format"
	"github.com/naseridev/deepscene/internal/imageio"
	"github.com/naseridev/deepscene/internal/stegerr"
)

func carrier(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		if i%4 == 3 {
			img.Pix[i] = 0xFF
			continue
		}
		img.Pix[i] = byte(i*31 + 7)
	}
	return img
}

func randomBytes(t *testing.T, n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeCarrier(t *testing.T, dir, name string, width, height int) string {
	path := filepath.Join(dir, name)
	require.NoError(t, imageio.Save(carrier(width, height), path))
	return path
}

func TestEncodeImage_WorkedExample(t *testing.T) {
	img := carrier(100, 100)

	emb, err := EncodeImage(img, "a.txt", []byte("abcdefghij"), nil)
	require.NoError(t, err)

	// 1 + 5 + 1 + 10 bytes of outer payload, one compression flag, 10 header bytes
	assert.Equal(t, 17, emb.OriginalSize)
	assert.Equal(t, 18, emb.FinalSize)
	assert.False(t, emb.Compressed)
	assert.False(t, emb.Encrypted)

	header, err := decoder.ProbeHeader(img)
	require.NoError(t, err)
	assert.Equal(t, 28, int(header.Length)+format.HEADER_SIZE)

	got, err := DecodeImage(img, nil)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.Name)
	assert.Equal(t, []byte("abcdefghij"), got.Data)
}

func TestEncodeDecodeImage_Matrix(t *testing.T) {
	compressible := bytes.Repeat([]byte("the quick brown fox "), 200)
	incompressible := randomBytes(t, 4000)

	tests := []struct {
		name           string
		data           []byte
		password       []byte
		wantCompressed bool
	}{
		{"plain compressible", compressible, nil, true},
		{"plain incompressible", incompressible, nil, false},
		{"encrypted compressible", compressible, []byte("correct horse"), false},
		{"encrypted incompressible", incompressible, []byte("correct horse"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := carrier(120, 120)

			emb, err := EncodeImage(img, "payload.bin", tt.data, tt.password)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCompressed, emb.Compressed)
			assert.Equal(t, tt.password != nil, emb.Encrypted)

			got, err := DecodeImage(img, tt.password)
			require.NoError(t, err)
			assert.Equal(t, "payload.bin", got.Name)
			assert.Equal(t, tt.data, got.Data)
			assert.Equal(t, emb.Compressed, got.Compressed)
			assert.Equal(t, emb.Encrypted, got.Encrypted)
		})
	}
}

func TestDecodeImage_FlagPasswordConsistency(t *testing.T) {
	plain := carrier(60, 60)
	_, err := EncodeImage(plain, "a.txt", []byte("not secret"), nil)
	require.NoError(t, err)

	_, err = DecodeImage(plain, []byte("unneeded"))
	assert.True(t, errors.Is(err, stegerr.ErrValidation), "%v", err)

	locked := carrier(60, 60)
	_, err = EncodeImage(locked, "a.txt", []byte("very secret"), []byte("right"))
	require.NoError(t, err)

	_, err = DecodeImage(locked, nil)
	assert.True(t, errors.Is(err, stegerr.ErrValidation), "%v", err)

	_, err = DecodeImage(locked, []byte("wrong"))
	assert.True(t, errors.Is(err, stegerr.ErrEncryption), "%v", err)
	assert.Contains(t, err.Error(), "authentication failed")
}

func TestEncodeImage_TooLarge(t *testing.T) {
	img := carrier(10, 10)
	before := append([]byte(nil), img.Pix...)

	_, err := EncodeImage(img, "big.bin", randomBytes(t, 200), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, stegerr.ErrValidation))
	assert.Contains(t, err.Error(), "data too large for image")
	assert.Equal(t, before, img.Pix)
}

func TestEncodeImage_RejectsNameDecodeCannotRead(t *testing.T) {
	img := carrier(40, 40)
	before := append([]byte(nil), img.Pix...)

	_, err := EncodeImage(img, "bad\xff\xfe.txt", []byte("unrecoverable"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, stegerr.ErrValidation), "%v", err)
	assert.Contains(t, err.Error(), "UTF-8")
	assert.Equal(t, before, img.Pix)
}

func TestDecodeImage_CleanCarrier(t *testing.T) {
	_, err := DecodeImage(carrier(40, 40), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, stegerr.ErrData))
}

func TestProcessor_EncodeDecode(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeCarrier(t, dir, "cover.png", 200, 150)
	secret := bytes.Repeat([]byte("quarterly numbers\n"), 100)
	filePath := writeFile(t, dir, "report.txt", secret)

	core, logs := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	proc := New(nil)
	enc, err := proc.Encode(EncodeOptions{
		ImagePath: imagePath,
		FilePath:  filePath,
		Password:  []byte("hunter2"),
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "cover_steg.png"), enc.OutputPath)
	assert.Equal(t, "report.txt", enc.FileName)
	assert.True(t, enc.Encrypted)
	assert.False(t, enc.ConvertedToPNG)
	assert.FileExists(t, enc.OutputPath)
	assert.Equal(t, int64(5), logs.FilterMessage("embedding data into image").All()[0].ContextMap()["step"])

	outPath := filepath.Join(dir, "recovered.txt")
	dec, err := proc.Decode(DecodeOptions{
		ImagePath:  enc.OutputPath,
		OutputPath: outPath,
		Password:   []byte("hunter2"),
	})
	require.NoError(t, err)
	assert.Equal(t, "report.txt", dec.FileName)
	assert.Equal(t, len(secret), dec.FileSize)
	assert.True(t, dec.Encrypted)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestProcessor_ParallelWorkers(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeCarrier(t, dir, "large.png", 500, 500)
	secret := randomBytes(t, 80000)
	filePath := writeFile(t, dir, "noise.bin", secret)

	conf := config.Default()
	conf.Workers = 4
	proc := New(conf)

	enc, err := proc.Encode(EncodeOptions{ImagePath: imagePath, FilePath: filePath})
	require.NoError(t, err)

	outPath := filepath.Join(dir, "noise.out")
	_, err = proc.Decode(DecodeOptions{ImagePath: enc.OutputPath, OutputPath: outPath})
	require.NoError(t, err)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestProcessor_EncodeConvertsLossyCarrier(t *testing.T) {
	dir := t.TempDir()
	jpgPath := filepath.Join(dir, "holiday.jpg")
	f, err := os.Create(jpgPath)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, carrier(64, 64), nil))
	require.NoError(t, f.Close())

	filePath := writeFile(t, dir, "note.txt", []byte("meet at noon"))

	enc, err := New(nil).Encode(EncodeOptions{ImagePath: jpgPath, FilePath: filePath})
	require.NoError(t, err)
	assert.True(t, enc.ConvertedToPNG)
	assert.Equal(t, filepath.Join(dir, "holiday_steg.png"), enc.OutputPath)
	assert.NoFileExists(t, filepath.Join(dir, "holiday.png"))

	img, _, err := imageio.Open(enc.OutputPath)
	require.NoError(t, err)
	got, err := DecodeImage(img, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("meet at noon"), got.Data)

	conf := config.Default()
	conf.KeepConverted = true
	conf.OutputFormat = "bmp"
	enc, err = New(conf).Encode(EncodeOptions{ImagePath: jpgPath, FilePath: filePath})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "holiday_steg.bmp"), enc.OutputPath)
	assert.FileExists(t, filepath.Join(dir, "holiday.png"))
}

func TestProcessor_EncodeRejectsLossyOutput(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeCarrier(t, dir, "cover.png", 50, 50)
	filePath := writeFile(t, dir, "a.txt", []byte("hello"))

	_, err := New(nil).Encode(EncodeOptions{
		ImagePath:  imagePath,
		FilePath:   filePath,
		OutputPath: filepath.Join(dir, "out.jpg"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, stegerr.ErrValidation))
	assert.NoFileExists(t, filepath.Join(dir, "out.jpg"))
}

func TestProcessor_EncodeCarrierTooSmall(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeCarrier(t, dir, "tiny.png", 10, 10)
	filePath := writeFile(t, dir, "big.bin", randomBytes(t, 500))

	_, err := New(nil).Encode(EncodeOptions{ImagePath: imagePath, FilePath: filePath})
	require.Error(t, err)
	assert.True(t, errors.Is(err, stegerr.ErrValidation))
	assert.NoFileExists(t, filepath.Join(dir, "tiny_steg.png"))
}

func TestProcessor_DecodeDefaultOutputUsesBaseName(t *testing.T) {
	dir := t.TempDir()
	img := carrier(80, 80)
	_, err := EncodeImage(img, "../../escape.txt", []byte("contained"), nil)
	require.NoError(t, err)

	imagePath := filepath.Join(dir, "stego.png")
	require.NoError(t, imageio.Save(img, imagePath))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	dec, err := New(nil).Decode(DecodeOptions{ImagePath: imagePath})
	require.NoError(t, err)
	assert.Equal(t, "escape.txt", dec.OutputPath)
	assert.Equal(t, "../../escape.txt", dec.FileName)

	got, err := os.ReadFile(filepath.Join(dir, "escape.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("contained"), got)
}

func TestProcessor_DecodePasswordMismatch(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeCarrier(t, dir, "cover.png", 60, 60)
	filePath := writeFile(t, dir, "a.txt", []byte("plain"))

	proc := New(nil)
	enc, err := proc.Encode(EncodeOptions{ImagePath: imagePath, FilePath: filePath})
	require.NoError(t, err)

	outPath := filepath.Join(dir, "out.txt")
	_, err = proc.Decode(DecodeOptions{ImagePath: enc.OutputPath, OutputPath: outPath, Password: []byte("x")})
	assert.True(t, errors.Is(err, stegerr.ErrValidation))
	assert.NoFileExists(t, outPath)
}

func TestProcessor_Inspect(t *testing.T) {
	dir := t.TempDir()
	clean := writeCarrier(t, dir, "clean.png", 40, 20)

	proc := New(nil)
	info, err := proc.Inspect(clean)
	require.NoError(t, err)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 40, info.Width)
	assert.Equal(t, 20, info.Height)
	assert.True(t, info.Lossless)
	assert.Equal(t, uint64(300), info.Capacity)
	assert.Equal(t, uint64(290), info.MaxPayload)
	assert.False(t, info.HasPayload)
	assert.Equal(t, 800, info.LSB.Pixels)

	img := carrier(40, 20)
	emb, err := EncodeImage(img, "a.txt", []byte("abcdefghij"), nil)
	require.NoError(t, err)
	stego := filepath.Join(dir, "stego.png")
	require.NoError(t, imageio.Save(img, stego))

	info, err = proc.Inspect(stego)
	require.NoError(t, err)
	assert.True(t, info.HasPayload)
	assert.Equal(t, uint32(emb.FinalSize), info.Embedded)
}
