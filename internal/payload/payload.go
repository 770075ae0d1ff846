// Package payload frames a hidden file for embedding.
//
// The outer payload is
//
//	[name_len(1)][name][encryption_flag(1)][content]
//
// where content is either the raw file or an scrypto blob. The outer payload
// is then sealed into the envelope the codec embeds:
//
//	[compression_flag(1)][deflated-or-raw outer payload]
package payload

import (
	"bytes"
	"unicode/utf8"

	"github.com/naseridev/deepscene/internal/compression"
	"github.com/naseridev/deepscene/internal/format"
	"github.com/naseridev/deepscene/internal/scrypto"
	"github.com/naseridev/deepscene/internal/stegerr"
)

// Outer is a framed file ready to be sealed
type Outer struct {
	Bytes     []byte
	Encrypted bool
}

// Parsed is the result of reading an outer payload back
type Parsed struct {
	Name      string
	Encrypted bool
	Content   []byte // ciphertext when Encrypted
}

// ValidateName checks the filename constraints of the framing
func ValidateName(name string) error {
	if len(name) == 0 {
		return stegerr.Validation("file name cannot be empty")
	}
	if len(name) > format.MAX_FILENAME_LENGTH {
		return stegerr.Validation("file name too long (max %d bytes)", format.MAX_FILENAME_LENGTH)
	}
	if !utf8.ValidString(name) {
		return stegerr.Validation("invalid file name: not valid UTF-8")
	}
	if bytes.IndexByte([]byte(name), 0) >= 0 {
		return stegerr.Validation("file name contains null bytes")
	}
	return nil
}

// Build frames data under name. A nil password stores the content as is;
// any non-nil password (including an empty one, which is rejected) encrypts it.
func Build(name string, data, password []byte) (*Outer, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, stegerr.Validation("file data cannot be empty")
	}

	encrypted := password != nil
	content := data
	flag := format.FLAG_OFF

	if encrypted {
		blob, err := scrypto.Encrypt(data, password)
		if err != nil {
			return nil, err
		}
		content = blob
		flag = format.FLAG_ON
	}

	out := make([]byte, 0, 2+len(name)+len(content))
	out = append(out, byte(len(name)))
	out = append(out, name...)
	out = append(out, flag)
	out = append(out, content...)

	return &Outer{Bytes: out, Encrypted: encrypted}, nil
}

// Parse reads name, flag and content from an outer payload
func Parse(outer []byte) (*Parsed, error) {
	if len(outer) == 0 {
		return nil, stegerr.Data("processed data is empty")
	}

	nameLen := int(outer[0])
	if nameLen == 0 {
		return nil, stegerr.Data("invalid file name length (0)")
	}

	if len(outer) < 1+nameLen+1 {
		return nil, stegerr.Data("invalid data structure: missing encryption flag")
	}

	rawName := outer[1 : 1+nameLen]
	if !utf8.Valid(rawName) {
		return nil, stegerr.Data("failed to decode file name: invalid UTF-8")
	}
	if bytes.IndexByte(rawName, 0) >= 0 {
		return nil, stegerr.Data("file name contains null bytes")
	}

	flag := outer[1+nameLen]
	if flag != format.FLAG_OFF && flag != format.FLAG_ON {
		return nil, stegerr.Data("invalid encryption flag (%d)", flag)
	}

	return &Parsed{
		Name:      string(rawName),
		Encrypted: flag == format.FLAG_ON,
		Content:   outer[1+nameLen+1:],
	}, nil
}

// Open returns the file content, decrypting when needed. The flag and the
// presence of a password must agree before any decryption is attempted.
func (p *Parsed) Open(password []byte) ([]byte, error) {
	var data []byte

	if p.Encrypted {
		if password == nil {
			return nil, stegerr.Validation("file is password-protected. Please provide the decryption password using -p")
		}
		plain, err := scrypto.Decrypt(p.Content, password)
		if err != nil {
			return nil, err
		}
		data = plain
	} else {
		if password != nil {
			return nil, stegerr.Validation("password provided for unencrypted file. This file does not require a password")
		}
		data = p.Content
	}

	if len(data) == 0 {
		return nil, stegerr.Data("extracted file data is empty")
	}
	return data, nil
}

// Seal compresses the outer payload when worthwhile and prefixes the flag
func Seal(outer []byte) (envelope []byte, compressed bool, err error) {
	if len(outer) == 0 {
		return nil, false, stegerr.Data("payload is empty")
	}

	processed, applied, err := compression.Compress(outer)
	if err != nil {
		return nil, false, err
	}

	flag := format.FLAG_OFF
	if applied {
		flag = format.FLAG_ON
	}

	envelope = make([]byte, 0, 1+len(processed))
	envelope = append(envelope, flag)
	envelope = append(envelope, processed...)
	return envelope, applied, nil
}

// Unseal strips the compression flag and inflates if needed
func Unseal(envelope []byte) (outer []byte, compressed bool, err error) {
	if len(envelope) == 0 {
		return nil, false, stegerr.Data("no data found in image")
	}

	flag := envelope[0]
	body := envelope[1:]

	switch flag {
	case format.FLAG_ON:
		outer, err = compression.Decompress(body)
		if err != nil {
			return nil, false, err
		}
		compressed = true
	case format.FLAG_OFF:
		outer = body
	default:
		return nil, false, stegerr.Data("invalid compression flag (%d)", flag)
	}

	if len(outer) == 0 {
		return nil, false, stegerr.Data("processed data is empty")
	}
	return outer, compressed, nil
}
