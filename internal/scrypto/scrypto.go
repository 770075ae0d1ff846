package scrypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/term"
	"lukechampine.com/blake3"

	"github.com/naseridev/deepscene/internal/format"
	"github.com/naseridev/deepscene/internal/stegerr"
)

// SecureMessage is the parsed form of an encrypted blob:
// [Salt(16)][Nonce(12)][Ciphertext(checksum(16) + data)]
type SecureMessage struct {
	Salt       []byte
	Nonce      []byte
	Ciphertext []byte
}

// Marshal concatenates the blob parts
func (m *SecureMessage) Marshal() []byte {
	out := make([]byte, 0, len(m.Salt)+len(m.Nonce)+len(m.Ciphertext))
	out = append(out, m.Salt...)
	out = append(out, m.Nonce...)
	return append(out, m.Ciphertext...)
}

// ParseSecureMessage splits a blob without copying
func ParseSecureMessage(blob []byte) (*SecureMessage, error) {
	if len(blob) < format.MIN_ENCRYPTED_SIZE {
		return nil, stegerr.Encryption("corrupted encrypted data")
	}
	offset := 0

	salt := blob[offset : offset+format.SALT_SIZE]
	offset += format.SALT_SIZE

	nonce := blob[offset : offset+format.NONCE_SIZE]
	offset += format.NONCE_SIZE

	return &SecureMessage{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: blob[offset:],
	}, nil
}

// DeriveKey generates the stream key from password using Argon2id
func DeriveKey(password, salt []byte) ([]byte, error) {
	if len(salt) != format.SALT_SIZE {
		return nil, stegerr.Encryption("salt must be %d bytes, got %d", format.SALT_SIZE, len(salt))
	}

	key := argon2.IDKey(password, salt,
		format.ARGON2_TIME, format.ARGON2_MEMORY, format.ARGON2_THREADS, format.KEY_SIZE)
	if len(key) < format.KEY_SIZE {
		return nil, stegerr.Encryption("insufficient hash length")
	}
	return key[:format.KEY_SIZE], nil
}

// ContentChecksum is the first 16 bytes of the BLAKE3 digest of data
func ContentChecksum(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:format.CHECKSUM_SIZE]
}

// Encrypt seals data under password. Every call draws a fresh salt and nonce.
func Encrypt(data, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, stegerr.Validation("encryption password cannot be empty. Please provide a valid password")
	}

	salt := make([]byte, format.SALT_SIZE)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, stegerr.Wrap(stegerr.KindEncryption, err, "salt generation failed")
	}

	nonce := make([]byte, format.NONCE_SIZE)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, stegerr.Wrap(stegerr.KindEncryption, err, "nonce generation failed")
	}

	key, err := DeriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, 0, format.CHECKSUM_SIZE+len(data))
	plaintext = append(plaintext, ContentChecksum(data)...)
	plaintext = append(plaintext, data...)

	ciphertext, err := applyKeystream(key, nonce, plaintext)
	if err != nil {
		return nil, err
	}

	msg := &SecureMessage{Salt: salt, Nonce: nonce, Ciphertext: ciphertext}
	return msg.Marshal(), nil
}

// Decrypt opens a blob produced by Encrypt. A wrong password and a tampered
// ciphertext are indistinguishable: both fail the content checksum.
func Decrypt(blob, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, stegerr.Validation("encryption password cannot be empty. Please provide a valid password")
	}

	msg, err := ParseSecureMessage(blob)
	if err != nil {
		return nil, err
	}

	key, err := DeriveKey(password, msg.Salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := applyKeystream(key, msg.Nonce, msg.Ciphertext)
	if err != nil {
		return nil, err
	}

	if len(plaintext) < format.CHECKSUM_SIZE {
		return nil, stegerr.Encryption("authentication failed")
	}

	stored := plaintext[:format.CHECKSUM_SIZE]
	data := plaintext[format.CHECKSUM_SIZE:]

	if subtle.ConstantTimeCompare(stored, ContentChecksum(data)) != 1 {
		return nil, stegerr.Encryption("authentication failed")
	}

	return data, nil
}

// applyKeystream XORs src with the ChaCha20 keystream; it both encrypts and decrypts.
func applyKeystream(key, nonce, src []byte) ([]byte, error) {
	cipher, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, stegerr.Wrap(stegerr.KindEncryption, err, "cipher creation failed")
	}
	dst := make([]byte, len(src))
	cipher.XORKeyStream(dst, src)
	return dst, nil
}

// GetSecurePassword prompts for password with hidden input
func GetSecurePassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // New line after password

	if err != nil {
		return nil, stegerr.IO(err, "password read failed")
	}

	if len(password) == 0 {
		return nil, stegerr.Validation("password cannot be empty")
	}

	return password, nil
}
