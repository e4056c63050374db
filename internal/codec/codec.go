package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/scrypt"
)

const (
	keyLength   = 32
	nonceLength = 16
	tagLength   = 16
	separator   = ":"

	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

var (
	// ErrIntegrity is returned when a sealed balance fails authentication.
	ErrIntegrity = errors.New("sealed balance failed authentication")

	// ErrFormat is returned when a sealed balance cannot be parsed.
	ErrFormat = errors.New("malformed sealed balance")
)

// Codec seals balances with AES-256-GCM. The key is derived once in New and
// never leaves the process.
type Codec struct {
	aead cipher.AEAD
	rand io.Reader
}

// New derives the encryption key from secret and salt with scrypt.
func New(secret, salt string) (*Codec, error) {
	if secret == "" || salt == "" {
		return nil, errors.New("encryption secret and salt are required")
	}
	key, err := scrypt.Key([]byte(secret), []byte(salt), scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return newWithKey(key, rand.Reader)
}

func newWithKey(key []byte, random io.Reader) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceLength)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead, rand: random}, nil
}

// Seal encrypts amount as "nonce:tag:ciphertext", each part hex encoded.
func (c *Codec) Seal(amount decimal.Decimal) (string, error) {
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(amount.String()), nil)
	ciphertext, tag := sealed[:len(sealed)-tagLength], sealed[len(sealed)-tagLength:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, separator), nil
}

// Open reverses Seal. It never interprets its input as a plain number.
func (c *Codec) Open(sealed string) (decimal.Decimal, error) {
	parts := strings.Split(sealed, separator)
	if len(parts) != 3 {
		return decimal.Zero, ErrFormat
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceLength {
		return decimal.Zero, ErrFormat
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagLength {
		return decimal.Zero, ErrFormat
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil || len(ciphertext) == 0 {
		return decimal.Zero, ErrFormat
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return decimal.Zero, ErrIntegrity
	}
	amount, err := decimal.NewFromString(string(plaintext))
	if err != nil {
		return decimal.Zero, ErrFormat
	}
	return amount, nil
}

// Nonce returns the hex nonce prefix of a sealed value.
func Nonce(sealed string) string {
	prefix, _, _ := strings.Cut(sealed, separator)
	return prefix
}
