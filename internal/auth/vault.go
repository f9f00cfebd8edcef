package auth

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
)

const vaultKeyLen = 32 // AES-256

// SecretCodec encodes MFA secrets for storage at rest. The variant is selected
// once at startup from configuration: encryption when key material is present,
// plaintext otherwise.
type SecretCodec interface {
	// Encrypt returns the storable value and, for the encrypting variant, the
	// IV that must be persisted alongside it. The IV is not secret.
	Encrypt(plaintext string) (value, iv []byte, err error)
	// Decrypt reverses Encrypt. iv is nil for values stored in plaintext.
	Decrypt(value, iv []byte) (string, error)
	// Encrypting reports whether secrets are protected at rest.
	Encrypting() bool
}

// NewSecretCodec derives a codec from configured key material. Empty key
// material selects the plaintext fallback, a valid but degraded mode that is
// logged so operators can detect it.
func NewSecretCodec(keyMaterial string, logger *slog.Logger) (SecretCodec, error) {
	if keyMaterial == "" {
		logger.Warn("MFA_SECRET_KEY not set, MFA secrets will be stored in plaintext")
		return plainCodec{}, nil
	}

	key, err := deriveVaultKey(keyMaterial)
	if err != nil {
		return nil, fmt.Errorf("invalid MFA secret key material: %w", err)
	}

	return &aesCodec{key: key}, nil
}

// deriveVaultKey normalizes key material to a 32-byte AES key. Accepted forms:
// hex (16-byte keys are doubled, 32-byte keys used as-is), base64 decoding to
// exactly 32 bytes, or raw UTF-8 truncated or zero-padded to 32 bytes.
func deriveVaultKey(material string) ([]byte, error) {
	if isHex(material) && (len(material) == 32 || len(material) == 64) {
		raw, err := hex.DecodeString(material)
		if err == nil {
			switch len(raw) {
			case 16:
				return append(raw, raw...), nil
			case 32:
				return raw, nil
			}
		}
	}

	if raw, err := base64.StdEncoding.DecodeString(material); err == nil && len(raw) == vaultKeyLen {
		return raw, nil
	}

	raw := []byte(material)
	if len(raw) >= vaultKeyLen {
		return raw[:vaultKeyLen], nil
	}
	padded := make([]byte, vaultKeyLen)
	copy(padded, raw)
	return padded, nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// aesCodec encrypts with AES-256-CBC and a fresh random IV per encryption.
type aesCodec struct {
	key []byte
}

func (c *aesCodec) Encrypt(plaintext string) ([]byte, []byte, error) {
	if plaintext == "" {
		return nil, nil, fmt.Errorf("cannot encrypt empty secret")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	padded := padPKCS7([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return ciphertext, iv, nil
}

func (c *aesCodec) Decrypt(value, iv []byte) (string, error) {
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("invalid IV length %d", len(iv))
	}
	if len(value) == 0 || len(value)%aes.BlockSize != 0 {
		return "", fmt.Errorf("invalid ciphertext length %d", len(value))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(value))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, value)

	unpadded, err := unpadPKCS7(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}

	return string(unpadded), nil
}

func (c *aesCodec) Encrypting() bool { return true }

// plainCodec stores secrets as-is. Degraded mode for deployments without a
// configured vault key.
type plainCodec struct{}

func (plainCodec) Encrypt(plaintext string) ([]byte, []byte, error) {
	if plaintext == "" {
		return nil, nil, fmt.Errorf("cannot store empty secret")
	}
	return []byte(plaintext), nil, nil
}

func (plainCodec) Decrypt(value, iv []byte) (string, error) {
	return string(value), nil
}

func (plainCodec) Encrypting() bool { return false }

func padPKCS7(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
