package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

var ErrUndecryptable = errors.New("credential cannot be decrypted")

// Cipher 本地保存 PAT 时加密，格式 base64(salt | nonce | box)
type Cipher struct {
	passphrase []byte
}

func NewCipher(passphrase string) *Cipher {
	return &Cipher{passphrase: []byte(passphrase)}
}

func (c *Cipher) deriveKey(salt []byte) (*[keySize]byte, error) {
	raw, err := scrypt.Key(c.passphrase, salt, 1<<14, 8, 1, keySize)
	if err != nil {
		return nil, err
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}

// Seal 每次使用新的 salt 和 nonce
func (c *Cipher) Seal(plaintext string) (string, error) {
	buf := make([]byte, saltSize+nonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	salt := buf[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], buf[saltSize:])

	key, err := c.deriveKey(salt)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	out := secretbox.Seal(buf, []byte(plaintext), &nonce, key)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open 密钥不对或数据损坏时返回 ErrUndecryptable
func (c *Cipher) Open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(data) < saltSize+nonceSize+secretbox.Overhead {
		return "", ErrUndecryptable
	}

	var nonce [nonceSize]byte
	copy(nonce[:], data[saltSize:saltSize+nonceSize])

	key, err := c.deriveKey(data[:saltSize])
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	plain, ok := secretbox.Open(nil, data[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return "", ErrUndecryptable
	}
	return string(plain), nil
}
