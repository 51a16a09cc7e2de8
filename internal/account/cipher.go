package account

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// Cipher encrypts passwords the way the backend expects them: AES-256-CBC with PKCS#7 padding, a fresh
// random IV per value, ciphertext and IV base64 encoded.
type Cipher struct {
	block cipher.Block
	rand  io.Reader
}

// NewCipher returns a Cipher for a 32 byte key shared with the backend.
func NewCipher(key string) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("password key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("new aes cipher: %w", err)
	}

	return &Cipher{block: block, rand: rand.Reader}, nil
}

// Encrypt returns the base64 ciphertext of plaintext and the base64 IV it was encrypted with.
func (c *Cipher) Encrypt(plaintext string) (ciphertext, iv string, err error) {
	ivb := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(c.rand, ivb); err != nil {
		return "", "", fmt.Errorf("generate iv: %w", err)
	}

	data := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(c.block, ivb).CryptBlocks(out, data)

	return base64.StdEncoding.EncodeToString(out), base64.StdEncoding.EncodeToString(ivb), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(ciphertext, iv string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	ivb, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("decode iv: %w", err)
	}
	if len(ivb) != aes.BlockSize {
		return "", fmt.Errorf("iv must be %d bytes, got %d", aes.BlockSize, len(ivb))
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("ciphertext is not a whole number of blocks")
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, ivb).CryptBlocks(out, data)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
