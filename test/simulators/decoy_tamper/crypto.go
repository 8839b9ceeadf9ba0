package main

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// Scrambler turns file content into high-entropy bytes
type Scrambler interface {
	Name() string
	Scramble(plaintext []byte) ([]byte, error)
}

// aesScrambler seals content with AES-256-GCM: [nonce][ciphertext + tag]
type aesScrambler struct {
	key []byte
}

func newAESScrambler(password string) (*aesScrambler, error) {
	if password != "" {
		hash := sha256.Sum256([]byte(password))
		return &aesScrambler{key: hash[:]}, nil
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &aesScrambler{key: key}, nil
}

func (a *aesScrambler) Name() string { return "AES-256-GCM" }

func (a *aesScrambler) Scramble(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// randomScrambler replaces content with random bytes of the same length
type randomScrambler struct{}

func (randomScrambler) Name() string { return "random overwrite" }

func (randomScrambler) Scramble(plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("failed to generate random data: %w", err)
	}
	return out, nil
}

func newScrambler(algorithm, password string) (Scrambler, error) {
	switch algorithm {
	case "aes", "aes-gcm":
		return newAESScrambler(password)
	case "random":
		return randomScrambler{}, nil
	default:
		return nil, fmt.Errorf("unknown algorithm: %s (supported: aes, random)", algorithm)
	}
}
