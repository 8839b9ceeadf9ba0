package domain

import (
	"bytes"
	"crypto/rand"
	"fmt"
	mathrand "math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CanaryMarker precedes the token at the end of every decoy file.
// Audit tooling can locate the token by scanning for the last occurrence of this marker.
const CanaryMarker = "__CANARY_TOKEN__:"

// DefaultDecoyNames are deployed when the policy does not list any
var DefaultDecoyNames = []string{"salary_data", "passwords", "strategic_plan"}

// DecoyFile represents a bait file planted to reveal bulk modification
type DecoyFile struct {
	Path      string    `json:"path"`
	Token     string    `json:"token"`
	SizeBytes int64     `json:"size_bytes"`
	Extension string    `json:"extension"`
	CreatedAt time.Time `json:"created_at"`
}

// SizeRange bounds the random payload size in KiB (inclusive)
type SizeRange struct {
	MinKiB int `yaml:"min_kib" json:"min_kib"`
	MaxKiB int `yaml:"max_kib" json:"max_kib"`
}

// DefaultSizeRange avoids a uniform decoy size that could be fingerprinted
var DefaultSizeRange = SizeRange{MinKiB: 5, MaxKiB: 50}

// Validate checks that the range is usable
func (r SizeRange) Validate() error {
	if r.MinKiB <= 0 || r.MaxKiB < r.MinKiB {
		return fmt.Errorf("invalid decoy size range %d-%d KiB", r.MinKiB, r.MaxKiB)
	}
	return nil
}

// PickBytes returns a random payload size within the range
func (r SizeRange) PickBytes() int {
	kib := r.MinKiB
	if span := r.MaxKiB - r.MinKiB; span > 0 {
		kib += mathrand.IntN(span + 1)
	}
	return kib * 1024
}

// NewDecoyToken generates a fresh canary token
func NewDecoyToken() string {
	return uuid.NewString()
}

// BuildDecoyContent lays out [payload]\n__CANARY_TOKEN__:<token>
func BuildDecoyContent(payload []byte, token string) []byte {
	content := make([]byte, 0, len(payload)+1+len(CanaryMarker)+len(token))
	content = append(content, payload...)
	content = append(content, '\n')
	content = append(content, CanaryMarker...)
	content = append(content, token...)
	return content
}

// ExtractToken returns the text after the last canary marker, trailing whitespace trimmed
func ExtractToken(content []byte) (string, bool) {
	idx := bytes.LastIndex(content, []byte(CanaryMarker))
	if idx < 0 {
		return "", false
	}
	token := strings.TrimRight(string(content[idx+len(CanaryMarker):]), " \t\r\n")
	return token, true
}

// GenerateSecureRandomBytes generates cryptographically secure random bytes
func GenerateSecureRandomBytes(size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return buf, nil
}

// WriteDecoyFile writes a new decoy to {dir}/{baseName}{extension}.
// The file is written to a temp file and renamed into place, so the target either
// holds the full decoy or is untouched.
func WriteDecoyFile(dir, baseName, extension string, sizeRange SizeRange) (*DecoyFile, error) {
	if err := sizeRange.Validate(); err != nil {
		return nil, err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve decoy directory: %v", ErrIO, err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create decoy directory: %v", ErrIO, err)
	}

	payload, err := GenerateSecureRandomBytes(sizeRange.PickBytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	token := NewDecoyToken()
	content := BuildDecoyContent(payload, token)
	target := filepath.Join(absDir, baseName+extension)

	if err := writeFileAtomic(target, content, 0644); err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", ErrIO, target, err)
	}

	return &DecoyFile{
		Path:      target,
		Token:     token,
		SizeBytes: int64(len(payload)),
		Extension: extension,
		CreatedAt: time.Now(),
	}, nil
}

// ReadDecoyToken reads a file from disk and extracts its canary token
func ReadDecoyToken(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	token, ok := ExtractToken(content)
	if !ok {
		return "", fmt.Errorf("%w: no canary marker in %s", ErrNotFound, path)
	}
	return token, nil
}

func writeFileAtomic(target string, content []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(content); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
