package domain

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDecoyContent_Layout(t *testing.T) {
	payload := []byte{0x00, 0xFF, 0x10}
	content := BuildDecoyContent(payload, "tok-123")

	assert.True(t, bytes.HasPrefix(content, payload))
	assert.Equal(t, "\n"+CanaryMarker+"tok-123", string(content[len(payload):]))

	token, ok := ExtractToken(content)
	require.True(t, ok)
	assert.Equal(t, "tok-123", token)
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		content string
		token   string
		found   bool
	}{
		{"plain", "payload\n" + CanaryMarker + "abc", "abc", true},
		{"trailing newline", "payload\n" + CanaryMarker + "abc\r\n", "abc", true},
		{"last marker wins", CanaryMarker + "old\n" + CanaryMarker + "new", "new", true},
		{"appended junk", "payload\n" + CanaryMarker + "abcENCRYPTED_DATA_JUNK", "abcENCRYPTED_DATA_JUNK", true},
		{"empty token", "payload\n" + CanaryMarker, "", true},
		{"no marker", "payload only", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := ExtractToken([]byte(tt.content))
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestSizeRange(t *testing.T) {
	assert.NoError(t, DefaultSizeRange.Validate())
	assert.NoError(t, SizeRange{MinKiB: 3, MaxKiB: 3}.Validate())
	assert.Error(t, SizeRange{MinKiB: 0, MaxKiB: 3}.Validate())
	assert.Error(t, SizeRange{MinKiB: 5, MaxKiB: 4}.Validate())

	r := SizeRange{MinKiB: 2, MaxKiB: 4}
	for i := 0; i < 100; i++ {
		n := r.PickBytes()
		assert.GreaterOrEqual(t, n, 2*1024)
		assert.LessOrEqual(t, n, 4*1024)
		assert.Zero(t, n%1024)
	}
	assert.Equal(t, 3*1024, SizeRange{MinKiB: 3, MaxKiB: 3}.PickBytes())
}

func TestNewDecoyToken_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token := NewDecoyToken()
		assert.Len(t, token, 36)
		_, dup := seen[token]
		assert.False(t, dup)
		seen[token] = struct{}{}
	}
}

func TestWriteDecoyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "decoys")

	decoy, err := WriteDecoyFile(dir, "passwords", ".xlsx", SizeRange{MinKiB: 5, MaxKiB: 10})
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(decoy.Path))
	assert.Equal(t, "passwords.xlsx", filepath.Base(decoy.Path))
	assert.Equal(t, ".xlsx", decoy.Extension)
	assert.GreaterOrEqual(t, decoy.SizeBytes, int64(5*1024))
	assert.LessOrEqual(t, decoy.SizeBytes, int64(10*1024))

	content, err := os.ReadFile(decoy.Path)
	require.NoError(t, err)
	assert.Equal(t, int(decoy.SizeBytes)+1+len(CanaryMarker)+len(decoy.Token), len(content))
	assert.True(t, strings.HasSuffix(string(content), CanaryMarker+decoy.Token))

	token, err := ReadDecoyToken(decoy.Path)
	require.NoError(t, err)
	assert.Equal(t, decoy.Token, token)

	entries, err := os.ReadDir(filepath.Dir(decoy.Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteDecoyFile_Errors(t *testing.T) {
	_, err := WriteDecoyFile(t.TempDir(), "x", ".docx", SizeRange{MinKiB: 0, MaxKiB: 0})
	assert.Error(t, err)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	_, err = WriteDecoyFile(filepath.Join(blocker, "sub"), "x", ".docx", DefaultSizeRange)
	assert.ErrorIs(t, err, ErrIO)
}

func TestReadDecoyToken_Errors(t *testing.T) {
	_, err := ReadDecoyToken(filepath.Join(t.TempDir(), "absent.docx"))
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	plain := filepath.Join(t.TempDir(), "plain.docx")
	require.NoError(t, os.WriteFile(plain, []byte("no marker here"), 0644))
	_, err = ReadDecoyToken(plain)
	assert.ErrorIs(t, err, ErrNotFound)
}
