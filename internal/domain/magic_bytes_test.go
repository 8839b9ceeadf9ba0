package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchSignature(t *testing.T) {
	tarHeader := make([]byte, 512)
	copy(tarHeader[257:], "ustar")

	tests := []struct {
		name      string
		header    []byte
		extension string
		want      SignatureResult
	}{
		{"docx is zip", []byte{0x50, 0x4B, 0x03, 0x04, 0x14}, ".docx", SignatureMatch},
		{"docx uppercase ext", []byte{0x50, 0x4B, 0x03, 0x04}, ".DOCX", SignatureMatch},
		{"docx overwritten", []byte{0x9A, 0x11, 0x03, 0x04}, ".docx", SignatureMismatch},
		{"empty zip", []byte{0x50, 0x4B, 0x05, 0x06}, ".zip", SignatureMatch},
		{"pdf", []byte("%PDF-1.7\n"), ".pdf", SignatureMatch},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, ".png", SignatureMatch},
		{"gif89a", []byte("GIF89a..."), ".gif", SignatureMatch},
		{"mp4 at offset", []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}, ".mp4", SignatureMatch},
		{"tar at offset", tarHeader, ".tar", SignatureMatch},
		{"header too short", []byte{0x50}, ".docx", SignatureMismatch},
		{"unknown extension", []byte{0x00, 0x01}, ".bin", SignatureUnknown},
		{"no extension", []byte{0x00, 0x01}, "", SignatureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := MatchSignature(tt.header, tt.extension)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchSignature_Description(t *testing.T) {
	_, desc := MatchSignature([]byte("%PDF-1.4"), ".pdf")
	assert.Equal(t, "PDF document", desc)

	_, desc = MatchSignature([]byte("junk"), ".pdf")
	assert.Equal(t, "signature_mismatch", desc)
}

func TestIsNaturallyHighEntropyExtension(t *testing.T) {
	for _, ext := range []string{".zip", ".JPG", ".mp4", ".docx", ".zst"} {
		assert.True(t, IsNaturallyHighEntropyExtension(ext), ext)
	}
	for _, ext := range []string{".txt", ".csv", ".locked", ""} {
		assert.False(t, IsNaturallyHighEntropyExtension(ext), ext)
	}
}
