package domain

import (
	"bytes"
	"strings"
)

// maxSignatureLength is enough header to cover every signature offset below
const maxSignatureLength = 512

// FileSignature represents a file type signature (magic bytes)
type FileSignature struct {
	Extension   string
	MagicBytes  []byte
	Offset      int
	Description string
}

var (
	zipHeader = []byte{0x50, 0x4B, 0x03, 0x04}
	pdfHeader = []byte("%PDF-")
)

// FileSignatures lists headers of formats that are high entropy when intact.
// A file that claims one of these extensions but lacks the header is treated as tampered.
var FileSignatures = []FileSignature{
	// Office Open XML containers are ZIP archives
	{Extension: ".docx", MagicBytes: zipHeader, Description: "Word document (OOXML)"},
	{Extension: ".xlsx", MagicBytes: zipHeader, Description: "Excel workbook (OOXML)"},
	{Extension: ".pptx", MagicBytes: zipHeader, Description: "PowerPoint deck (OOXML)"},
	{Extension: ".pdf", MagicBytes: pdfHeader, Description: "PDF document"},

	// Images
	{Extension: ".jpg", MagicBytes: []byte{0xFF, 0xD8, 0xFF}, Description: "JPEG image"},
	{Extension: ".jpeg", MagicBytes: []byte{0xFF, 0xD8, 0xFF}, Description: "JPEG image"},
	{Extension: ".png", MagicBytes: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, Description: "PNG image"},
	{Extension: ".gif", MagicBytes: []byte("GIF87a"), Description: "GIF87a"},
	{Extension: ".gif", MagicBytes: []byte("GIF89a"), Description: "GIF89a"},
	{Extension: ".webp", MagicBytes: []byte("RIFF"), Description: "WebP image (RIFF)"},

	// Audio and video
	{Extension: ".mp3", MagicBytes: []byte{0xFF, 0xFB}, Description: "MP3 audio (MPEG-1 Layer 3)"},
	{Extension: ".mp3", MagicBytes: []byte("ID3"), Description: "MP3 with ID3v2 tag"},
	{Extension: ".flac", MagicBytes: []byte("fLaC"), Description: "FLAC audio"},
	{Extension: ".ogg", MagicBytes: []byte("OggS"), Description: "OGG audio"},
	{Extension: ".mp4", MagicBytes: []byte("ftyp"), Offset: 4, Description: "MP4 video (ftyp)"},
	{Extension: ".mov", MagicBytes: []byte("ftyp"), Offset: 4, Description: "QuickTime MOV"},
	{Extension: ".mkv", MagicBytes: []byte{0x1A, 0x45, 0xDF, 0xA3}, Description: "Matroska video"},

	// Archives
	{Extension: ".zip", MagicBytes: zipHeader, Description: "ZIP archive"},
	{Extension: ".zip", MagicBytes: []byte{0x50, 0x4B, 0x05, 0x06}, Description: "ZIP (empty)"},
	{Extension: ".rar", MagicBytes: []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07}, Description: "RAR archive"},
	{Extension: ".7z", MagicBytes: []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, Description: "7-Zip archive"},
	{Extension: ".gz", MagicBytes: []byte{0x1F, 0x8B, 0x08}, Description: "GZIP compressed"},
	{Extension: ".tar", MagicBytes: []byte("ustar"), Offset: 257, Description: "TAR archive"},
	{Extension: ".bz2", MagicBytes: []byte("BZh"), Description: "BZIP2 compressed"},
	{Extension: ".xz", MagicBytes: []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}, Description: "XZ compressed"},
	{Extension: ".zst", MagicBytes: []byte{0x28, 0xB5, 0x2F, 0xFD}, Description: "Zstandard frame"},
}

// SignatureResult describes how a header compared with its extension
type SignatureResult int

const (
	// SignatureUnknown means no signature is registered for the extension
	SignatureUnknown SignatureResult = iota
	SignatureMatch
	SignatureMismatch
)

// MatchSignature checks a file header against the signatures registered for extension.
// The returned description names the matched format.
func MatchSignature(header []byte, extension string) (SignatureResult, string) {
	extension = strings.ToLower(extension)

	checked := false
	for _, sig := range FileSignatures {
		if sig.Extension != extension {
			continue
		}
		checked = true

		end := sig.Offset + len(sig.MagicBytes)
		if len(header) < end {
			continue
		}
		if bytes.Equal(header[sig.Offset:end], sig.MagicBytes) {
			return SignatureMatch, sig.Description
		}
	}

	if !checked {
		return SignatureUnknown, ""
	}
	return SignatureMismatch, "signature_mismatch"
}

// IsNaturallyHighEntropyExtension checks if an extension is expected to have high entropy
func IsNaturallyHighEntropyExtension(extension string) bool {
	switch strings.ToLower(extension) {
	case ".mp4", ".avi", ".mkv", ".mov", ".webm",
		".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic",
		".mp3", ".m4a", ".flac", ".ogg", ".aac",
		".zip", ".rar", ".7z", ".tar", ".gz", ".bz2", ".xz", ".zst", ".iso",
		".docx", ".xlsx", ".pptx", ".pdf",
		".exe", ".dll", ".so", ".dylib":
		return true
	}
	return false
}
