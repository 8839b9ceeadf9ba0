package domain

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"
)

const (
	// DefaultEntropyThreshold separates plaintext (3.5-5.0 bits/byte) from encrypted or compressed data
	DefaultEntropyThreshold = 7.5

	// DefaultSampleBytes bounds how much of a file is read for classification
	DefaultSampleBytes = 1024 * 1024
)

// EntropyThresholds define file-type specific thresholds used by the scanner.
// Formats that are already compressed sit close to 8.0 even when intact.
var EntropyThresholds = map[string]float64{
	".txt":  7.5,
	".csv":  7.5,
	".doc":  7.5,
	".xls":  7.5,
	".docx": 7.9,
	".xlsx": 7.9,
	".pptx": 7.9,
	".pdf":  7.9,
	".zip":  7.95,
	".jpg":  7.95,
	".png":  7.95,
	"":      DefaultEntropyThreshold,
}

// ThresholdForExtension returns the classification threshold for a file extension
func ThresholdForExtension(extension string) float64 {
	if threshold, ok := EntropyThresholds[strings.ToLower(extension)]; ok {
		return threshold
	}
	return EntropyThresholds[""]
}

// CalculateShannonEntropy calculates Shannon entropy for byte data.
// The result ranges from 0 (single repeated byte) to 8 (uniform distribution).
func CalculateShannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0.0
	}

	var frequencies [256]int
	for _, b := range data {
		frequencies[b]++
	}

	// H(X) = -Σ p(xi) * log2(p(xi))
	entropy := 0.0
	dataLen := float64(len(data))

	for _, freq := range frequencies {
		if freq > 0 {
			probability := float64(freq) / dataLen
			entropy -= probability * math.Log2(probability)
		}
	}

	return entropy
}

// Classify reports whether the buffer looks encrypted or compressed.
// The comparison is strict: entropy equal to the threshold is not flagged.
func Classify(data []byte, threshold float64) bool {
	return CalculateShannonEntropy(data) > threshold
}

// ReadSample reads at most maxBytes from the start of a file
func ReadSample(filePath string, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultSampleBytes
	}

	file, err := openFileForEntropy(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buffer := make([]byte, maxBytes)
	n, err := io.ReadFull(file, buffer)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}

	return buffer[:n], nil
}

// IsEncrypted samples the head of a file and classifies it.
// Any read failure is reported as not encrypted; use AnalyzeFileEntropy to see the error.
func IsEncrypted(filePath string, threshold float64) bool {
	sample, err := ReadSample(filePath, DefaultSampleBytes)
	if err != nil {
		return false
	}
	return Classify(sample, threshold)
}

// FileEntropy represents entropy analysis result
type FileEntropy struct {
	FilePath          string
	Entropy           float64
	Threshold         float64
	IsLikelyEncrypted bool
	FileSize          int64
	ModTime           time.Time
	Header            []byte
}

// AnalyzeFileEntropy performs entropy analysis on the first sampleBytes of a file
func AnalyzeFileEntropy(filePath string, threshold float64, sampleBytes int) (*FileEntropy, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", filePath, err)
	}

	sample, err := ReadSample(filePath, sampleBytes)
	if err != nil {
		return nil, err
	}

	entropy := CalculateShannonEntropy(sample)

	header := sample
	if len(header) > maxSignatureLength {
		header = header[:maxSignatureLength]
	}

	return &FileEntropy{
		FilePath:          filePath,
		Entropy:           entropy,
		Threshold:         threshold,
		IsLikelyEncrypted: entropy > threshold,
		FileSize:          info.Size(),
		ModTime:           info.ModTime(),
		Header:            append([]byte(nil), header...),
	}, nil
}
