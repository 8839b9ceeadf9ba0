// decoy_tamper exercises a running protect instance by damaging files the way
// ransomware would. Only directories whose path names them as test data are accepted.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type tamperer struct {
	dir       string
	mode      string
	pattern   string
	rate      int
	extension string
	scrambler Scrambler
}

func main() {
	t := &tamperer{}
	var algorithm, password string

	flag.StringVar(&t.dir, "dir", "", "Directory holding decoys or sample files (REQUIRED)")
	flag.StringVar(&t.mode, "mode", "append", "Tamper mode: append, encrypt, rename, delete, plant")
	flag.StringVar(&t.pattern, "pattern", "*", "File pattern to tamper with (e.g. '*.docx')")
	flag.IntVar(&t.rate, "rate", 10, "Files per second")
	flag.StringVar(&t.extension, "ext", ".locked", "Extension added by rename and encrypt")
	flag.StringVar(&algorithm, "algorithm", "aes", "Encrypt algorithm: aes, random")
	flag.StringVar(&password, "password", "", "Password for key derivation (aes only)")
	count := flag.Int("count", 20, "Number of plaintext files created by plant")
	flag.Parse()

	if t.dir == "" {
		log.Fatal("ERROR: -dir flag is required")
	}
	if !isSafeDirectory(t.dir) {
		log.Fatalf("ERROR: Directory '%s' is not safe. Use an isolated test directory.", t.dir)
	}

	if t.mode == "plant" {
		if err := plantFiles(t.dir, *count); err != nil {
			log.Fatalf("ERROR: %v", err)
		}
		return
	}

	if t.mode == "encrypt" {
		scrambler, err := newScrambler(algorithm, password)
		if err != nil {
			log.Fatalf("ERROR: %v", err)
		}
		t.scrambler = scrambler
	}

	files, err := filepath.Glob(filepath.Join(t.dir, t.pattern))
	if err != nil {
		log.Fatalf("ERROR: invalid pattern: %v", err)
	}

	delay := time.Second
	if t.rate > 0 {
		delay = time.Second / time.Duration(t.rate)
	}

	log.Printf("[*] Tampering with up to %d files in %s (mode %s)", len(files), t.dir, t.mode)

	done := 0
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || strings.HasPrefix(info.Name(), ".") {
			continue
		}
		if err := t.tamper(path); err != nil {
			log.Printf("[!] %s: %v", path, err)
			continue
		}
		done++
		log.Printf("[+] %s %s", t.mode, path)
		time.Sleep(delay)
	}

	log.Printf("[*] Done: %d files tampered", done)
}

func (t *tamperer) tamper(path string) error {
	switch t.mode {
	case "append":
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			return err
		}
		if _, err := f.WriteString("ENCRYPTED_DATA_JUNK"); err != nil {
			f.Close()
			return err
		}
		return f.Close()

	case "encrypt":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sealed, err := t.scrambler.Scramble(data)
		if err != nil {
			return err
		}
		// in place, like ransomware that keeps the original name
		if err := os.WriteFile(path, sealed, 0644); err != nil {
			return err
		}
		if t.extension == "" {
			return nil
		}
		return os.Rename(path, path+t.extension)

	case "rename":
		return os.Rename(path, path+t.extension)

	case "delete":
		return os.Remove(path)

	default:
		return fmt.Errorf("unknown mode %q", t.mode)
	}
}

// plantFiles writes low-entropy documents so the entropy scanner has baselines to compare against
func plantFiles(dir string, count int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	line := "Quarterly revenue report. Figures are preliminary and subject to audit.\n"
	for i := 0; i < count; i++ {
		var buf bytes.Buffer
		for j := 0; j < 200+i*10; j++ {
			fmt.Fprintf(&buf, "%04d %s", j, line)
		}
		path := filepath.Join(dir, fmt.Sprintf("document_%03d.txt", i))
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return err
		}
	}

	log.Printf("[+] Planted %d plaintext files in %s", count, dir)
	return nil
}

func isSafeDirectory(dir string) bool {
	unsafePaths := []string{
		"C:\\Windows",
		"C:\\Program Files",
		"/etc",
		"/usr",
		"/bin",
		os.Getenv("APPDATA"),
	}

	absDir, _ := filepath.Abs(dir)

	for _, unsafePath := range unsafePaths {
		if unsafePath != "" && strings.HasPrefix(absDir, unsafePath) {
			return false
		}
	}

	dirLower := strings.ToLower(filepath.ToSlash(absDir))
	return strings.Contains(dirLower, "test") ||
		strings.Contains(dirLower, "sim") ||
		strings.Contains(dirLower, "demo") ||
		strings.Contains(dirLower, "decoy")
}
