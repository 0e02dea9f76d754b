package archive

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/neurogrid/internal/store"
)

// FormatVersion is the archive layout written by Write.
const FormatVersion = 1

// MaxDecompressedSize caps the decompressed payload of an archive (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// Header is the plain-text first line of an archive file.
type Header struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
	RunID     string    `json:"run_id"`
	Scenario  string    `json:"scenario,omitempty"`
	Snapshots int       `json:"snapshots"`
}

// Archive is the payload of an archive file: one run and all its snapshots.
type Archive struct {
	CreatedAt time.Time        `json:"created_at"`
	Run       store.Run        `json:"run"`
	Snapshots []store.Snapshot `json:"snapshots"`
}

// Write stores a as a header line followed by the gzip-compressed JSON
// payload. The header carries the SHA-256 of the compressed bytes.
func Write(path string, a *Archive) (*Header, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	header := &Header{
		Version:   FormatVersion,
		CreatedAt: a.CreatedAt,
		Checksum:  checksum(compressed.Bytes()),
		RunID:     a.Run.ID,
		Scenario:  a.Run.Scenario,
		Snapshots: len(a.Snapshots),
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	w.Write(headerBytes)
	w.WriteByte('\n')
	w.Write(compressed.Bytes())
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("writing archive: %w", err)
	}

	return header, nil
}

// Read loads an archive, verifies its checksum and decompresses the payload.
func Read(path string) (*Archive, error) {
	header, compressed, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	if actual := checksum(compressed); actual != header.Checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var a Archive
	if err := json.Unmarshal(decompressed, &a); err != nil {
		return nil, fmt.Errorf("parsing archive data: %w", err)
	}
	if a.Run.ID != header.RunID {
		return nil, fmt.Errorf("header names run %s but payload holds %s", header.RunID, a.Run.ID)
	}
	return &a, nil
}

// ReadHeader reads only the header line of an archive.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return parseHeader(bufio.NewReader(f))
}

func readRaw(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	header, err := parseHeader(reader)
	if err != nil {
		return nil, nil, err
	}
	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	return header, compressed, nil
}

func parseHeader(r *bufio.Reader) (*Header, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported archive version %d", header.Version)
	}
	return &header, nil
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}
