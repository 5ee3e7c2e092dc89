package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Integrity computes and verifies SHA-256 checksums over files, buffers,
// and strings. It has no side effects beyond reading the target file.
type Integrity struct{}

// NewIntegrity creates a new integrity engine
func NewIntegrity() *Integrity {
	return &Integrity{}
}

// ChecksumFile streams the file through SHA-256 and returns the hex digest
func (ie *Integrity) ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", NewIOError(fmt.Sprintf("failed to open file for checksum: %s", path), err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", NewIOError(fmt.Sprintf("failed to read file for checksum: %s", path), err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumBytes returns the SHA-256 hex digest of a buffer
func (ie *Integrity) ChecksumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ChecksumString returns the SHA-256 hex digest of a string
func (ie *Integrity) ChecksumString(s string) string {
	return ie.ChecksumBytes([]byte(s))
}

// VerifyFile recomputes the file's digest and compares it against expected.
// The comparison is a case-sensitive exact match.
func (ie *Integrity) VerifyFile(path, expected string) (bool, error) {
	actual, err := ie.ChecksumFile(path)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

// VerifyBytes recomputes the buffer's digest and compares it against expected
func (ie *Integrity) VerifyBytes(data []byte, expected string) bool {
	return ie.ChecksumBytes(data) == expected
}
