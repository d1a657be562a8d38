// Package fingerprint derives content identities and blob storage keys.
//
// The BLAKE3 digest computed here is a deduplication key: two uploads with
// the same digest are treated as the same content. It is not an integrity
// check and carries no security guarantee.
package fingerprint

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Size is the digest length in bytes.
const Size = 32

// Hash is a BLAKE3-256 content digest.
type Hash [Size]byte

// String returns the lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash decodes the hex form produced by Hash.String.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("parse hash: %w", err)
	}
	if len(b) != Size {
		return h, fmt.Errorf("parse hash: want %d bytes, got %d", Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ErrTooLarge is returned by Spool when the stream exceeds the limit.
var ErrTooLarge = errors.New("content exceeds size limit")

// Compute reads r to the end and returns its digest and length.
func Compute(r io.Reader) (Hash, int64, error) {
	hasher := blake3.New()
	n, err := io.Copy(hasher, r)
	if err != nil {
		return Hash{}, n, err
	}
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h, n, nil
}

// Spooled is a fingerprinted copy of an upload kept in a temp file so it can
// be read again for the blob write.
type Spooled struct {
	File *os.File
	Hash Hash
	Size int64
}

// Read reads from the spooled copy.
func (s *Spooled) Read(p []byte) (int, error) {
	return s.File.Read(p)
}

// Seek seeks within the spooled copy.
func (s *Spooled) Seek(offset int64, whence int) (int64, error) {
	return s.File.Seek(offset, whence)
}

// Rewind positions the spooled copy at its first byte.
func (s *Spooled) Rewind() error {
	_, err := s.Seek(0, io.SeekStart)
	return err
}

// Close closes and removes the temp file.
func (s *Spooled) Close() error {
	name := s.File.Name()
	err := s.File.Close()
	if rmErr := os.Remove(name); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

// Spool copies r into a temp file under dir (the OS default when empty)
// while hashing it. The returned copy is rewound. A positive limit caps the
// number of bytes accepted; longer streams fail with ErrTooLarge.
func Spool(dir string, r io.Reader, limit int64) (*Spooled, error) {
	file, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return nil, err
	}
	s := &Spooled{File: file}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}

	hasher := blake3.New()
	n, err := io.Copy(file, io.TeeReader(src, hasher))
	if err != nil {
		s.Close()
		return nil, err
	}
	if limit > 0 && n > limit {
		s.Close()
		return nil, ErrTooLarge
	}

	copy(s.Hash[:], hasher.Sum(nil))
	s.Size = n

	if err := s.Rewind(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
