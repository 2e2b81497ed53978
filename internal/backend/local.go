package backend

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"
)

// LocalBlob is the fallback store: one file holding the base64 of the
// full image.
type LocalBlob struct {
	path string
}

// NewLocalBlob returns a blob stored at path.
func NewLocalBlob(path string) *LocalBlob {
	return &LocalBlob{path: path}
}

// Path returns the blob file path.
func (b *LocalBlob) Path() string {
	return b.path
}

// Load returns the stored image, or nil when no blob has been written yet.
func (b *LocalBlob) Load() ([]byte, error) {
	encoded, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load local blob: %w", err)
	}
	image, err := base64.StdEncoding.DecodeString(string(trimNewline(encoded)))
	if err != nil {
		return nil, fmt.Errorf("load local blob: decode: %w", err)
	}
	return image, nil
}

// ModTime returns when the blob was last written. ok is false when no
// blob exists.
func (b *LocalBlob) ModTime() (t time.Time, ok bool, err error) {
	st, err := os.Stat(b.path)
	if os.IsNotExist(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("stat local blob: %w", err)
	}
	return st.ModTime(), true, nil
}

// Save replaces the blob. The write goes through a temp file and rename,
// so a crash never leaves a half-written blob.
func (b *LocalBlob) Save(image []byte) error {
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(image)))
	base64.StdEncoding.Encode(encoded, image)
	if err := writeFileAtomic(b.path, encoded, 0o600); err != nil {
		return fmt.Errorf("save local blob: %w", err)
	}
	return nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
