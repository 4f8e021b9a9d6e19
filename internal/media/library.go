// Package media reads source images from the media directory.
package media

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxSourceBytes bounds the size of a source image.
const MaxSourceBytes = 20 << 20

var (
	// ErrInvalidName is returned for names that could escape the media directory.
	ErrInvalidName = errors.New("invalid media name")

	// ErrNotFound is returned when no source file exists under the name.
	ErrNotFound = errors.New("media not found")

	// ErrTooLarge is returned when a source exceeds MaxSourceBytes.
	ErrTooLarge = errors.New("media file too large")
)

// Info describes a source file without reading it.
type Info struct {
	Name    string
	ModTime time.Time
	Size    int64
}

// Identity names this version of the source. A replaced file gets a new
// identity, so derived variants of the old file are never served for it.
func (i Info) Identity() string {
	return fmt.Sprintf("%s@%d", i.Name, i.ModTime.UnixNano())
}

// Source is a source image loaded into memory.
type Source struct {
	Info
	Data        []byte
	ContentType string
}

// Library serves files from a single directory.
type Library struct {
	root     string
	readFile func(name string) ([]byte, error)
}

// NewLibrary creates a library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{root: dir, readFile: os.ReadFile}
}

// Root returns the media directory.
func (l *Library) Root() string {
	return l.root
}

// Stat validates name and describes the source file without reading it.
func (l *Library) Stat(name string) (Info, error) {
	if err := ValidateName(name); err != nil {
		return Info{}, err
	}

	fi, err := os.Stat(filepath.Join(l.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return Info{}, fmt.Errorf("stat %s: %w", name, err)
	}
	if !fi.Mode().IsRegular() {
		return Info{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if fi.Size() > MaxSourceBytes {
		return Info{}, fmt.Errorf("%s (%d bytes): %w", name, fi.Size(), ErrTooLarge)
	}

	return Info{Name: name, ModTime: fi.ModTime(), Size: fi.Size()}, nil
}

// Read loads the bytes of a source described by Stat.
func (l *Library) Read(info Info) (*Source, error) {
	data, err := l.readFile(filepath.Join(l.root, info.Name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", info.Name, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", info.Name, err)
	}
	if len(data) > MaxSourceBytes {
		return nil, fmt.Errorf("%s (%d bytes): %w", info.Name, len(data), ErrTooLarge)
	}

	return &Source{
		Info:        info,
		Data:        data,
		ContentType: contentType(info.Name, data),
	}, nil
}

// Open stats and reads the named source file.
func (l *Library) Open(name string) (*Source, error) {
	info, err := l.Stat(name)
	if err != nil {
		return nil, err
	}
	return l.Read(info)
}

// ValidateName rejects empty names, hidden files and anything with a path
// component.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	case strings.ContainsAny(name, `/\`), strings.Contains(name, ".."):
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	case strings.HasPrefix(name, "."), strings.ContainsRune(name, 0):
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
