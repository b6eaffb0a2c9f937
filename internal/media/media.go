// Package media stores files uploaded with a chapter script and sorts
// them into images and audio in the order they were attached.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/abhisek/coursewell/internal/compiler"
	"github.com/abhisek/coursewell/internal/lesson"
)

// sniffLen is how much of a file is read to detect its type.
const sniffLen = 3072

// ErrUnsupported is returned for files that are neither image nor audio.
var ErrUnsupported = errors.New("unsupported media type")

// Upload is one attached file.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Store writes uploads under a directory served at BaseURL.
type Store struct {
	dir     string
	baseURL string
}

// NewStore creates the upload directory if needed.
func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Dir is the directory files are written to.
func (s *Store) Dir() string { return s.dir }

// Save writes u under a random name and returns its public URL.
func (s *Store) Save(u Upload) (string, lesson.MediaType, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(u.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", "", fmt.Errorf("read %s: %w", u.Name, err)
	}
	head = head[:n]

	t, ext, err := Classify(u.ContentType, u.Name, head)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", u.Name, err)
	}

	name := uuid.NewString() + ext
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), u.Body)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", "", fmt.Errorf("close %s: %w", name, err)
	}
	return path.Join(s.baseURL, name), t, nil
}

// SaveAll saves uploads in order and groups their URLs by media type.
// Files already written are removed if a later one fails.
func (s *Store) SaveAll(uploads []Upload) (compiler.Uploads, error) {
	var out compiler.Uploads
	var written []string
	for _, u := range uploads {
		url, t, err := s.Save(u)
		if err != nil {
			s.Remove(written...)
			return compiler.Uploads{}, err
		}
		written = append(written, url)
		switch t {
		case lesson.MediaAudio:
			out.Audio = append(out.Audio, url)
		default:
			out.Images = append(out.Images, url)
		}
	}
	return out, nil
}

// Remove deletes stored files by URL. Unknown URLs are ignored.
func (s *Store) Remove(urls ...string) {
	for _, u := range urls {
		name := path.Base(u)
		if name == "." || name == "/" {
			continue
		}
		os.Remove(filepath.Join(s.dir, name))
	}
}

// Classify decides whether a file is an image or audio. The declared
// content type wins when it names one of the two; otherwise the content
// is sniffed. The returned extension is used for the stored file name.
func Classify(declared, name string, head []byte) (lesson.MediaType, string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := classifyType(declared); ok {
		return t, ext, nil
	}

	m := mimetype.Detect(head)
	for ; m != nil; m = m.Parent() {
		if t, ok := classifyType(m.String()); ok {
			if ext == "" {
				ext = m.Extension()
			}
			return t, ext, nil
		}
	}
	return "", "", ErrUnsupported
}

func classifyType(contentType string) (lesson.MediaType, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return lesson.MediaImage, true
	case strings.HasPrefix(ct, "audio/"):
		return lesson.MediaAudio, true
	}
	return "", false
}
