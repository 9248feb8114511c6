package inspirehub

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// File is an in-memory file attached to a multipart request. Content is
// kept as bytes so the body can be rebuilt when a request is retried.
type File struct {
	Name    string
	Content []byte
}

// FileFromPath reads the file at path into a [File].
func FileFromPath(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return &File{Name: filepath.Base(path), Content: content}, nil
}

// Multipart is a multipart/form-data request body.
type Multipart struct {
	Fields map[string]string
	Files  map[string]*File
}

// NewMultipart returns an empty multipart body.
func NewMultipart() *Multipart {
	return &Multipart{
		Fields: map[string]string{},
		Files:  map[string]*File{},
	}
}

// SetField sets a plain form field. Empty values are skipped.
func (m *Multipart) SetField(name, value string) *Multipart {
	if value != "" {
		m.Fields[name] = value
	}
	return m
}

// SetFile attaches f under the form field name. A nil file is skipped.
func (m *Multipart) SetFile(name string, f *File) *Multipart {
	if f != nil {
		m.Files[name] = f
	}
	return m
}

// encode writes the body and returns it with its content type.
func (m *Multipart) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range m.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %q: %w", name, err)
		}
	}

	for name, f := range m.Files {
		part, err := w.CreateFormFile(name, f.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %q: %w", name, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("write form file %q: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
