package posts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

var extPattern = regexp.MustCompile(`\.([a-zA-Z0-9]+)(?:\?|$)`)

// Image is an upload picked by the user. Name is a file name or URI and only
// supplies the extension.
type Image struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Ext returns the extension of Name without the dot, or "jpg".
func (i *Image) Ext() string {
	if m := extPattern.FindStringSubmatch(i.Name); m != nil {
		return m[1]
	}
	return "jpg"
}

// OpenImage opens a local file for upload. The caller closes the file.
func OpenImage(path string) (*Image, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open image: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("failed to stat image: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%s is a directory", path)
	}

	return &Image{Name: filepath.Base(path), Size: info.Size(), Body: f}, f, nil
}
