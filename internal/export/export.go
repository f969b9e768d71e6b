// Package export implements the actions menu of a rendered view: saving an
// image, printing the source or compiled chart, and sharing a permalink.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/vincent-petithory/dataurl"

	"github.com/rshade/statdash/internal/chart"
)

// DefaultBaseName is the file name used when no output path is given.
const DefaultBaseName = "visualization"

// ErrClipboardUnavailable is returned when no system clipboard can be used.
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// ErrInvalidDataURL is returned for image URLs that are not base64 data URLs.
var ErrInvalidDataURL = errors.New("invalid data URL")

// DefaultFileName returns visualization.<format>.
func DefaultFileName(format string) string {
	return DefaultBaseName + "." + strings.ToLower(format)
}

// SaveImage renders view in format and writes it to path. An empty path or a
// directory writes DefaultFileName inside it. It returns the written path.
func SaveImage(ctx context.Context, view chart.RenderedView, format, path string) (string, error) {
	target, err := resolvePath(path, format)
	if err != nil {
		return "", err
	}

	url, err := view.ToImageURL(ctx, format)
	if err != nil {
		return "", err
	}
	data, err := DecodeDataURL(url)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return target, nil
}

func resolvePath(path, format string) (string, error) {
	if path == "" {
		return DefaultFileName(format), nil
	}
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(path, DefaultFileName(format)), nil
	case err == nil, errors.Is(err, os.ErrNotExist):
		return path, nil
	default:
		return "", fmt.Errorf("checking output path: %w", err)
	}
}

// DecodeDataURL returns the payload of a base64 image data: URL.
func DecodeDataURL(url string) ([]byte, error) {
	du, err := dataurl.DecodeString(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
	}
	if du.Encoding != dataurl.EncodingBase64 {
		return nil, fmt.Errorf("%w: %s encoding", ErrInvalidDataURL, du.Encoding)
	}
	if du.MediaType.Type != "image" {
		return nil, fmt.Errorf("%w: media type %s", ErrInvalidDataURL, du.MediaType.ContentType())
	}
	return du.Data, nil
}

// WriteSource writes the Vega-Lite document of view as indented JSON.
func WriteSource(w io.Writer, view chart.RenderedView) error {
	return writeIndented(w, view.Source())
}

// WriteCompiled writes the compiled series of view as indented JSON.
func WriteCompiled(w io.Writer, view chart.RenderedView) error {
	data, err := view.Compiled()
	if err != nil {
		return fmt.Errorf("encoding compiled chart: %w", err)
	}
	return writeIndented(w, data)
}

// writeIndented indents data without decoding it, so key order and number
// literals stay as received.
func writeIndented(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("decoding chart: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// Clipboard is a writable text clipboard.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard uses the operating system clipboard.
type SystemClipboard struct{}

// WriteAll copies text to the system clipboard.
func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnavailable
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("%w: %w", ErrClipboardUnavailable, err)
	}
	return nil
}

// CopyPermalink copies url to cb.
func CopyPermalink(url string, cb Clipboard) error {
	if cb == nil {
		return ErrClipboardUnavailable
	}
	return cb.WriteAll(url)
}
