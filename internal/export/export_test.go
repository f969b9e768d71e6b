package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/statdash/internal/chart"
)

const lineSpec = `{"title":"Cases","data":{"values":[{"d":"2021-01-01","n":1},{"d":"2021-01-02","n":4}]},` +
	`"mark":"line","encoding":{"x":{"field":"d","type":"temporal"},"y":{"field":"n"}}}`

func renderLine(t *testing.T) chart.RenderedView {
	t.Helper()
	view, err := chart.NewImageRenderer().Render(context.Background(), json.RawMessage(lineSpec))
	require.NoError(t, err)
	return view
}

func TestSaveImage(t *testing.T) {
	view := renderLine(t)

	t.Run("explicit path", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "out", "cases.svg")
		written, err := SaveImage(context.Background(), view, chart.FormatSVG, target)
		require.NoError(t, err)
		assert.Equal(t, target, written)

		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Contains(t, string(data), "<svg")
	})

	t.Run("directory gets the default name", func(t *testing.T) {
		dir := t.TempDir()
		written, err := SaveImage(context.Background(), view, chart.FormatPNG, dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "visualization.png"), written)

		data, err := os.ReadFile(written)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := SaveImage(context.Background(), view, "bmp", filepath.Join(t.TempDir(), "x.bmp"))
		assert.ErrorIs(t, err, chart.ErrUnsupportedFormat)
	})
}

func TestDecodeDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("hello"))

	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "valid", url: "data:image/svg+xml;base64," + payload, want: "hello"},
		{name: "no scheme", url: "http://x/y.png", wantErr: true},
		{name: "png", url: "data:image/png;base64," + payload, want: "hello"},
		{name: "not base64 encoded", url: "data:image/svg+xml,hello", wantErr: true},
		{name: "not an image", url: "data:text/plain;base64," + payload, wantErr: true},
		{name: "corrupt payload", url: "data:image/png;base64,%%%", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDataURL(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDataURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestWriteSourceAndCompiled(t *testing.T) {
	view := renderLine(t)

	var src bytes.Buffer
	require.NoError(t, WriteSource(&src, view))
	assert.JSONEq(t, lineSpec, src.String())
	assert.True(t, strings.Contains(src.String(), "\n  \""), "output is indented")

	var compiled bytes.Buffer
	require.NoError(t, WriteCompiled(&compiled, view))
	assert.Contains(t, compiled.String(), `"x_axis": "temporal"`)
}

func TestWriteSource_KeepsKeyOrderAndNumbers(t *testing.T) {
	raw := `{"title":"Big","mark":"line","data":{"values":[{"d":"2021-01-01","n":9007199254740993}]},` +
		`"encoding":{"x":{"field":"d","type":"temporal"},"y":{"field":"n"}}}`
	view, err := chart.NewImageRenderer().Render(context.Background(), json.RawMessage(raw))
	require.NoError(t, err)

	var src bytes.Buffer
	require.NoError(t, WriteSource(&src, view))
	out := src.String()

	assert.True(t, strings.HasPrefix(out, "{\n  \"title\": \"Big\",\n  \"mark\": \"line\""), out)
	assert.Less(t, strings.Index(out, `"mark"`), strings.Index(out, `"data"`))
	assert.Contains(t, out, "9007199254740993")
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

type fakeClipboard struct {
	text string
	err  error
}

func (f *fakeClipboard) WriteAll(text string) error {
	if f.err != nil {
		return f.err
	}
	f.text = text
	return nil
}

func TestCopyPermalink(t *testing.T) {
	cb := &fakeClipboard{}
	require.NoError(t, CopyPermalink("http://dash/?id=20&selcounty=Kings%20County", cb))
	assert.Equal(t, "http://dash/?id=20&selcounty=Kings%20County", cb.text)

	failing := &fakeClipboard{err: errors.New("no display")}
	assert.Error(t, CopyPermalink("x", failing))

	assert.ErrorIs(t, CopyPermalink("x", nil), ErrClipboardUnavailable)
}

func TestDefaultFileName(t *testing.T) {
	assert.Equal(t, "visualization.svg", DefaultFileName("SVG"))
}
