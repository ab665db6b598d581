package scanner

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/skip2/go-qrcode"
	"gotest.tools/v3/assert"
)

func TestQRDecoder_RoundTrip(t *testing.T) {
	code, err := qrcode.New("3f0e2a9c-51d4-4c1b-8a7e-9d2b6c4f1e07", qrcode.Medium)
	assert.NilError(t, err)

	token, err := NewQRDecoder().Decode(code.Image(256))

	assert.NilError(t, err)
	assert.Equal(t, token, "3f0e2a9c-51d4-4c1b-8a7e-9d2b6c4f1e07")
}

func TestQRDecoder_BlankFrame(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 200, 200))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}

	_, err := NewQRDecoder().Decode(blank)

	assert.Assert(t, errors.Is(err, ErrNoCode))
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	assert.NilError(t, qrcode.WriteFile("pickup-token", qrcode.Medium, 256, path))

	source := NewFileSource(path)
	frame, err := source.Frame(context.Background())
	assert.NilError(t, err)

	token, err := NewQRDecoder().Decode(frame)
	assert.NilError(t, err)
	assert.Equal(t, token, "pickup-token")

	assert.NilError(t, source.Close())
	_, err = source.Frame(context.Background())
	assert.ErrorIs(t, err, ErrSourceClosed)
}

func TestFileSource_MissingSnapshot(t *testing.T) {
	source := NewFileSource(filepath.Join(t.TempDir(), "missing.png"))

	_, err := source.Frame(context.Background())

	assert.Assert(t, errors.Is(err, os.ErrNotExist))
}
