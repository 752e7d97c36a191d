package export_test

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invitely/invitely/internal/export"
)

func TestRendererFor_CoversEveryFormat(t *testing.T) {
	supported := map[export.Format]bool{
		export.FormatPDF: true,
		export.FormatPNG: true,
		export.FormatJPG: true,
	}

	for _, f := range export.AllFormats() {
		t.Run(string(f), func(t *testing.T) {
			r, err := export.RendererFor(f)
			if supported[f] {
				require.NoError(t, err)
				assert.NotNil(t, r)
				return
			}
			assert.ErrorIs(t, err, export.ErrUnsupportedFormat)
			assert.Nil(t, r)
		})
	}
}

func TestRendererFor_UnknownFormat(t *testing.T) {
	_, err := export.RendererFor(export.Format("gif"))
	assert.ErrorIs(t, err, export.ErrUnsupportedFormat)
}

func TestPDFRenderer(t *testing.T) {
	r, err := export.RendererFor(export.FormatPDF)
	require.NoError(t, err)

	out, err := r.Render(context.Background(), &export.Job{Type: export.TypeInvitation})
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", out.MIMEType)
	assert.Equal(t, "pdf", out.Extension)
	assert.True(t, bytes.HasPrefix(out.Data, []byte("%PDF-")))
}

func TestImageRenderer(t *testing.T) {
	tests := []struct {
		format   export.Format
		mimeType string
		ext      string
		decoded  string
	}{
		{format: export.FormatPNG, mimeType: "image/png", ext: "png", decoded: "png"},
		{format: export.FormatJPG, mimeType: "image/jpeg", ext: "jpg", decoded: "jpeg"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			r, err := export.RendererFor(tt.format)
			require.NoError(t, err)

			out, err := r.Render(context.Background(), &export.Job{Type: export.TypeSaveDate, Format: tt.format})
			require.NoError(t, err)
			assert.Equal(t, tt.mimeType, out.MIMEType)
			assert.Equal(t, tt.ext, out.Extension)

			cfg, kind, err := image.DecodeConfig(bytes.NewReader(out.Data))
			require.NoError(t, err)
			assert.Equal(t, tt.decoded, kind)
			assert.Equal(t, export.ImageWidth, cfg.Width)
			assert.Equal(t, export.ImageHeight, cfg.Height)
		})
	}
}
