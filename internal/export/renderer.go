package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/go-pdf/fpdf"
)

// Output is a rendered file.
type Output struct {
	Data      []byte
	MIMEType  string
	Extension string
}

// Renderer turns a job into file bytes.
type Renderer interface {
	Render(ctx context.Context, job *Job) (*Output, error)
}

// RendererFor returns the renderer for f. Formats without a renderer return
// ErrUnsupportedFormat.
func RendererFor(f Format) (Renderer, error) {
	switch f {
	case FormatPDF:
		return PDFRenderer{}, nil
	case FormatPNG:
		return ImageRenderer{Format: FormatPNG}, nil
	case FormatJPG:
		return ImageRenderer{Format: FormatJPG}, nil
	case FormatSVG, FormatHTML, FormatDOCX:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// PDFRenderer renders a single US Letter page labelled with the export type.
type PDFRenderer struct{}

// Render produces the PDF.
func (PDFRenderer) Render(_ context.Context, job *Job) (*Output, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle("Event Export: "+string(job.Type), true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 16)
	pdf.Text(50, 50, "Event Export: "+string(job.Type))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return &Output{Data: buf.Bytes(), MIMEType: "application/pdf", Extension: "pdf"}, nil
}

// Image dimensions for raster exports.
const (
	ImageWidth  = 800
	ImageHeight = 600
)

// ImageRenderer renders a solid white raster image.
type ImageRenderer struct {
	Format Format
}

// Render produces the PNG or JPEG.
func (r ImageRenderer) Render(_ context.Context, _ *Job) (*Output, error) {
	img := image.NewRGBA(image.Rect(0, 0, ImageWidth, ImageHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	switch r.Format {
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("render png: %w", err)
		}
		return &Output{Data: buf.Bytes(), MIMEType: "image/png", Extension: "png"}, nil
	case FormatJPG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("render jpeg: %w", err)
		}
		return &Output{Data: buf.Bytes(), MIMEType: "image/jpeg", Extension: "jpg"}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, r.Format)
	}
}
