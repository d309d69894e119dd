package ebook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coreybb/rhymera/models"
	"github.com/go-pdf/fpdf"
)

// ErrRender is returned when the document itself cannot be assembled.
var ErrRender = errors.New("failed to render book")

const (
	pdfFont = "Helvetica"

	// Illustrations are scaled to fit a 6in x 4in box.
	imageBoxWidthMM  = 152.4
	imageBoxHeightMM = 101.6

	titleSize    = 26
	subtitleSize = 14
	headingSize  = 16
	bodySize     = 13
	lineHeightMM = 7
)

type PDFRenderer struct {
	images imageResolver
}

// NewPDFRenderer creates a PDFRenderer. blobs may be nil, in which case only inline images render.
func NewPDFRenderer(blobs BlobGetter) *PDFRenderer {
	return &PDFRenderer{images: imageResolver{blobs: blobs}}
}

// Render produces a PDF with a title page and one page per book page. Images that cannot be
// loaded are logged and left out.
func (r *PDFRenderer) Render(ctx context.Context, book *models.BookRecord) ([]byte, error) {
	layout := BuildLayout(book)

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetCreationDate(layout.CreatedAt)
	pdf.SetModificationDate(layout.CreatedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(layout.Title, true)
	pdf.SetProducer("rhymera", true)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	contentWidth := pageWidth - left - right

	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", titleSize)
	pdf.Ln(40)
	pdf.MultiCell(contentWidth, 12, tr(layout.Title), "", "C", false)
	if layout.Subtitle != "" {
		pdf.Ln(6)
		pdf.SetFont(pdfFont, "I", subtitleSize)
		pdf.MultiCell(contentWidth, 8, tr(layout.Subtitle), "", "C", false)
	}

	var embedded int
	for _, section := range layout.Sections {
		pdf.AddPage()
		pdf.SetFont(pdfFont, "B", headingSize)
		pdf.MultiCell(contentWidth, 10, tr(section.Heading), "", "L", false)
		pdf.Ln(2)
		pdf.SetFont(pdfFont, "", bodySize)
		pdf.MultiCell(contentWidth, lineHeightMM, tr(section.Text), "", "L", false)

		img, err := r.images.prepare(ctx, section.Image)
		if err != nil {
			logSkippedImage(ctx, "pdf_renderer", book.ID, section.Label, err)
			continue
		}
		pdf.Ln(6)
		placeImage(pdf, section.Label, img, left, contentWidth)
		embedded++

		if pdf.Err() {
			break
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}

	slog.DebugContext(ctx, "Rendered PDF", "component", "pdf_renderer", "book_id", book.ID,
		"pages", len(layout.Sections), "images", embedded, "bytes", buf.Len())
	return buf.Bytes(), nil
}

func placeImage(pdf *fpdf.Fpdf, name string, img *preparedImage, left, contentWidth float64) {
	w, h := fitBox(float64(img.Width), float64(img.Height), imageBoxWidthMM, imageBoxHeightMM)
	opts := fpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.JPEG))

	x := left + (contentWidth-w)/2
	pdf.ImageOptions(name, x, pdf.GetY(), w, h, true, opts, 0, "")
}

// fitBox scales w x h to fit inside boxW x boxH, keeping the aspect ratio.
func fitBox(w, h, boxW, boxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return boxW, boxH
	}
	scale := boxW / w
	if s := boxH / h; s < scale {
		scale = s
	}
	return w * scale, h * scale
}
