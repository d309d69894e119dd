package ebook

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/coreybb/rhymera/models"
	epub "github.com/go-shiori/go-epub"
	"github.com/microcosm-cc/bluemonday"
	"github.com/vincent-petithory/dataurl"
)

const epubAuthor = "Rhymera"

// EPUBRenderer builds an EPUB with one section per book page.
type EPUBRenderer struct {
	images   imageResolver
	sanitize *bluemonday.Policy
}

func NewEPUBRenderer(blobs BlobGetter) *EPUBRenderer {
	return &EPUBRenderer{
		images:   imageResolver{blobs: blobs},
		sanitize: bluemonday.StrictPolicy(),
	}
}

func (r *EPUBRenderer) Render(ctx context.Context, book *models.BookRecord) ([]byte, error) {
	startTime := time.Now()
	layout := BuildLayout(book)

	e, err := epub.NewEpub(layout.Title)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create epub: %v", ErrRender, err)
	}
	e.SetAuthor(epubAuthor)
	e.SetLang("en")
	if layout.Subtitle != "" {
		e.SetDescription(layout.Subtitle)
	}

	if img, err := r.images.prepare(ctx, layout.Cover); err != nil {
		logSkippedImage(ctx, "epub_renderer", book.ID, "cover", err)
	} else if coverPath, err := e.AddImage(toDataURL(img), "cover.jpg"); err != nil {
		slog.WarnContext(ctx, "Failed to embed cover", "component", "epub_renderer", "book_id", book.ID, "error", err)
	} else {
		e.SetCover(coverPath, "")
	}

	var embedded int
	for _, section := range layout.Sections {
		var body strings.Builder
		body.WriteString("<h2>" + html.EscapeString(section.Heading) + "</h2>")
		for _, para := range strings.Split(section.Text, "\n") {
			if para = strings.TrimSpace(para); para != "" {
				body.WriteString("<p>" + r.sanitize.Sanitize(para) + "</p>")
			}
		}

		img, err := r.images.prepare(ctx, section.Image)
		if err != nil {
			logSkippedImage(ctx, "epub_renderer", book.ID, section.Label, err)
		} else if imgPath, err := e.AddImage(toDataURL(img), section.Label+".jpg"); err != nil {
			slog.WarnContext(ctx, "Failed to embed image", "component", "epub_renderer", "book_id", book.ID, "image", section.Label, "error", err)
		} else {
			body.WriteString(fmt.Sprintf(`<img src="%s" alt="%s"/>`, imgPath, html.EscapeString(section.Heading)))
			embedded++
		}

		if _, err := e.AddSection(body.String(), section.Heading, section.Label+".xhtml", ""); err != nil {
			return nil, fmt.Errorf("%w: failed to add section to epub: %v", ErrRender, err)
		}
	}

	var buf bytes.Buffer
	if _, err := e.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: failed to write epub: %v", ErrRender, err)
	}

	slog.DebugContext(ctx, "Rendered EPUB", "component", "epub_renderer", "book_id", book.ID,
		"pages", len(layout.Sections), "images", embedded, "bytes", buf.Len(), "took", time.Since(startTime))
	return buf.Bytes(), nil
}

func toDataURL(img *preparedImage) string {
	return dataurl.New(img.JPEG, "image/jpeg").String()
}
