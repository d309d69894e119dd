// Package processing runs the book generation pipeline: text, cover, page illustrations, persistence.
package processing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coreybb/rhymera/models"
	"github.com/coreybb/rhymera/storage"
	"github.com/gabriel-vasile/mimetype"
)

type TextGenerator interface {
	Generate(ctx context.Context, req models.BookRequest) (*models.BookText, error)
}

// IllustrationGenerator never fails; a missing image is reported through ImageResult.Reason.
type IllustrationGenerator interface {
	Generate(ctx context.Context, prompt, style string) models.ImageResult
}

// BookStore is the owner-scoped book repository.
type BookStore interface {
	Create(ctx context.Context, book *models.BookRecord) error
	List(ctx context.Context, ownerID string, limit, offset int) ([]models.BookRecord, error)
	Get(ctx context.Context, bookID, ownerID string) (*models.BookRecord, error)
}

type PipelineOptions struct {
	PageStyle  string
	CoverStyle string
}

// BookPipeline generates a complete book for one request. Stages run strictly one after another.
type BookPipeline struct {
	Text          TextGenerator
	Illustrations IllustrationGenerator
	Books         BookStore
	// Blobs is optional. When set, every generated image is also stored there and referenced.
	Blobs storage.BlobStore

	pageStyle  string
	coverStyle string
}

func NewBookPipeline(
	text TextGenerator,
	illustrations IllustrationGenerator,
	books BookStore,
	blobs storage.BlobStore,
	opts PipelineOptions,
) *BookPipeline {
	return &BookPipeline{
		Text:          text,
		Illustrations: illustrations,
		Books:         books,
		Blobs:         blobs,
		pageStyle:     opts.PageStyle,
		coverStyle:    opts.CoverStyle,
	}
}

// Generate runs the pipeline. A text generation failure aborts before anything is stored.
// Illustration failures only downgrade the affected illustration to absent.
// A nil principal gets the generated book back without it being persisted, so its ID stays empty.
func (p *BookPipeline) Generate(ctx context.Context, req models.BookRequest, principal *models.Principal) (*models.BookRecord, error) {
	startTime := time.Now()
	log := slog.With("component", "book_pipeline", "book_type", req.BookType, "requested_pages", req.PageCount)

	bookText, err := p.Text.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate book text: %w", err)
	}

	// Blobs are only written for books that will be persisted.
	persist := principal != nil

	book := &models.BookRecord{
		Title:      bookText.Title(),
		BookType:   bookText.BookType,
		Topic:      req.Topic,
		PageCount:  len(bookText.BookContent),
		TitleCover: bookText.TitleCover,
		Cover:      models.NotAttemptedIllustration(),
		Pages:      make([]models.GeneratedPage, 0, len(bookText.BookContent)),
		CreatedAt:  time.Now().UTC(),
	}
	if book.BookType == "" {
		book.BookType = req.BookType
	}

	if coverPrompt := strings.TrimSpace(bookText.BookCover); coverPrompt != "" {
		book.CoverPrompt = &coverPrompt
		result := p.Illustrations.Generate(ctx, coverPrompt, p.coverStyle)
		book.Cover = p.illustrationFrom(ctx, result, "cover", persist)
	}

	var illustrated int
	for _, page := range bookText.BookContent {
		result := p.Illustrations.Generate(ctx, page.Illustration, p.pageStyle)
		ill := p.illustrationFrom(ctx, result, fmt.Sprintf("page_%d", page.Page), persist)
		if ill.Status == models.IllustrationPresent {
			illustrated++
		} else {
			log.WarnContext(ctx, "Page left without illustration", "page", page.Page, "reason", ill.Reason)
		}
		book.Pages = append(book.Pages, models.GeneratedPage{
			PageNumber:         page.Page,
			Content:            page.Content,
			IllustrationPrompt: page.Illustration,
			Illustration:       ill,
		})
	}

	if !persist {
		book.Normalize()
		log.InfoContext(ctx, "Generated book for anonymous caller, not persisted",
			"pages", len(book.Pages), "illustrated", illustrated, "took", time.Since(startTime))
		return book, nil
	}

	book.OwnerID = principal.UserID
	if err := p.Books.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to persist generated book: %w", err)
	}

	log.InfoContext(ctx, "Generated and stored book",
		"book_id", book.ID, "owner_id", book.OwnerID, "pages", len(book.Pages), "illustrated", illustrated,
		"cover", book.Cover.Status, "took", time.Since(startTime))
	return book, nil
}

func (p *BookPipeline) illustrationFrom(ctx context.Context, result models.ImageResult, name string, store bool) models.Illustration {
	if !result.Present() {
		return models.AbsentIllustration(result.Reason)
	}

	mimeType := result.MIMEType
	if mimeType == "" {
		mimeType = mimetype.Detect(result.Data).String()
	}

	var ref string
	if store && p.Blobs != nil {
		filename := name + extensionFor(mimeType)
		id, err := p.Blobs.Put(ctx, result.Data, filename, mimeType)
		if err != nil {
			slog.WarnContext(ctx, "Failed to store illustration blob, keeping inline copy only",
				"component", "book_pipeline", "name", name, "error", err)
		} else {
			ref = id
		}
	}
	return models.PresentIllustration(result.Data, mimeType, ref)
}

func extensionFor(mimeType string) string {
	if m := mimetype.Lookup(mimeType); m != nil {
		return m.Extension()
	}
	return ".png"
}
