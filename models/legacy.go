package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LegacyPage is a page in the version-1 book document.
type LegacyPage struct {
	Page             int     `json:"page" bson:"page"`
	Content          string  `json:"content" bson:"content"`
	Illustration     string  `json:"illustration" bson:"illustration"`
	B64JSON          *string `json:"b64_json" bson:"b64_json"`
	IllustrationFile *string `json:"illustration_file" bson:"illustration_file"`
}

// LegacyContent is the raw generator output that version-1 documents stored verbatim.
type LegacyContent struct {
	Pages        int          `json:"pages" bson:"pages"`
	BookType     string       `json:"book_type" bson:"book_type"`
	BookContent  []LegacyPage `json:"book_content" bson:"book_content"`
	BookCover    string       `json:"book_cover" bson:"book_cover"`
	TitleCover   string       `json:"title_cover" bson:"title_cover"`
	CoverB64JSON *string      `json:"cover_b64_json" bson:"cover_b64_json"`
	CoverFile    *string      `json:"cover_file" bson:"cover_file"`
}

// LegacyBook is the version-1 book document: {user_id, title, content, created_at}.
// ID is filled in by the store since its encoding is store specific.
type LegacyBook struct {
	ID           string        `json:"id" bson:"-"`
	UserID       string        `json:"user_id" bson:"user_id"`
	Title        string        `json:"title" bson:"title"`
	Content      LegacyContent `json:"content" bson:"content"`
	CreatedAt    time.Time     `json:"-" bson:"created_at"`
	CreatedAtRaw string        `json:"created_at" bson:"-"`
}

var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
}

// ToRecord converts a version-1 document into the canonical record.
func (lb *LegacyBook) ToRecord() *BookRecord {
	rec := &BookRecord{
		ID:         lb.ID,
		OwnerID:    lb.UserID,
		Title:      lb.Title,
		BookType:   BookType(lb.Content.BookType),
		PageCount:  lb.Content.Pages,
		TitleCover: lb.Content.TitleCover,
		CreatedAt:  lb.CreatedAt,
		Pages:      make([]GeneratedPage, 0, len(lb.Content.BookContent)),
	}
	if rec.CreatedAt.IsZero() && lb.CreatedAtRaw != "" {
		for _, layout := range legacyTimeLayouts {
			if t, err := time.Parse(layout, lb.CreatedAtRaw); err == nil {
				rec.CreatedAt = t.UTC()
				break
			}
		}
	}

	if cover := strings.TrimSpace(lb.Content.BookCover); cover != "" {
		rec.CoverPrompt = &cover
		rec.Cover = legacyIllustration(lb.Content.CoverB64JSON, lb.Content.CoverFile)
	} else {
		rec.Cover = NotAttemptedIllustration()
	}

	// Version-1 generation always attempted every page, so a page without image data failed.
	for _, p := range lb.Content.BookContent {
		rec.Pages = append(rec.Pages, GeneratedPage{
			PageNumber:         p.Page,
			Content:            p.Content,
			IllustrationPrompt: p.Illustration,
			Illustration:       legacyIllustration(p.B64JSON, p.IllustrationFile),
		})
	}

	rec.Normalize()
	return rec
}

func legacyIllustration(b64, file *string) Illustration {
	hasImage := b64 != nil && *b64 != ""
	hasRef := file != nil && *file != ""
	if !hasImage && !hasRef {
		return AbsentIllustration("no image stored by legacy record")
	}
	ill := Illustration{Status: IllustrationPresent, MIMEType: "image/png"}
	if hasImage {
		img := *b64
		ill.Image = &img
	}
	if hasRef {
		ref := *file
		ill.Ref = &ref
	}
	return ill
}

// DecodeBookDocument decodes a stored JSON book document of any schema version into the
// canonical record.
func DecodeBookDocument(raw []byte) (*BookRecord, error) {
	var probe struct {
		SchemaVersion int             `json:"schema_version"`
		Content       json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode book document: %w", err)
	}

	if probe.SchemaVersion == 0 && len(probe.Content) > 0 {
		var legacy LegacyBook
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return nil, fmt.Errorf("failed to decode legacy book document: %w", err)
		}
		return legacy.ToRecord(), nil
	}

	var rec BookRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode book document: %w", err)
	}
	rec.Normalize()
	return &rec, nil
}
