package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// BookType defines the set of allowed kinds of children's book.
type BookType string

const (
	BookTypeStory        BookType = "story"
	BookTypePoem         BookType = "poem"
	BookTypeNurseryRhyme BookType = "nursery_rhyme"
	BookTypePropaganda   BookType = "propaganda"
	BookTypeEducational  BookType = "educational"
)

// BookTypes lists every valid BookType in the order the text model is told about them.
var BookTypes = []BookType{
	BookTypeStory,
	BookTypePoem,
	BookTypeNurseryRhyme,
	BookTypePropaganda,
	BookTypeEducational,
}

// ParseBookType checks that s names one of the known book types.
func ParseBookType(s string) (BookType, bool) {
	candidate := BookType(strings.ToLower(strings.TrimSpace(s)))
	for _, bt := range BookTypes {
		if bt == candidate {
			return bt, true
		}
	}
	return "", false
}

// BookTypeStrings returns the book types as plain strings, e.g. for a schema enum.
func BookTypeStrings() []string {
	out := make([]string, len(BookTypes))
	for i, bt := range BookTypes {
		out[i] = string(bt)
	}
	return out
}

const (
	// CurrentSchemaVersion is written with every persisted BookRecord.
	CurrentSchemaVersion = 2
	// DefaultTitle is used when the text model supplies no title cover.
	DefaultTitle = "Untitled"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

var (
	ErrBookNotFound  = errors.New("book not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")

	ErrUsernameTaken = fmt.Errorf("username already registered: %w", ErrDuplicateUser)
	ErrEmailTaken    = fmt.Errorf("email already registered: %w", ErrDuplicateUser)
)

// ClampPage applies the listing defaults: limit falls back to DefaultListLimit, is capped at
// MaxListLimit, and a negative offset becomes zero.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Turn is a prior conversation turn passed back to the text model.
type Turn struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

// BookRequest is the input of a generation run. It is never persisted.
type BookRequest struct {
	PageCount int      `json:"pages"`
	BookType  BookType `json:"book_type"`
	Topic     string   `json:"topic"`
	History   []Turn   `json:"history,omitempty"`
}

// Validate checks the request against the allowed ranges. maxPages <= 0 disables the upper bound.
func (r BookRequest) Validate(maxPages int) error {
	if r.PageCount <= 0 {
		return fmt.Errorf("pages must be a positive integer")
	}
	if maxPages > 0 && r.PageCount > maxPages {
		return fmt.Errorf("pages must not exceed %d", maxPages)
	}
	if _, ok := ParseBookType(string(r.BookType)); !ok {
		return fmt.Errorf("book_type must be one of: %s", strings.Join(BookTypeStrings(), ", "))
	}
	if strings.TrimSpace(r.Topic) == "" {
		return fmt.Errorf("topic is required")
	}
	return nil
}

// PageText is one page as emitted by the text model.
type PageText struct {
	Page         int    `json:"page"`
	Content      string `json:"content"`
	Illustration string `json:"illustration"`
}

// BookText is the structured output of the text model.
type BookText struct {
	Pages       int        `json:"pages"`
	BookType    BookType   `json:"book_type"`
	BookContent []PageText `json:"book_content"`
	BookCover   string     `json:"book_cover,omitempty"`
	TitleCover  string     `json:"title_cover,omitempty"`
}

// Title returns the title cover text, or DefaultTitle when the model gave none.
func (bt *BookText) Title() string {
	if t := strings.TrimSpace(bt.TitleCover); t != "" {
		return t
	}
	return DefaultTitle
}

type GeneratedPage struct {
	PageNumber         int          `json:"page_number" bson:"page_number"`
	Content            string       `json:"content" bson:"content"`
	IllustrationPrompt string       `json:"illustration_prompt" bson:"illustration_prompt"`
	Illustration       Illustration `json:"illustration" bson:"illustration"`
}

// BookRecord is a persisted, owner-scoped book.
type BookRecord struct {
	ID            string          `json:"id" bson:"_id"`
	OwnerID       string          `json:"owner_id" bson:"owner_id"`
	Title         string          `json:"title" bson:"title"`
	BookType      BookType        `json:"book_type" bson:"book_type"`
	Topic         string          `json:"topic,omitempty" bson:"topic,omitempty"`
	PageCount     int             `json:"page_count" bson:"page_count"`
	TitleCover    string          `json:"title_cover,omitempty" bson:"title_cover,omitempty"`
	CoverPrompt   *string         `json:"cover_prompt" bson:"cover_prompt"`
	Cover         Illustration    `json:"cover" bson:"cover"`
	Pages         []GeneratedPage `json:"pages" bson:"pages"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
	SchemaVersion int             `json:"schema_version" bson:"schema_version"`
}

// Normalize fills defaults that older or client-supplied documents may lack.
func (b *BookRecord) Normalize() {
	if b.Title == "" {
		b.Title = DefaultTitle
	}
	if b.Pages == nil {
		b.Pages = []GeneratedPage{}
	}
	b.Cover.normalize()
	for i := range b.Pages {
		b.Pages[i].Illustration.normalize()
	}
	b.SchemaVersion = CurrentSchemaVersion
}
