// Package ebook renders stored books as PDF and EPUB documents.
package ebook

import (
	"fmt"
	"time"

	"github.com/coreybb/rhymera/models"
)

// Layout is the document structure derived from a record. It depends on nothing but the record,
// so the same record always lays out the same way.
type Layout struct {
	Title     string
	Subtitle  string
	CreatedAt time.Time
	Cover     models.Illustration
	Sections  []Section
}

// Section is one book page.
type Section struct {
	Heading string
	Text    string
	Image   models.Illustration
	// Label is unique within the layout even when page numbers repeat.
	Label string
}

func BuildLayout(book *models.BookRecord) Layout {
	title := book.Title
	if title == "" {
		title = models.DefaultTitle
	}

	layout := Layout{
		Title:     title,
		CreatedAt: book.CreatedAt,
		Cover:     book.Cover,
		Sections:  make([]Section, 0, len(book.Pages)),
	}
	if book.BookType != "" {
		layout.Subtitle = fmt.Sprintf("A %s", humanBookType(book.BookType))
	}
	if layout.CreatedAt.IsZero() {
		layout.CreatedAt = time.Unix(0, 0).UTC()
	}

	for i, page := range book.Pages {
		layout.Sections = append(layout.Sections, Section{
			Heading: fmt.Sprintf("Page %d", page.PageNumber),
			Text:    page.Content,
			Image:   page.Illustration,
			Label:   fmt.Sprintf("page-%03d", i+1),
		})
	}
	return layout
}

func humanBookType(bt models.BookType) string {
	switch bt {
	case models.BookTypeNurseryRhyme:
		return "nursery rhyme"
	case models.BookTypeEducational:
		return "educational book"
	case models.BookTypePropaganda:
		return "propaganda book"
	default:
		return string(bt)
	}
}
