package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coreybb/rhymera/models"
	"github.com/google/uuid"
)

// BookRepository stores books as JSON documents in the books table. The id, owner and
// timestamp columns are duplicated out of the document for scoping and ordering.
type BookRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewBookRepository(db *sql.DB, dialect Dialect) *BookRepository {
	return &BookRepository{db: db, dialect: dialect}
}

// Create assigns an id and creation time when missing, stamps the current schema version and
// inserts the record.
func (r *BookRepository) Create(ctx context.Context, book *models.BookRecord) error {
	if book.OwnerID == "" {
		return fmt.Errorf("book owner cannot be empty")
	}
	if book.ID == "" {
		book.ID = uuid.NewString()
	} else if _, err := uuid.Parse(book.ID); err != nil {
		return fmt.Errorf("invalid book ID format: %w", err)
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now()
	}
	// Microsecond precision is what the created_at column holds.
	book.CreatedAt = book.CreatedAt.UTC().Truncate(time.Microsecond)
	book.Normalize()

	document, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("failed to encode book document: %w", err)
	}

	query := rebind(r.dialect, `
		INSERT INTO books (id, owner_id, title, book_type, document, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		book.ID, book.OwnerID, book.Title, string(book.BookType), string(document), toUnixMicro(book.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

// List returns the owner's books, newest first. Books created in the same microsecond keep their
// insertion order.
func (r *BookRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]models.BookRecord, error) {
	limit, offset = models.ClampPage(limit, offset)

	query := rebind(r.dialect, `
		SELECT id, owner_id, document, created_at
		FROM books
		WHERE owner_id = ?
		ORDER BY created_at DESC, seq ASC
		LIMIT ? OFFSET ?
	`)
	rows, err := r.db.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query books for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	books := []models.BookRecord{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book row for owner %s: %w", ownerID, err)
		}
		books = append(books, *book)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating book rows for owner %s: %w", ownerID, err)
	}
	return books, nil
}

// Get returns models.ErrBookNotFound for unknown or malformed ids and for books owned by someone else.
func (r *BookRepository) Get(ctx context.Context, bookID, ownerID string) (*models.BookRecord, error) {
	if _, err := uuid.Parse(bookID); err != nil {
		return nil, fmt.Errorf("invalid book ID %q: %w", bookID, models.ErrBookNotFound)
	}

	query := rebind(r.dialect, `
		SELECT id, owner_id, document, created_at
		FROM books
		WHERE id = ? AND owner_id = ?
	`)
	book, err := scanBook(r.db.QueryRowContext(ctx, query, bookID, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("book %s: %w", bookID, models.ErrBookNotFound)
		}
		return nil, fmt.Errorf("failed to get book by ID: %w", err)
	}
	return book, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*models.BookRecord, error) {
	var (
		id, ownerID string
		document    []byte
		createdAt   int64
	)
	if err := row.Scan(&id, &ownerID, &document, &createdAt); err != nil {
		return nil, err
	}

	book, err := models.DecodeBookDocument(document)
	if err != nil {
		return nil, err
	}
	// Columns win over the document for the fields used to scope and order.
	book.ID = id
	book.OwnerID = ownerID
	if book.CreatedAt.IsZero() {
		book.CreatedAt = fromUnixMicro(createdAt)
	}
	return book, nil
}
