package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreybb/rhymera/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// bookDocument is the stored form of a current record. InsertOID orders books created in the
// same millisecond by insertion.
type bookDocument struct {
	models.BookRecord `bson:",inline"`
	InsertOID         primitive.ObjectID `bson:"insert_oid"`
}

// legacyBookDocument is a version-1 document. Its _id is an ObjectID, decoded as hex.
type legacyBookDocument struct {
	ID                string `bson:"_id"`
	models.LegacyBook `bson:",inline"`
}

type BookRepository struct {
	coll *mongo.Collection
}

func NewBookRepository(db *mongo.Database) *BookRepository {
	return &BookRepository{coll: db.Collection(booksCollection)}
}

func (r *BookRepository) Create(ctx context.Context, book *models.BookRecord) error {
	if book.OwnerID == "" {
		return fmt.Errorf("book owner cannot be empty")
	}
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now()
	}
	// BSON dates hold milliseconds.
	book.CreatedAt = book.CreatedAt.UTC().Truncate(time.Millisecond)
	book.Normalize()

	doc := bookDocument{BookRecord: *book, InsertOID: primitive.NewObjectID()}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

func (r *BookRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]models.BookRecord, error) {
	limit, offset = models.ClampPage(limit, offset)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "insert_oid", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.coll.Find(ctx, ownerFilter(ownerID), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query books for owner %s: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	books := []models.BookRecord{}
	for cursor.Next(ctx) {
		book, err := decodeBook(cursor.Current)
		if err != nil {
			return nil, fmt.Errorf("failed to decode book for owner %s: %w", ownerID, err)
		}
		books = append(books, *book)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating books for owner %s: %w", ownerID, err)
	}
	return books, nil
}

func (r *BookRepository) Get(ctx context.Context, bookID, ownerID string) (*models.BookRecord, error) {
	idValue, ok := parseBookID(bookID)
	if !ok {
		return nil, fmt.Errorf("invalid book ID %q: %w", bookID, models.ErrBookNotFound)
	}

	filter := bson.D{{Key: "_id", Value: idValue}}
	filter = append(filter, ownerFilter(ownerID)...)

	raw, err := r.coll.FindOne(ctx, filter).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("book %s: %w", bookID, models.ErrBookNotFound)
		}
		return nil, fmt.Errorf("failed to get book by ID: %w", err)
	}
	return decodeBook(raw)
}

// ownerFilter matches both the current owner_id field and the version-1 user_id field.
func ownerFilter(ownerID string) bson.D {
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "owner_id", Value: ownerID}},
		bson.D{{Key: "user_id", Value: ownerID}},
	}}}
}

// parseBookID accepts current uuid ids and the hex ObjectIDs of version-1 documents.
func parseBookID(id string) (any, bool) {
	if _, err := uuid.Parse(id); err == nil {
		return id, true
	}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid, true
	}
	return nil, false
}

func decodeBook(raw bson.Raw) (*models.BookRecord, error) {
	if isLegacyDocument(raw) {
		var legacy legacyBookDocument
		if err := bson.Unmarshal(raw, &legacy); err != nil {
			return nil, fmt.Errorf("failed to decode legacy book document: %w", err)
		}
		legacy.LegacyBook.ID = legacy.ID
		return legacy.ToRecord(), nil
	}

	var doc bookDocument
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode book document: %w", err)
	}
	book := doc.BookRecord
	book.CreatedAt = book.CreatedAt.UTC()
	book.Normalize()
	return &book, nil
}

func isLegacyDocument(raw bson.Raw) bool {
	if _, err := raw.LookupErr("schema_version"); err == nil {
		return false
	}
	_, err := raw.LookupErr("content")
	return err == nil
}
