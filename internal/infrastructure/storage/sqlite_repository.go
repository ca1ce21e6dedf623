package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/ports"
)

//go:embed schema.sql
var schemaSQL string

const (
	newsTable     = "news"
	messagesTable = "messages"
)

// SQLiteRepository persists seen articles and delivery records in a sqlite file.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ ports.SeenStore     = (*SQLiteRepository)(nil)
	_ ports.DeliveryStore = (*SQLiteRepository)(nil)
)

// Open creates or opens the sqlite database at path and ensures the schema.
func Open(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// single writer keeps sqlite away from SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &SQLiteRepository{db: db}
	if err := repo.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// Init applies pragmas and creates both tables; safe to call on every start.
func (r *SQLiteRepository) Init(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := r.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// HasSeen reports whether the normalized id is present in the news table.
func (r *SQLiteRepository) HasSeen(ctx context.Context, id string) (bool, error) {
	query, args, err := sq.Select("news_id").
		From(newsTable).
		Where(sq.Eq{"news_id": domain.NormalizeID(id)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build seen query: %w", err)
	}

	var found string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query seen: %w", err)
	}
	return true, nil
}

// MarkSeen inserts or replaces the seen row for id.
func (r *SQLiteRepository) MarkSeen(ctx context.Context, id, title string) error {
	query, args, err := sq.Replace(newsTable).
		Columns("news_id", "header").
		Values(domain.NormalizeID(id), title).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark seen: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// PutDelivery inserts or replaces the delivery record; refs are stored as JSON arrays.
func (r *SQLiteRepository) PutDelivery(ctx context.Context, record domain.DeliveryRecord) error {
	messageIDs, err := marshalRefs(record.MessageRefs)
	if err != nil {
		return fmt.Errorf("encode message ids: %w", err)
	}
	fileIDs, err := marshalRefs(record.AttachmentRefs)
	if err != nil {
		return fmt.Errorf("encode file ids: %w", err)
	}

	category := record.Category
	if category == "" {
		category = domain.CategoryDefault
	}

	query, args, err := sq.Replace(messagesTable).
		Columns("news_id", "caption", "message_ids", "file_ids", "category").
		Values(domain.NormalizeID(record.ID), record.Caption, messageIDs, fileIDs, string(category)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build put delivery: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put delivery: %w", err)
	}
	return nil
}

// GetDelivery loads the delivery record for the normalized id.
func (r *SQLiteRepository) GetDelivery(ctx context.Context, id string) (domain.DeliveryRecord, bool, error) {
	normalized := domain.NormalizeID(id)
	query, args, err := sq.Select("caption", "message_ids", "file_ids", "category").
		From(messagesTable).
		Where(sq.Eq{"news_id": normalized}).
		ToSql()
	if err != nil {
		return domain.DeliveryRecord{}, false, fmt.Errorf("build get delivery: %w", err)
	}

	var (
		caption, messageIDs, fileIDs, category sql.NullString
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&caption, &messageIDs, &fileIDs, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DeliveryRecord{}, false, nil
	}
	if err != nil {
		return domain.DeliveryRecord{}, false, fmt.Errorf("query delivery: %w", err)
	}

	record := domain.DeliveryRecord{
		ID:       normalized,
		Caption:  caption.String,
		Category: domain.ParseCategory(category.String),
	}
	if err := unmarshalRefs(messageIDs.String, &record.MessageRefs); err != nil {
		return domain.DeliveryRecord{}, false, fmt.Errorf("decode message ids: %w", err)
	}
	if err := unmarshalRefs(fileIDs.String, &record.AttachmentRefs); err != nil {
		return domain.DeliveryRecord{}, false, fmt.Errorf("decode file ids: %w", err)
	}
	return record, true, nil
}

// GetTitle returns the header stored when the article was first seen.
func (r *SQLiteRepository) GetTitle(ctx context.Context, id string) (string, bool, error) {
	query, args, err := sq.Select("header").
		From(newsTable).
		Where(sq.Eq{"news_id": domain.NormalizeID(id)}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build get title: %w", err)
	}

	var header sql.NullString
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&header)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query title: %w", err)
	}
	if !header.Valid {
		return "", false, nil
	}
	return header.String, true, nil
}

func marshalRefs[T any](refs []T) (string, error) {
	if refs == nil {
		refs = []T{}
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalRefs[T any](raw string, out *[]T) error {
	if raw == "" {
		*out = nil
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}
