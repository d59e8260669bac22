package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quillstack/docsearch/pkg/documents"
)

// DocumentStore reads document snapshots from the primary store.
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore creates a document reader on top of an open connection.
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const snapshotColumns = `
	d.id, d.title, d.description,
	d.file_name, d.file_type, d.file_size, d.object_key, d.thumbnail_url,
	u.id, u.full_name, u.username,
	f.id, f.name,
	d.status, d.visibility, d.is_featured, d.language,
	d.view_count, d.download_count, d.favourite_count, d.rating_average, d.rating_count,
	d.created_at, d.updated_at, d.deleted_at`

const snapshotFrom = `
	FROM documents d
	JOIN users u ON u.id = d.author_id
	LEFT JOIN folders f ON f.id = d.folder_id`

// Snapshot loads one document regardless of status. Returns nil when the
// document does not exist.
func (s *DocumentStore) Snapshot(ctx context.Context, id int64) (*documents.Snapshot, error) {
	query := "SELECT" + snapshotColumns + snapshotFrom + " WHERE d.id = $1"

	snap, err := s.scanSnapshot(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %d: %w", id, err)
	}

	if err := s.loadAssociations(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// PublishedPage returns one page of published, non-deleted documents
// ordered by id so repeated pagination is stable.
func (s *DocumentStore) PublishedPage(ctx context.Context, offset, limit int) ([]*documents.Snapshot, error) {
	query := "SELECT" + snapshotColumns + snapshotFrom + `
	WHERE d.status = 'PUBLISHED' AND d.deleted_at IS NULL
	ORDER BY d.id
	LIMIT $1 OFFSET $2`

	return s.querySnapshots(ctx, query, limit, offset)
}

// PublishedByAuthor returns all published, non-deleted documents owned by
// the given user.
func (s *DocumentStore) PublishedByAuthor(ctx context.Context, authorID int64) ([]*documents.Snapshot, error) {
	query := "SELECT" + snapshotColumns + snapshotFrom + `
	WHERE d.author_id = $1 AND d.status = 'PUBLISHED' AND d.deleted_at IS NULL
	ORDER BY d.id`

	return s.querySnapshots(ctx, query, authorID)
}

// CountPublished returns the number of documents eligible for indexing.
func (s *DocumentStore) CountPublished(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE status = 'PUBLISHED' AND deleted_at IS NULL",
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count published documents: %w", err)
	}
	return count, nil
}

func (s *DocumentStore) querySnapshots(ctx context.Context, query string, args ...interface{}) ([]*documents.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var snaps []*documents.Snapshot
	for rows.Next() {
		snap, err := s.scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate document rows: %w", err)
	}

	for _, snap := range snaps {
		if err := s.loadAssociations(ctx, snap); err != nil {
			return nil, err
		}
	}
	return snaps, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *DocumentStore) scanSnapshot(row rowScanner) (*documents.Snapshot, error) {
	var (
		snap         documents.Snapshot
		author       documents.Author
		description  sql.NullString
		thumbnailURL sql.NullString
		folderID     sql.NullInt64
		folderName   sql.NullString
		rating       sql.NullFloat64
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(
		&snap.ID, &snap.Title, &description,
		&snap.FileName, &snap.FileType, &snap.FileSize, &snap.ObjectKey, &thumbnailURL,
		&author.ID, &author.Name, &author.Username,
		&folderID, &folderName,
		&snap.Status, &snap.Visibility, &snap.IsFeatured, &snap.Language,
		&snap.ViewCount, &snap.DownloadCount, &snap.FavouriteCount, &rating, &snap.RatingCount,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	snap.Description = description.String
	snap.ThumbnailURL = thumbnailURL.String
	snap.Author = &author
	if folderID.Valid {
		snap.Folder = &documents.Folder{ID: folderID.Int64, Name: folderName.String}
	}
	if rating.Valid {
		avg := rating.Float64
		snap.RatingAverage = &avg
	}

	// Timestamp columns carry no zone. The convention across the service is
	// that stored instants are UTC, enforced here and nowhere else.
	snap.CreatedAt = asUTC(createdAt)
	snap.UpdatedAt = asUTC(updatedAt)
	if deletedAt.Valid {
		t := asUTC(deletedAt.Time)
		snap.DeletedAt = &t
	}

	return &snap, nil
}

func (s *DocumentStore) loadAssociations(ctx context.Context, snap *documents.Snapshot) error {
	tags, err := s.loadTags(ctx, snap.ID)
	if err != nil {
		return err
	}
	snap.Tags = tags

	subjects, err := s.loadSubjects(ctx, snap.ID)
	if err != nil {
		return err
	}
	snap.Subjects = subjects
	return nil
}

func (s *DocumentStore) loadTags(ctx context.Context, documentID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT tag FROM document_tags WHERE document_id = $1 ORDER BY tag", documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags for document %d: %w", documentID, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (s *DocumentStore) loadSubjects(ctx context.Context, documentID int64) ([]documents.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name
		FROM document_subjects ds
		JOIN subjects s ON s.id = ds.subject_id
		WHERE ds.document_id = $1
		ORDER BY s.id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subjects for document %d: %w", documentID, err)
	}
	defer rows.Close()

	var subjects []documents.Subject
	for rows.Next() {
		var subject documents.Subject
		if err := rows.Scan(&subject.ID, &subject.Name); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}

func asUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
