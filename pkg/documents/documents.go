package documents

import "time"

// Status is the lifecycle state of a document.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
	StatusDeleted   Status = "DELETED"
)

// Visibility controls who may see a document.
type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityShared  Visibility = "SHARED"
)

// Author is the owning user, denormalized onto search records.
type Author struct {
	ID       int64
	Name     string
	Username string
}

// Folder is the containing folder, if any.
type Folder struct {
	ID   int64
	Name string
}

// Subject is a curriculum subject a document is filed under.
type Subject struct {
	ID   int64
	Name string
}

// Snapshot is a fully materialized read of one document and its
// associations. Pointer fields are nil when the association is absent.
type Snapshot struct {
	ID          int64
	Title       string
	Description string

	FileName     string
	FileType     string
	FileSize     int64
	ObjectKey    string
	ThumbnailURL string

	Author   *Author
	Folder   *Folder
	Tags     []string
	Subjects []Subject

	Status     Status
	Visibility Visibility
	IsFeatured bool
	Language   string

	ViewCount      int64
	DownloadCount  int64
	FavouriteCount int64
	RatingAverage  *float64
	RatingCount    int64

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Indexable reports whether the snapshot should exist in the search index.
// Only published, non-deleted documents are searchable.
func (s *Snapshot) Indexable() bool {
	return s != nil && s.Status == StatusPublished && s.DeletedAt == nil
}
