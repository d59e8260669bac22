package search

import (
	"context"
	"strings"
	"time"

	"github.com/quillstack/docsearch/pkg/documents"
)

// TextExtractor pulls plain text out of the stored file behind a document.
type TextExtractor interface {
	ExtractText(ctx context.Context, objectKey, fileName string) (string, bool)
}

// Mapper builds SearchRecords from document snapshots. The only I/O it
// performs is the single extractor call for file content.
type Mapper struct {
	extractor TextExtractor
	now       func() time.Time
}

// NewMapper creates a mapper. A nil extractor disables content extraction;
// records are still built from the snapshot's own fields.
func NewMapper(extractor TextExtractor) *Mapper {
	return &Mapper{
		extractor: extractor,
		now:       time.Now,
	}
}

// ToSearchRecord flattens a snapshot into its index projection. Missing
// associations map to zero values; a nil rating stays nil.
func (m *Mapper) ToSearchRecord(ctx context.Context, snap *documents.Snapshot) *SearchRecord {
	rec := &SearchRecord{
		ID:           snap.ID,
		Title:        snap.Title,
		TitleExact:   snap.Title,
		TitlePrefix:  strings.ToLower(snap.Title),
		Description:  snap.Description,
		FileName:     snap.FileName,
		FileType:     snap.FileType,
		FileSize:     snap.FileSize,
		ObjectKey:    snap.ObjectKey,
		ThumbnailURL: snap.ThumbnailURL,

		Status:     string(snap.Status),
		Visibility: string(snap.Visibility),
		IsFeatured: snap.IsFeatured,
		Language:   snap.Language,

		ViewCount:      snap.ViewCount,
		DownloadCount:  snap.DownloadCount,
		FavouriteCount: snap.FavouriteCount,
		RatingCount:    snap.RatingCount,

		CreatedAt: snap.CreatedAt.UTC(),
		UpdatedAt: snap.UpdatedAt.UTC(),
		IndexedAt: m.now().UTC(),
	}

	if snap.Author != nil {
		rec.AuthorID = snap.Author.ID
		rec.AuthorName = snap.Author.Name
		rec.AuthorUsername = snap.Author.Username
	}
	if snap.Folder != nil {
		rec.FolderID = snap.Folder.ID
		rec.FolderName = snap.Folder.Name
	}
	if snap.RatingAverage != nil {
		avg := *snap.RatingAverage
		rec.RatingAverage = &avg
	}

	if len(snap.Tags) > 0 {
		rec.Tags = append([]string(nil), snap.Tags...)
	}
	for _, subject := range snap.Subjects {
		rec.SubjectIDs = append(rec.SubjectIDs, subject.ID)
		rec.SubjectNames = append(rec.SubjectNames, subject.Name)
	}

	if m.extractor != nil && snap.ObjectKey != "" {
		if text, ok := m.extractor.ExtractText(ctx, snap.ObjectKey, snap.FileName); ok {
			rec.Content = truncateContent(text)
		}
	}

	return rec
}

func truncateContent(text string) string {
	runes := []rune(text)
	if len(runes) <= maxContentLength {
		return text
	}
	return string(runes[:maxContentLength])
}
