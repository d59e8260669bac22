package search

import (
	"strconv"
	"time"
)

// maxContentLength caps indexed content so one huge file can not dominate
// the index. Truncation is stable: re-mapping an already truncated record
// yields the same content.
const maxContentLength = 10000

// SearchRecord is the denormalized index projection of one document.
// The titleExact and titlePrefix fields are index-internal variants of
// title: titleExact backs exact-title sorting, titlePrefix backs
// autocomplete prefix matching.
type SearchRecord struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	TitleExact  string `json:"titleExact"`
	TitlePrefix string `json:"titlePrefix"`
	Description string `json:"description"`
	Content     string `json:"content"`

	FileName     string `json:"fileName"`
	FileType     string `json:"fileType"`
	FileSize     int64  `json:"fileSize"`
	ObjectKey    string `json:"objectKey"`
	ThumbnailURL string `json:"thumbnailUrl"`

	AuthorID       int64  `json:"authorId"`
	AuthorName     string `json:"authorName"`
	AuthorUsername string `json:"authorUsername"`

	Tags         []string `json:"tags"`
	SubjectIDs   []int64  `json:"subjectIds"`
	SubjectNames []string `json:"subjectNames"`

	FolderID   int64  `json:"folderId"`
	FolderName string `json:"folderName"`

	Status     string `json:"status"`
	Visibility string `json:"visibility"`
	IsFeatured bool   `json:"isFeatured"`
	Language   string `json:"language"`

	ViewCount      int64 `json:"viewCount"`
	DownloadCount  int64 `json:"downloadCount"`
	FavouriteCount int64 `json:"favouriteCount"`

	// RatingAverage stays nil for unrated documents; zero would sort them
	// as one-star.
	RatingAverage *float64 `json:"ratingAverage,omitempty"`
	RatingCount   int64    `json:"ratingCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	IndexedAt time.Time `json:"indexedAt"`
}

// DocID is the record's identity in the index.
func (r *SearchRecord) DocID() string {
	return strconv.FormatInt(r.ID, 10)
}
