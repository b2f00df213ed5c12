package model

import "time"

// SearchHistoryEntry is an append-only record of one search.
type SearchHistoryEntry struct {
	ID           string        `json:"id"`
	UserID       string        `json:"userId"`
	Term         string        `json:"term"`
	Filters      SearchFilters `json:"filters"`
	ResultsCount int           `json:"resultsCount"`
	Timestamp    time.Time     `json:"timestamp"`
}

// ImageRef is the denormalized image metadata stored alongside favorites,
// collection entries and downloads.
type ImageRef struct {
	ImageID         string `json:"imageId"`
	ImageURL        string `json:"imageUrl"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographerUrl"`
	Description     string `json:"description"`
}

// Favorite is unique per (UserID, ImageID).
type Favorite struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	ImageRef
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
}

// CollectionImage is one entry of a collection's ordered image list.
type CollectionImage struct {
	ImageRef
	AddedAt time.Time `json:"addedAt"`
}

// Collection is a user-owned, ordered set of images. Images are unique by
// ImageID within one collection; the same image may appear in several.
type Collection struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	IsPublic    bool              `json:"isPublic"`
	Tags        []string          `json:"tags"`
	Images      []CollectionImage `json:"images"`
	Version     int64             `json:"-"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// IndexOf returns the position of imageID in c.Images, or -1.
func (c *Collection) IndexOf(imageID string) int {
	for i, img := range c.Images {
		if img.ImageID == imageID {
			return i
		}
	}
	return -1
}

// Quality is the requested download size.
type Quality string

const (
	QualityRaw     Quality = "raw"
	QualityFull    Quality = "full"
	QualityRegular Quality = "regular"
	QualitySmall   Quality = "small"
)

func (q Quality) Valid() bool {
	switch q {
	case QualityRaw, QualityFull, QualityRegular, QualitySmall:
		return true
	}
	return false
}

// DownloadRecord is an append-only record of a tracked download.
type DownloadRecord struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	ImageRef
	DownloadURL string    `json:"downloadUrl"`
	Quality     Quality   `json:"quality"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TermCount is one row of a search-term frequency report.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// DashboardStats extends the stored counters with values counted on read.
type DashboardStats struct {
	UserStats
	CollectionsCount int64 `json:"collectionsCount"`
}

// Dashboard is the aggregate shown on the user's dashboard page.
type Dashboard struct {
	Stats           DashboardStats       `json:"stats"`
	RecentSearches  []SearchHistoryEntry `json:"recentSearches"`
	TopSearches     []TermCount          `json:"topSearches"`
	RecentDownloads []DownloadRecord     `json:"recentDownloads"`
}
