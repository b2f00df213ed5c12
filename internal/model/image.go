package model

// ImageURLs are the size variants the image API offers for one photo.
type ImageURLs struct {
	Raw     string `json:"raw,omitempty"`
	Full    string `json:"full,omitempty"`
	Regular string `json:"regular,omitempty"`
	Small   string `json:"small,omitempty"`
}

// Image is the internal shape of a search result, independent of the
// upstream API's JSON layout.
type Image struct {
	ID               string    `json:"id"`
	URL              string    `json:"url"`
	ThumbnailURL     string    `json:"thumbnailUrl"`
	Description      string    `json:"description"`
	Photographer     string    `json:"photographer"`
	PhotographerURL  string    `json:"photographerUrl"`
	URLs             ImageURLs `json:"urls"`
	Likes            int       `json:"likes"`
	Color            string    `json:"color,omitempty"`
	DownloadLocation string    `json:"downloadLocation,omitempty"`
}

// SearchFilters narrow an image search. Empty fields are not sent upstream.
type SearchFilters struct {
	Orientation string `json:"orientation,omitempty"`
	Color       string `json:"color,omitempty"`
	OrderBy     string `json:"orderBy,omitempty"`
}

// SearchQuery is a single request to the image API.
type SearchQuery struct {
	Term    string
	Filters SearchFilters
	Page    int
	PerPage int
}

// SearchResult is one page of images plus the upstream totals.
type SearchResult struct {
	Term       string  `json:"term"`
	Total      int     `json:"total"`
	TotalPages int     `json:"totalPages"`
	Count      int     `json:"count"`
	Images     []Image `json:"images"`
}
