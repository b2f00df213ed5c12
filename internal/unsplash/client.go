// Package unsplash is a small client for the Unsplash image API: photo
// search and the download-tracking call the API terms require whenever an
// image is downloaded.
package unsplash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
)

const (
	DefaultBaseURL = "https://api.unsplash.com"
	DefaultTimeout = 10 * time.Second
	DefaultPerPage = 30
	MaxPerPage     = 30
)

type Config struct {
	BaseURL   string
	AccessKey string
	// Timeout bounds each call. Calls are never retried.
	Timeout time.Duration
}

// Client talks to the Unsplash API with a static access key.
type Client struct {
	baseURL   string
	accessKey string
	http      *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		accessKey: cfg.AccessKey,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

// photo is the subset of the Unsplash photo object we map from.
type photo struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	Color          string `json:"color"`
	Likes          int    `json:"likes"`
	URLs           struct {
		Raw     string `json:"raw"`
		Full    string `json:"full"`
		Regular string `json:"regular"`
		Small   string `json:"small"`
		Thumb   string `json:"thumb"`
	} `json:"urls"`
	Links struct {
		DownloadLocation string `json:"download_location"`
	} `json:"links"`
	User struct {
		Name  string `json:"name"`
		Links struct {
			HTML string `json:"html"`
		} `json:"links"`
	} `json:"user"`
}

func (p photo) toImage() model.Image {
	desc := p.Description
	if desc == "" {
		desc = p.AltDescription
	}
	return model.Image{
		ID:              p.ID,
		URL:             p.URLs.Regular,
		ThumbnailURL:    p.URLs.Thumb,
		Description:     desc,
		Photographer:    p.User.Name,
		PhotographerURL: p.User.Links.HTML,
		URLs: model.ImageURLs{
			Raw:     p.URLs.Raw,
			Full:    p.URLs.Full,
			Regular: p.URLs.Regular,
			Small:   p.URLs.Small,
		},
		Likes:            p.Likes,
		Color:            p.Color,
		DownloadLocation: p.Links.DownloadLocation,
	}
}

type searchResponse struct {
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
	Results    []photo `json:"results"`
}

// Search runs a photo search. Count in the result always equals len(Images).
func (c *Client) Search(ctx context.Context, q model.SearchQuery) (*model.SearchResult, error) {
	params := url.Values{}
	params.Set("query", q.Term)

	perPage := q.PerPage
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = DefaultPerPage
	}
	params.Set("per_page", strconv.Itoa(perPage))
	if q.Page > 1 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Filters.Orientation != "" {
		params.Set("orientation", q.Filters.Orientation)
	}
	if q.Filters.Color != "" {
		params.Set("color", q.Filters.Color)
	}
	if q.Filters.OrderBy != "" {
		params.Set("order_by", q.Filters.OrderBy)
	}

	var body searchResponse
	if err := c.get(ctx, "/search/photos?"+params.Encode(), &body); err != nil {
		return nil, err
	}

	images := make([]model.Image, 0, len(body.Results))
	for _, p := range body.Results {
		images = append(images, p.toImage())
	}

	return &model.SearchResult{
		Term:       q.Term,
		Total:      body.Total,
		TotalPages: body.TotalPages,
		Count:      len(images),
		Images:     images,
	}, nil
}

// TrackDownload registers a download of imageID with Unsplash and returns
// the URL the file can be fetched from.
func (c *Client) TrackDownload(ctx context.Context, imageID string) (string, error) {
	var body struct {
		URL string `json:"url"`
	}
	err := c.get(ctx, "/photos/"+url.PathEscape(imageID)+"/download", &body)
	if errors.Is(err, apperror.ErrNotFound) {
		return "", apperror.NotFound("image", imageID)
	}
	if err != nil {
		return "", err
	}
	return body.URL, nil
}

// get performs an authenticated GET and decodes a JSON body into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("unsplash: building request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.Upstream("image service unavailable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return apperror.RateLimited("Unsplash API rate limit exceeded. Please try again later.")
	case resp.StatusCode == http.StatusNotFound:
		return apperror.NotFound("resource", path)
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperror.Upstream("image service error",
			fmt.Errorf("unsplash: %s returned %d: %s", path, resp.StatusCode, snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Upstream("image service error", fmt.Errorf("unsplash: decoding %s: %w", path, err))
	}
	return nil
}
