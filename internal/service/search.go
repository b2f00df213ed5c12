package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

const (
	TopSearchesLimit  = 5
	SuggestionsLimit  = 5
	MinSuggestPrefix  = 2
	TrailingWindow    = 7 * 24 * time.Hour
	DefaultSearchPage = 1
)

// Period selects the window for top-term reports.
type Period string

const (
	PeriodAll  Period = "all"
	PeriodWeek Period = "week"
)

// ImageSearcher is the external image API.
type ImageSearcher interface {
	Search(ctx context.Context, q model.SearchQuery) (*model.SearchResult, error)
}

type SearchService struct {
	images  ImageSearcher
	history repository.SearchHistoryRepository
	stats   repository.SearchStatsRepository
	counter StatCounter
	logger  *slog.Logger
	now     func() time.Time
}

func NewSearchService(
	images ImageSearcher,
	history repository.SearchHistoryRepository,
	stats repository.SearchStatsRepository,
	counter StatCounter,
	logger *slog.Logger,
) *SearchService {
	return &SearchService{
		images:  images,
		history: history,
		stats:   stats,
		counter: counter,
		logger:  logger,
		now:     time.Now,
	}
}

var (
	validOrientations = map[string]bool{"landscape": true, "portrait": true, "squarish": true}
	validOrderBy      = map[string]bool{"relevant": true, "latest": true}
	validColors       = map[string]bool{
		"black_and_white": true, "black": true, "white": true, "yellow": true, "orange": true,
		"red": true, "purple": true, "magenta": true, "green": true, "teal": true, "blue": true,
	}
)

func validateFilters(f model.SearchFilters) error {
	if f.Orientation != "" && !validOrientations[f.Orientation] {
		return apperror.ValidationFailed("orientation", "orientation must be landscape, portrait or squarish")
	}
	if f.Color != "" && !validColors[f.Color] {
		return apperror.ValidationFailed("color", fmt.Sprintf("unsupported color %q", f.Color))
	}
	if f.OrderBy != "" && !validOrderBy[f.OrderBy] {
		return apperror.ValidationFailed("orderBy", "orderBy must be relevant or latest")
	}
	return nil
}

// Search queries the image API for userID. Only a successful upstream call
// is recorded in the history and counted; a failed search leaves no trace.
func (s *SearchService) Search(ctx context.Context, userID string, q model.SearchQuery) (*model.SearchResult, error) {
	term, err := requireText("term", "search term", q.Term, MaxTermLength)
	if err != nil {
		return nil, err
	}
	if err := validateFilters(q.Filters); err != nil {
		return nil, err
	}
	if q.Page < DefaultSearchPage {
		q.Page = DefaultSearchPage
	}
	q.Term = term

	result, err := s.images.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	entry := &model.SearchHistoryEntry{
		UserID:       userID,
		Term:         term,
		Filters:      q.Filters,
		ResultsCount: result.Total,
	}
	if err := s.history.CreateSearch(ctx, entry); err != nil {
		return nil, fmt.Errorf("service/search: recording search: %w", err)
	}
	bumpStat(ctx, s.counter, s.logger, userID, model.StatSearches, 1)

	s.logger.Debug("search",
		slog.String("userID", userID),
		slog.String("term", term),
		slog.Int("total", result.Total),
	)
	return result, nil
}

// History returns the user's searches newest first.
func (s *SearchService) History(ctx context.Context, userID string, opts repository.ListOptions) ([]model.SearchHistoryEntry, error) {
	entries, err := s.history.ListSearches(ctx, userID, opts.Normalize())
	if err != nil {
		return nil, fmt.Errorf("service/search: listing history: %w", err)
	}
	return entries, nil
}

// TopSearches returns the most frequent terms across all users, either over
// all time or the trailing seven days.
func (s *SearchService) TopSearches(ctx context.Context, period Period) ([]model.TermCount, error) {
	var since time.Time
	switch period {
	case "", PeriodAll:
	case PeriodWeek:
		since = s.now().Add(-TrailingWindow)
	default:
		return nil, apperror.ValidationFailed("period", "period must be all or week")
	}

	terms, err := s.stats.TopTerms(ctx, since, TopSearchesLimit)
	if err != nil {
		return nil, fmt.Errorf("service/search: top terms: %w", err)
	}
	return terms, nil
}

// Suggest returns up to five previously searched terms starting with
// prefix, most frequent first. Prefixes shorter than two characters yield
// an empty list rather than an error.
func (s *SearchService) Suggest(ctx context.Context, prefix string) ([]model.TermCount, error) {
	prefix = strings.TrimSpace(prefix)
	if utf8.RuneCountInString(prefix) < MinSuggestPrefix {
		return []model.TermCount{}, nil
	}
	if utf8.RuneCountInString(prefix) > MaxTermLength {
		return nil, apperror.ValidationFailed("q", fmt.Sprintf("prefix must be %d characters or less", MaxTermLength))
	}

	terms, err := s.stats.SuggestTerms(ctx, prefix, SuggestionsLimit)
	if err != nil {
		return nil, fmt.Errorf("service/search: suggestions: %w", err)
	}
	return terms, nil
}
