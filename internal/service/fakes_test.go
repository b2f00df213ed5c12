package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

// Hand-written in-memory fakes for the repository interfaces. Each one
// copies values in and out so tests cannot alias stored state.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserRepo struct {
	mu         sync.Mutex
	users      map[string]*model.User
	byProvider map[string]string
	nextID     int

	// beforeCreate runs inside Create before the uniqueness check, so a
	// test can sneak in a competing insert.
	beforeCreate func()
	createErr    error
	findErr      error
	incrementErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), byProvider: make(map[string]string)}
}

func providerKey(p model.Provider, id string) string { return string(p) + ":" + id }

func (f *fakeUserRepo) FindByProvider(_ context.Context, p model.Provider, externalID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	id, ok := f.byProvider[providerKey(p, externalID)]
	if !ok {
		return nil, apperror.NotFound("user", externalID)
	}
	u := *f.users[id]
	return &u, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if f.beforeCreate != nil {
		hook := f.beforeCreate
		f.beforeCreate = nil
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, p := range model.Providers {
		if ext := user.ProviderID(p); ext != "" {
			if _, taken := f.byProvider[providerKey(p, ext)]; taken {
				return apperror.Conflict("user already exists for this provider id")
			}
		}
	}

	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.LastActive = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	for _, p := range model.Providers {
		if ext := user.ProviderID(p); ext != "" {
			f.byProvider[providerKey(p, ext)] = user.ID
		}
	}
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	c := *u
	return &c, nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	u.DisplayName = user.DisplayName
	u.Bio = user.Bio
	u.Preferences = user.Preferences
	return nil
}

func (f *fakeUserRepo) IncrementStat(_ context.Context, userID string, stat model.Stat, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return f.incrementErr
	}
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	var col *int64
	switch stat {
	case model.StatSearches:
		col = &u.Stats.TotalSearches
	case model.StatDownloads:
		col = &u.Stats.TotalDownloads
	case model.StatFavorites:
		col = &u.Stats.FavoriteCount
	default:
		return fmt.Errorf("unknown stat %q", stat)
	}
	*col = max(*col+delta, 0)
	return nil
}

// seedUser stores a GitHub user and returns its id.
func (f *fakeUserRepo) seedUser(githubID, name string) string {
	u := &model.User{GitHubID: githubID, DisplayName: name, Preferences: model.Preferences{Theme: model.ThemeLight}}
	if err := f.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u.ID
}

func (f *fakeUserRepo) stats(id string) model.UserStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].Stats
}

type fakeHistoryRepo struct {
	mu        sync.Mutex
	entries   []model.SearchHistoryEntry
	createErr error
}

func (f *fakeHistoryRepo) CreateSearch(_ context.Context, e *model.SearchHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	e.ID = fmt.Sprintf("search-%d", len(f.entries)+1)
	e.Timestamp = time.Now()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeHistoryRepo) ListSearches(_ context.Context, userID string, opts repository.ListOptions) ([]model.SearchHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.SearchHistoryEntry{}
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].UserID == userID {
			out = append(out, f.entries[i])
		}
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// fakeStatsRepo aggregates over a fakeHistoryRepo with the same
// count-desc, first-seen tie-break the database uses.
type fakeStatsRepo struct {
	history   *fakeHistoryRepo
	lastSince time.Time
}

func (f *fakeStatsRepo) count(keep func(model.SearchHistoryEntry) bool, limit int) []model.TermCount {
	f.history.mu.Lock()
	defer f.history.mu.Unlock()
	counts := map[string]int64{}
	first := map[string]int{}
	for i, e := range f.history.entries {
		if !keep(e) {
			continue
		}
		if _, ok := first[e.Term]; !ok {
			first[e.Term] = i
		}
		counts[e.Term]++
	}
	out := make([]model.TermCount, 0, len(counts))
	for term, n := range counts {
		out = append(out, model.TermCount{Term: term, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return first[out[i].Term] < first[out[j].Term]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakeStatsRepo) TopTerms(_ context.Context, since time.Time, limit int) ([]model.TermCount, error) {
	f.lastSince = since
	return f.count(func(e model.SearchHistoryEntry) bool { return !e.Timestamp.Before(since) }, limit), nil
}

func (f *fakeStatsRepo) TopTermsForUser(_ context.Context, userID string, limit int) ([]model.TermCount, error) {
	return f.count(func(e model.SearchHistoryEntry) bool { return e.UserID == userID }, limit), nil
}

func (f *fakeStatsRepo) SuggestTerms(_ context.Context, prefix string, limit int) ([]model.TermCount, error) {
	return f.count(func(e model.SearchHistoryEntry) bool {
		return len(e.Term) >= len(prefix) && equalFoldASCII(e.Term[:len(prefix)], prefix)
	}, limit), nil
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		x, y := a[i], b[i]
		if 'A' <= x && x <= 'Z' {
			x += 'a' - 'A'
		}
		if 'A' <= y && y <= 'Z' {
			y += 'a' - 'A'
		}
		if x != y {
			return false
		}
	}
	return true
}

type fakeFavoriteRepo struct {
	mu   sync.Mutex
	favs []model.Favorite
	next int
}

func (f *fakeFavoriteRepo) CreateFavorite(_ context.Context, fav *model.Favorite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.favs {
		if existing.UserID == fav.UserID && existing.ImageID == fav.ImageID {
			return apperror.Conflict("image already in favorites")
		}
	}
	f.next++
	fav.ID = fmt.Sprintf("fav-%d", f.next)
	fav.CreatedAt = time.Now()
	f.favs = append(f.favs, *fav)
	return nil
}

func (f *fakeFavoriteRepo) ListFavorites(_ context.Context, userID string, _ repository.ListOptions) ([]model.Favorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Favorite{}
	for i := len(f.favs) - 1; i >= 0; i-- {
		if f.favs[i].UserID == userID {
			out = append(out, f.favs[i])
		}
	}
	return out, nil
}

func (f *fakeFavoriteRepo) GetFavoriteByImage(_ context.Context, userID, imageID string) (*model.Favorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fav := range f.favs {
		if fav.UserID == userID && fav.ImageID == imageID {
			c := fav
			return &c, nil
		}
	}
	return nil, apperror.NotFound("favorite", imageID)
}

func (f *fakeFavoriteRepo) DeleteFavorite(_ context.Context, userID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, fav := range f.favs {
		if fav.UserID == userID && (fav.ID == key || fav.ImageID == key) {
			f.favs = append(f.favs[:i], f.favs[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("favorite", key)
}

type fakeCollectionRepo struct {
	mu   sync.Mutex
	rows map[string]model.Collection
	next int

	// staleWrites makes the next n updates fail as if another writer
	// got there first.
	staleWrites int
	updates     int
}

func newFakeCollectionRepo() *fakeCollectionRepo {
	return &fakeCollectionRepo{rows: make(map[string]model.Collection)}
}

func cloneCollection(c model.Collection) model.Collection {
	c.Tags = append([]string{}, c.Tags...)
	c.Images = append([]model.CollectionImage{}, c.Images...)
	return c
}

func (f *fakeCollectionRepo) CreateCollection(_ context.Context, c *model.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	c.ID = fmt.Sprintf("col-%d", f.next)
	c.Version = 1
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.rows[c.ID] = cloneCollection(*c)
	return nil
}

func (f *fakeCollectionRepo) GetCollection(_ context.Context, userID, id string) (*model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.UserID != userID {
		return nil, apperror.NotFound("collection", id)
	}
	out := cloneCollection(c)
	return &out, nil
}

func (f *fakeCollectionRepo) ListCollections(_ context.Context, userID string) ([]model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Collection{}
	for _, c := range f.rows {
		if c.UserID == userID {
			out = append(out, cloneCollection(c))
		}
	}
	return out, nil
}

func (f *fakeCollectionRepo) CountCollections(ctx context.Context, userID string) (int64, error) {
	cs, _ := f.ListCollections(ctx, userID)
	return int64(len(cs)), nil
}

func (f *fakeCollectionRepo) UpdateCollection(_ context.Context, c *model.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	stored, ok := f.rows[c.ID]
	if !ok || stored.UserID != c.UserID {
		return apperror.NotFound("collection", c.ID)
	}
	if f.staleWrites > 0 {
		f.staleWrites--
		stored.Version++
		f.rows[c.ID] = stored
	}
	if stored.Version != c.Version {
		return apperror.Conflict("collection was modified concurrently")
	}
	c.Version++
	c.UpdatedAt = time.Now()
	f.rows[c.ID] = cloneCollection(*c)
	return nil
}

func (f *fakeCollectionRepo) DeleteCollection(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.UserID != userID {
		return apperror.NotFound("collection", id)
	}
	delete(f.rows, id)
	return nil
}

type fakeDownloadRepo struct {
	mu   sync.Mutex
	rows []model.DownloadRecord
}

func (f *fakeDownloadRepo) CreateDownload(_ context.Context, d *model.DownloadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.ID = fmt.Sprintf("dl-%d", len(f.rows)+1)
	d.CreatedAt = time.Now()
	f.rows = append(f.rows, *d)
	return nil
}

func (f *fakeDownloadRepo) ListDownloads(_ context.Context, userID string, opts repository.ListOptions) ([]model.DownloadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.DownloadRecord{}
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].UserID == userID {
			out = append(out, f.rows[i])
		}
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeDownloadRepo) DeleteDownload(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.rows {
		if d.ID == id && d.UserID == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("download", id)
}

type fakeImages struct {
	result *model.SearchResult
	err    error
	calls  []model.SearchQuery
}

func (f *fakeImages) Search(_ context.Context, q model.SearchQuery) (*model.SearchResult, error) {
	f.calls = append(f.calls, q)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.Term = q.Term
	return &res, nil
}

type fakeTracker struct {
	url   string
	err   error
	calls []string
}

func (f *fakeTracker) TrackDownload(_ context.Context, imageID string) (string, error) {
	f.calls = append(f.calls, imageID)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}
