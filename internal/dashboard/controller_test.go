package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smartmark/smartmark/internal/apiclient"
	"github.com/smartmark/smartmark/internal/domain"
	"github.com/smartmark/smartmark/internal/localstore"
	"github.com/smartmark/smartmark/internal/logger"
)

type fakeSub struct {
	events    chan domain.ChangeEvent
	closeOnce sync.Once
}

func newFakeSub() *fakeSub {
	return &fakeSub{events: make(chan domain.ChangeEvent)}
}

func (s *fakeSub) Events() <-chan domain.ChangeEvent { return s.events }

func (s *fakeSub) Close() error {
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

type fakeAPI struct {
	mu         sync.Mutex
	bookmarks  []domain.Bookmark
	nextID     int
	now        time.Time
	listErr    error
	failTitles map[string]bool
	sub        *fakeSub
	subErr     error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		sub: newFakeSub(),
	}
}

func (f *fakeAPI) ListBookmarks(context.Context) ([]domain.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return domain.SortByCreatedAtDesc(f.bookmarks), nil
}

func (f *fakeAPI) CreateBookmark(_ context.Context, title, url string) (domain.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTitles[title] {
		return domain.Bookmark{}, &apiclient.APIError{
			Status:  http.StatusInternalServerError,
			Message: "Failed to add bookmark.",
		}
	}
	f.nextID++
	f.now = f.now.Add(time.Second)
	b := domain.Bookmark{
		ID:        fmt.Sprintf("srv-%d", f.nextID),
		UserID:    "user-1",
		Title:     title,
		URL:       url,
		CreatedAt: f.now,
	}
	f.bookmarks = append(f.bookmarks, b)
	return b, nil
}

func (f *fakeAPI) DeleteBookmark(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range f.bookmarks {
		if b.ID == id {
			f.bookmarks = append(f.bookmarks[:i], f.bookmarks[i+1:]...)
			return nil
		}
	}
	return &apiclient.APIError{Status: http.StatusNotFound, Message: "Bookmark not found."}
}

func (f *fakeAPI) SubscribeChanges(context.Context) (Subscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	return f.sub, nil
}

func newGuestController(t *testing.T) (*Controller, *localstore.Store) {
	t.Helper()
	local, err := localstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("localstore.New: %v", err)
	}
	ctrl := New(local, logger.Nop())
	if err := ctrl.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return ctrl, local
}

func TestGuestFlow(t *testing.T) {
	ctrl, local := newGuestController(t)
	ctx := context.Background()

	if got := ctrl.State(); got != StateGuestOnboarding {
		t.Fatalf("state after first load = %q, want %q", got, StateGuestOnboarding)
	}
	if err := ctrl.CompleteOnboarding(false); err != nil {
		t.Fatalf("CompleteOnboarding: %v", err)
	}
	if got := ctrl.State(); got != StateGuestActive {
		t.Fatalf("state after skipping sign-in = %q, want %q", got, StateGuestActive)
	}

	if err := ctrl.Add(ctx, "Go", "go.dev"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	bookmarks := ctrl.Bookmarks()
	if len(bookmarks) != 1 {
		t.Fatalf("list has %d bookmarks, want 1", len(bookmarks))
	}
	if !strings.HasPrefix(bookmarks[0].ID, domain.LocalIDPrefix) {
		t.Errorf("guest bookmark id = %q, want %q prefix", bookmarks[0].ID, domain.LocalIDPrefix)
	}
	if bookmarks[0].URL != "https://go.dev/" {
		t.Errorf("guest bookmark url = %q, want normalized", bookmarks[0].URL)
	}

	// Persisted: a fresh controller over the same directory sees the entry
	// and skips onboarding.
	again := New(local, logger.Nop())
	if err := again.Load(); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if got := again.State(); got != StateGuestActive {
		t.Errorf("state on reload = %q, want %q", got, StateGuestActive)
	}
	if got := again.Bookmarks(); len(got) != 1 || got[0].Title != "Go" {
		t.Errorf("reloaded bookmarks = %+v", got)
	}

	if err := ctrl.Delete(ctx, bookmarks[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := ctrl.Bookmarks(); len(got) != 0 {
		t.Errorf("list after delete = %+v, want empty", got)
	}
}

func TestGuestAddValidation(t *testing.T) {
	ctrl, _ := newGuestController(t)
	if err := ctrl.CompleteOnboarding(false); err != nil {
		t.Fatalf("CompleteOnboarding: %v", err)
	}
	ctx := context.Background()

	if err := ctrl.Add(ctx, "   ", "go.dev"); err == nil {
		t.Fatal("Add with blank title succeeded")
	}
	if got := ctrl.Status(); got != "Title is required." {
		t.Errorf("status = %q, want %q", got, "Title is required.")
	}

	if err := ctrl.Add(ctx, "Go", "::::"); err == nil {
		t.Fatal("Add with invalid url succeeded")
	}
	if got := ctrl.Status(); got != "Please enter a valid URL." {
		t.Errorf("status = %q, want %q", got, "Please enter a valid URL.")
	}
	if got := ctrl.Bookmarks(); len(got) != 0 {
		t.Errorf("list mutated by rejected adds: %+v", got)
	}
}

func TestSignInLoadsServerListAndOpensSubscription(t *testing.T) {
	ctrl, _ := newGuestController(t)
	api := newFakeAPI()
	if _, err := api.CreateBookmark(context.Background(), "Existing", "https://a.dev/"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := ctrl.SignIn(context.Background(), api); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if got := ctrl.State(); got != StateAuthenticated {
		t.Fatalf("state = %q, want %q", got, StateAuthenticated)
	}
	if got := ctrl.Connection(); got != ConnLive {
		t.Errorf("connection = %q, want %q", got, ConnLive)
	}
	if got := ctrl.Bookmarks(); len(got) != 1 || got[0].Title != "Existing" {
		t.Errorf("bookmarks = %+v", got)
	}
}

func TestSignInSurvivesListFailure(t *testing.T) {
	ctrl, _ := newGuestController(t)
	api := newFakeAPI()
	api.listErr = errors.New("boom")

	if err := ctrl.SignIn(context.Background(), api); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if got := ctrl.State(); got != StateAuthenticated {
		t.Errorf("state = %q, want %q", got, StateAuthenticated)
	}
	if got := ctrl.Status(); got != "Failed to load bookmarks." {
		t.Errorf("status = %q, want %q", got, "Failed to load bookmarks.")
	}
}

func TestSignInSurvivesSubscriptionFailure(t *testing.T) {
	ctrl, _ := newGuestController(t)
	api := newFakeAPI()
	api.subErr = errors.New("dial failed")

	if err := ctrl.SignIn(context.Background(), api); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if got := ctrl.Connection(); got != ConnError {
		t.Errorf("connection = %q, want %q", got, ConnError)
	}
}

func TestAuthenticatedAddUsesServerMessage(t *testing.T) {
	ctrl, _ := newGuestController(t)
	api := newFakeAPI()
	api.failTitles = map[string]bool{"Broken": true}
	if err := ctrl.SignIn(context.Background(), api); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if err := ctrl.Add(context.Background(), "Broken", "https://a.dev/"); err == nil {
		t.Fatal("Add succeeded, want server failure")
	}
	if got := ctrl.Status(); got != "Failed to add bookmark." {
		t.Errorf("status = %q, want server message", got)
	}

	if err := ctrl.Add(context.Background(), "Works", "https://b.dev/"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := ctrl.Bookmarks(); len(got) != 1 || got[0].ID != "srv-1" {
		t.Errorf("bookmarks = %+v, want the created server row", got)
	}
}

func TestSyncLocalMergesAndClears(t *testing.T) {
	ctrl, local := newGuestController(t)
	ctx := context.Background()

	api := newFakeAPI()
	if _, err := api.CreateBookmark(ctx, "A", "https://a.com/"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Local has a case-insensitive duplicate of the server row plus one
	// genuinely new entry.
	seed := []domain.Bookmark{
		{ID: localstore.NewLocalID(), UserID: "local", Title: "a", URL: "https://a.com", CreatedAt: time.Now().UTC()},
		{ID: localstore.NewLocalID(), UserID: "local", Title: "B", URL: "https://b.com", CreatedAt: time.Now().UTC()},
	}
	if err := local.SaveBookmarks(seed); err != nil {
		t.Fatalf("SaveBookmarks: %v", err)
	}

	if err := ctrl.SignIn(ctx, api); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if got := ctrl.Pending(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}

	if err := ctrl.SyncLocal(ctx); err != nil {
		t.Fatalf("SyncLocal: %v", err)
	}
	if got := ctrl.Status(); got != "Synced 1 bookmarks." {
		t.Errorf("status = %q, want %q", got, "Synced 1 bookmarks.")
	}
	if got := ctrl.Pending(); got != 0 {
		t.Errorf("pending after sync = %d, want 0", got)
	}
	if got := ctrl.Bookmarks(); len(got) != 2 {
		t.Errorf("bookmarks after sync = %+v, want 2", got)
	}

	remaining, err := local.Bookmarks()
	if err != nil {
		t.Fatalf("local.Bookmarks: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("local storage after full sync = %+v, want cleared", remaining)
	}
}

func TestSyncLocalKeepsFailuresForRetry(t *testing.T) {
	ctrl, local := newGuestController(t)
	ctx := context.Background()

	api := newFakeAPI()
	api.failTitles = map[string]bool{"Flaky": true}

	seed := []domain.Bookmark{
		{ID: localstore.NewLocalID(), UserID: "local", Title: "Good", URL: "https://good.dev", CreatedAt: time.Now().UTC()},
		{ID: localstore.NewLocalID(), UserID: "local", Title: "Flaky", URL: "https://flaky.dev", CreatedAt: time.Now().UTC()},
	}
	if err := local.SaveBookmarks(seed); err != nil {
		t.Fatalf("SaveBookmarks: %v", err)
	}
	if err := ctrl.SignIn(ctx, api); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if err := ctrl.SyncLocal(ctx); err == nil {
		t.Fatal("SyncLocal succeeded, want partial failure")
	}
	if got := ctrl.Status(); got != "Synced 1 bookmarks, 1 failed." {
		t.Errorf("status = %q, want %q", got, "Synced 1 bookmarks, 1 failed.")
	}
	if got := ctrl.Pending(); got != 1 {
		t.Errorf("pending = %d, want the failed entry to remain", got)
	}

	remaining, err := local.Bookmarks()
	if err != nil {
		t.Fatalf("local.Bookmarks: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Title != "Flaky" {
		t.Errorf("remaining local bookmarks = %+v, want only the failure", remaining)
	}
}

func TestSyncLocalNothingToSync(t *testing.T) {
	ctrl, _ := newGuestController(t)
	ctx := context.Background()

	if err := ctrl.SignIn(ctx, newFakeAPI()); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := ctrl.SyncLocal(ctx); err != nil {
		t.Fatalf("SyncLocal: %v", err)
	}
	if got := ctrl.Status(); got != "Nothing to sync." {
		t.Errorf("status = %q, want %q", got, "Nothing to sync.")
	}
}

func TestRealtimeEventsFlowIntoList(t *testing.T) {
	ctrl, _ := newGuestController(t)
	api := newFakeAPI()
	if err := ctrl.SignIn(context.Background(), api); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	inserted := domain.Bookmark{
		ID:        "srv-9",
		UserID:    "user-1",
		Title:     "From another session",
		URL:       "https://c.dev/",
		CreatedAt: time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC),
	}
	api.sub.events <- domain.ChangeEvent{Kind: domain.EventInsert, New: &inserted}

	waitFor(t, func() bool { return len(ctrl.Bookmarks()) == 1 })
	if got := ctrl.Bookmarks(); got[0].ID != "srv-9" {
		t.Errorf("bookmarks = %+v", got)
	}

	api.sub.events <- domain.ChangeEvent{Kind: domain.EventDelete, Old: &domain.Bookmark{ID: "srv-9"}}
	waitFor(t, func() bool { return len(ctrl.Bookmarks()) == 0 })

	// Closing the channel marks the connection as dropped.
	if err := api.sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	waitFor(t, func() bool { return ctrl.Connection() == ConnDisconnected })
}

func TestEventsDroppedInGuestMode(t *testing.T) {
	ctrl, _ := newGuestController(t)

	b := domain.Bookmark{ID: "srv-1", Title: "x", URL: "https://x.dev/"}
	ctrl.ApplyEvent(domain.ChangeEvent{Kind: domain.EventInsert, New: &b})

	if got := ctrl.Bookmarks(); len(got) != 0 {
		t.Errorf("guest list after event = %+v, want untouched", got)
	}
}

func TestSignOutReturnsToGuest(t *testing.T) {
	ctrl, _ := newGuestController(t)
	if err := ctrl.SignIn(context.Background(), newFakeAPI()); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if err := ctrl.SignOut(); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if got := ctrl.State(); got != StateGuestActive {
		t.Errorf("state = %q, want %q", got, StateGuestActive)
	}
	if got := ctrl.Connection(); got != ConnNone {
		t.Errorf("connection = %q, want none", got)
	}
	if err := ctrl.SignOut(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second SignOut error = %v, want ErrInvalidState", err)
	}
}

// waitFor polls for a condition set by the subscription pump goroutine.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
