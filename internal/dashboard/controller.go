// Package dashboard owns the client-side bookmark list state: guest mode
// backed by local storage, authenticated mode backed by the API plus a
// realtime subscription, and the merge of one into the other.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smartmark/smartmark/internal/apiclient"
	"github.com/smartmark/smartmark/internal/domain"
	"github.com/smartmark/smartmark/internal/localstore"
	"github.com/smartmark/smartmark/internal/logger"
)

// State identifies where the controller is in its lifecycle. Sign-in is a
// one-way door: there is no path back to guest mode while a session exists.
type State string

const (
	StateGuestLoading    State = "guest-loading"
	StateGuestOnboarding State = "guest-onboarding"
	StateGuestActive     State = "guest-active"
	StateAuthenticated   State = "authenticated-active"
)

// Connection labels for the realtime channel, surfaced to the UI.
const (
	ConnNone         = ""
	ConnConnecting   = "connecting"
	ConnLive         = "live"
	ConnError        = "channel error"
	ConnDisconnected = "disconnected"
)

// Owner id recorded on guest bookmarks before any account exists.
const localUserID = "local"

var (
	ErrBusy         = errors.New("another action is in flight")
	ErrInvalidState = errors.New("action not valid in current state")
)

// Subscription is one open realtime channel.
type Subscription interface {
	Events() <-chan domain.ChangeEvent
	Close() error
}

// API is what the controller needs from the server. *apiclient.Client
// satisfies it through a thin adapter; tests substitute fakes.
type API interface {
	ListBookmarks(ctx context.Context) ([]domain.Bookmark, error)
	CreateBookmark(ctx context.Context, title, url string) (domain.Bookmark, error)
	DeleteBookmark(ctx context.Context, id string) error
	SubscribeChanges(ctx context.Context) (Subscription, error)
}

// Controller reconciles user actions, local storage and realtime events
// into one bookmark list. All methods are safe for concurrent use; the
// realtime pump goroutine feeds ApplyEvent while actions run.
type Controller struct {
	mu     sync.Mutex
	logger logger.Logger
	local  *localstore.Store
	api    API

	state     State
	bookmarks []domain.Bookmark
	status    string
	conn      string
	pending   int
	busy      bool

	sub       Subscription
	subCancel context.CancelFunc
	onEvent   func(domain.ChangeEvent)
}

// New returns a controller in the guest-loading state. Call Load next.
func New(local *localstore.Store, log logger.Logger) *Controller {
	return &Controller{
		logger: log,
		local:  local,
		state:  StateGuestLoading,
	}
}

// Load reads the local list and the onboarding flag, then transitions to
// guest-onboarding or guest-active.
func (c *Controller) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateGuestLoading {
		return ErrInvalidState
	}

	bookmarks, err := c.local.Bookmarks()
	if err != nil {
		return fmt.Errorf("failed to load local bookmarks: %w", err)
	}
	c.bookmarks = domain.SortByCreatedAtDesc(bookmarks)

	if c.local.OnboardingComplete() {
		c.state = StateGuestActive
	} else {
		c.state = StateGuestOnboarding
	}
	return nil
}

// CompleteOnboarding records the guest's choice. Both paths mark onboarding
// complete; only "skip" transitions here ("sign in" continues via SignIn
// after the OAuth redirect).
func (c *Controller) CompleteOnboarding(signIn bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateGuestOnboarding {
		return ErrInvalidState
	}
	if err := c.local.MarkOnboardingComplete(); err != nil {
		return fmt.Errorf("failed to mark onboarding complete: %w", err)
	}
	if !signIn {
		c.state = StateGuestActive
	}
	return nil
}

// SignIn enters authenticated mode: loads the server list, opens the
// realtime subscription and recomputes the pending-sync count. A failed
// initial list load is surfaced as status, not a failed sign-in.
func (c *Controller) SignIn(ctx context.Context, api API) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateAuthenticated {
		return ErrInvalidState
	}
	if err := c.local.MarkOnboardingComplete(); err != nil {
		c.logger.Warn("failed to mark onboarding complete", logger.Error(err))
	}

	c.api = api
	c.state = StateAuthenticated
	c.status = ""

	bookmarks, err := api.ListBookmarks(ctx)
	if err != nil {
		c.logger.Warn("initial bookmark load failed", logger.Error(err))
		c.status = "Failed to load bookmarks."
		bookmarks = []domain.Bookmark{}
	}
	c.bookmarks = domain.SortByCreatedAtDesc(bookmarks)

	c.openSubscriptionLocked()
	c.refreshPendingLocked()
	return nil
}

// SignOut closes the subscription and returns to the guest flow.
func (c *Controller) SignOut() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAuthenticated {
		return ErrInvalidState
	}
	c.closeSubscriptionLocked()
	c.api = nil
	c.status = ""
	c.pending = 0

	bookmarks, err := c.local.Bookmarks()
	if err != nil {
		c.logger.Warn("failed to reload local bookmarks", logger.Error(err))
		bookmarks = []domain.Bookmark{}
	}
	c.bookmarks = domain.SortByCreatedAtDesc(bookmarks)
	c.state = StateGuestActive
	return nil
}

// Add validates input, then persists the bookmark locally (guest) or via
// the API (authenticated). The list only mutates after confirmed success.
func (c *Controller) Add(ctx context.Context, title, rawURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.beginActionLocked(); err != nil {
		return err
	}
	defer c.endActionLocked()

	title = strings.TrimSpace(title)
	if title == "" {
		c.status = "Title is required."
		return errors.New("title is required")
	}
	normalizedURL, err := domain.NormalizeURL(rawURL)
	if err != nil {
		c.status = "Please enter a valid URL."
		return err
	}

	if c.state != StateAuthenticated {
		bookmark := domain.Bookmark{
			ID:        localstore.NewLocalID(),
			UserID:    localUserID,
			Title:     title,
			URL:       normalizedURL,
			CreatedAt: time.Now().UTC(),
		}
		next := domain.SortByCreatedAtDesc(append(c.copyBookmarksLocked(), bookmark))
		if err := c.local.SaveBookmarks(next); err != nil {
			c.status = "Failed to add bookmark."
			return err
		}
		c.bookmarks = next
		return nil
	}

	created, createErr := c.createUnlocked(ctx, title, normalizedURL)
	if createErr != nil {
		c.status = actionMessage(createErr, "Failed to add bookmark.")
		return createErr
	}
	c.bookmarks = domain.Reduce(c.bookmarks, domain.ChangeEvent{
		Kind: domain.EventInsert,
		New:  &created,
	})
	c.refreshPendingLocked()
	return nil
}

// Delete removes a bookmark by id, locally or via the API.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.beginActionLocked(); err != nil {
		return err
	}
	defer c.endActionLocked()

	if c.state != StateAuthenticated {
		next := removeBookmark(c.copyBookmarksLocked(), id)
		if err := c.local.SaveBookmarks(next); err != nil {
			c.status = "Failed to delete bookmark."
			return err
		}
		c.bookmarks = next
		return nil
	}

	if err := c.deleteUnlocked(ctx, id); err != nil {
		c.status = actionMessage(err, "Failed to delete bookmark.")
		return err
	}
	c.bookmarks = removeBookmark(c.bookmarks, id)
	c.refreshPendingLocked()
	return nil
}

// SyncLocal pushes unsynced local bookmarks to the server one at a time,
// continuing past individual failures. Only the entries that made it (or
// were already present server-side) leave local storage; failures stay for
// retry. The summary is count-based by design.
func (c *Controller) SyncLocal(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAuthenticated {
		return ErrInvalidState
	}
	if err := c.beginActionLocked(); err != nil {
		return err
	}
	defer c.endActionLocked()

	local, err := c.local.Bookmarks()
	if err != nil {
		c.status = "Failed to read local bookmarks."
		return err
	}

	unsynced := domain.UnsyncedBookmarks(local, c.bookmarks)
	if len(unsynced) == 0 {
		c.refreshPendingLocked()
		c.status = "Nothing to sync."
		return nil
	}

	failedKeys := make(map[string]struct{})
	synced := 0
	for _, bookmark := range unsynced {
		created, createErr := c.createUnlocked(ctx, bookmark.Title, bookmark.URL)
		if createErr != nil {
			c.logger.Warn("failed to sync local bookmark",
				logger.String("title", bookmark.Title),
				logger.Error(createErr))
			failedKeys[domain.DedupKey(bookmark.Title, bookmark.URL)] = struct{}{}
			continue
		}
		synced++
		c.bookmarks = domain.Reduce(c.bookmarks, domain.ChangeEvent{
			Kind: domain.EventInsert,
			New:  &created,
		})
	}

	remaining := make([]domain.Bookmark, 0, len(failedKeys))
	for _, bookmark := range local {
		if _, failed := failedKeys[domain.DedupKey(bookmark.Title, bookmark.URL)]; failed {
			remaining = append(remaining, bookmark)
		}
	}

	if len(remaining) == 0 {
		if err := c.local.Clear(); err != nil {
			c.logger.Warn("failed to clear local bookmarks", logger.Error(err))
		}
	} else if err := c.local.SaveBookmarks(remaining); err != nil {
		c.logger.Warn("failed to save remaining local bookmarks", logger.Error(err))
	}

	c.refreshPendingLocked()
	if len(failedKeys) > 0 {
		c.status = fmt.Sprintf("Synced %d bookmarks, %d failed.", synced, len(failedKeys))
		return fmt.Errorf("%d of %d bookmarks failed to sync", len(failedKeys), len(unsynced))
	}
	c.status = fmt.Sprintf("Synced %d bookmarks.", synced)
	return nil
}

// ApplyEvent folds one realtime change event into the list. Called by the
// subscription pump; events arriving outside authenticated mode are dropped.
func (c *Controller) ApplyEvent(event domain.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAuthenticated {
		return
	}
	c.bookmarks = domain.Reduce(c.bookmarks, event)
	c.refreshPendingLocked()
	if c.onEvent != nil {
		go c.onEvent(event)
	}
}

// OnEvent registers a callback fired after each applied realtime event.
// The callback runs on its own goroutine and must not call back into the
// controller's mutating actions.
func (c *Controller) OnEvent(fn func(domain.ChangeEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

// Accessors. Bookmarks returns a copy so callers never alias internal state.

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Bookmarks() []domain.Bookmark {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyBookmarksLocked()
}

func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Controller) Connection() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// --- internals (callers hold c.mu unless noted) ---

// beginActionLocked clears any stale status message and takes the in-flight
// guard. This is the control-disable analogue: a second action while one is
// running is rejected, nothing stronger.
func (c *Controller) beginActionLocked() error {
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	c.status = ""
	return nil
}

func (c *Controller) endActionLocked() { c.busy = false }

// createUnlocked and deleteUnlocked release the mutex around the network
// call so realtime events keep flowing while a submission is in flight.
func (c *Controller) createUnlocked(ctx context.Context, title, url string) (domain.Bookmark, error) {
	api := c.api
	c.mu.Unlock()
	defer c.mu.Lock()
	return api.CreateBookmark(ctx, title, url)
}

func (c *Controller) deleteUnlocked(ctx context.Context, id string) error {
	api := c.api
	c.mu.Unlock()
	defer c.mu.Lock()
	return api.DeleteBookmark(ctx, id)
}

func (c *Controller) openSubscriptionLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	c.subCancel = cancel
	c.conn = ConnConnecting

	sub, err := c.api.SubscribeChanges(ctx)
	if err != nil {
		c.logger.Warn("failed to open realtime subscription", logger.Error(err))
		c.conn = ConnError
		return
	}
	c.sub = sub
	c.conn = ConnLive

	go c.pump(sub)
}

func (c *Controller) closeSubscriptionLocked() {
	if c.subCancel != nil {
		c.subCancel()
		c.subCancel = nil
	}
	if c.sub != nil {
		if err := c.sub.Close(); err != nil {
			c.logger.Warn("failed to close realtime subscription", logger.Error(err))
		}
		c.sub = nil
	}
	c.conn = ConnNone
}

// pump runs outside the lock for the life of one subscription.
func (c *Controller) pump(sub Subscription) {
	for event := range sub.Events() {
		c.ApplyEvent(event)
	}
	c.mu.Lock()
	if c.sub == sub {
		c.conn = ConnDisconnected
		c.sub = nil
	}
	c.mu.Unlock()
}

// refreshPendingLocked recomputes the pending-sync count. When local entries
// exist but none remain unsynced, every one of them is accounted for
// server-side and local storage is cleared.
func (c *Controller) refreshPendingLocked() {
	local, err := c.local.Bookmarks()
	if err != nil {
		c.logger.Warn("failed to read local bookmarks", logger.Error(err))
		return
	}
	unsynced := domain.UnsyncedBookmarks(local, c.bookmarks)
	c.pending = len(unsynced)

	if len(local) > 0 && len(unsynced) == 0 {
		if err := c.local.Clear(); err != nil {
			c.logger.Warn("failed to clear local bookmarks", logger.Error(err))
		}
	}
}

func (c *Controller) copyBookmarksLocked() []domain.Bookmark {
	out := make([]domain.Bookmark, len(c.bookmarks))
	copy(out, c.bookmarks)
	return out
}

func removeBookmark(list []domain.Bookmark, id string) []domain.Bookmark {
	out := make([]domain.Bookmark, 0, len(list))
	for _, b := range list {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

// actionMessage prefers the server's human-readable message when there is
// one, falling back to a generic "failed to ..." string.
func actionMessage(err error, fallback string) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
