package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-callback-relay/core"
)

const MissingImagesMessage = "Missing required image URLs for initial callback"

type record struct {
	session core.Session
	seq     uint64
}

// Cache is the in-process session store. Every operation holds the mutex for
// its full duration, so the drain-once read and the write-path sweep are
// atomic with respect to concurrent requests.
type Cache struct {
	mu      sync.Mutex
	records map[string]*record
	nextSeq uint64
	ttl     time.Duration
	logger  glog.Logger

	Now func() time.Time
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.Now = now
		}
	}
}

func WithLogger(logger glog.Logger) Option {
	return func(c *Cache) {
		c.logger = glog.Ensure(logger)
	}
}

func NewCache(opts ...Option) *Cache {
	cache := &Cache{
		records: map[string]*record{},
		ttl:     core.DefaultSessionTTL,
		logger:  glog.Nop(),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}
	return cache
}

func (c *Cache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// Ingest records a callback. A first write needs all four image URLs; a
// write over a completed session replaces the URLs unchecked and raises the
// regenerated flag. Expired sessions are swept after every accepted write.
func (c *Cache) Ingest(_ context.Context, sessionID string, payload core.CallbackPayload) (core.IngestResult, error) {
	if c == nil {
		return core.IngestResult{}, core.InternalError(nil, "sessions: cache is nil")
	}
	if sessionID == "" {
		return core.IngestResult{}, core.ValidationError("session id is required",
			goerrors.FieldError{Field: "sessionId", Message: "required"})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	result := core.IngestResult{SessionID: sessionID}
	existing, ok := c.records[sessionID]
	if ok && existing.session.Status == core.SessionStatusCompleted {
		existing.session.Images = payload.Images
		existing.session.Regenerated = true
		stamped := now
		existing.session.RegeneratedAt = &stamped
		result.Regenerated = true
	} else {
		if missing := payload.Images.Missing(); len(missing) > 0 {
			fields := make([]goerrors.FieldError, 0, len(missing))
			for _, field := range missing {
				fields = append(fields, goerrors.FieldError{Field: field, Message: "required"})
			}
			return core.IngestResult{}, core.ValidationError(MissingImagesMessage, fields...)
		}
		c.nextSeq++
		c.records[sessionID] = &record{
			seq: c.nextSeq,
			session: core.Session{
				ID:        sessionID,
				Status:    core.SessionStatusCompleted,
				Images:    payload.Images,
				Extra:     core.CloneMap(payload.Extra),
				CreatedAt: now,
			},
		}
	}

	result.Swept = c.sweepLocked(now)
	return result, nil
}

func (c *Cache) Completed(_ context.Context, sessionID string) (core.ImageStatus, error) {
	if c == nil {
		return core.PendingStatus(), nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.records[sessionID]
	if !ok || existing.session.Status != core.SessionStatusCompleted {
		return core.PendingStatus(), nil
	}
	images := existing.session.Images
	return core.ImageStatus{Status: core.SessionStatusCompleted, Images: &images}, nil
}

// Regenerated reports a pending regeneration once, clearing the flag in the
// same critical section.
func (c *Cache) Regenerated(_ context.Context, sessionID string) (core.ImageStatus, error) {
	if c == nil {
		return core.PendingStatus(), nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.records[sessionID]
	if !ok || !existing.session.Regenerated {
		return core.PendingStatus(), nil
	}
	existing.session.Regenerated = false
	images := existing.session.Images
	return core.ImageStatus{Status: core.SessionStatusRegenerated, Images: &images}, nil
}

func (c *Cache) Delete(_ context.Context, sessionID string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, sessionID)
	return nil
}

// List returns summaries in first-write order.
func (c *Cache) List(context.Context) ([]core.SessionSummary, error) {
	if c == nil {
		return []core.SessionSummary{}, nil
	}
	c.mu.Lock()
	ordered := make([]*record, 0, len(c.records))
	for _, item := range c.records {
		ordered = append(ordered, item)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].seq < ordered[j].seq
	})
	summaries := make([]core.SessionSummary, 0, len(ordered))
	for _, item := range ordered {
		session := item.session
		summaries = append(summaries, core.SessionSummary{
			ID:             session.ID,
			CreatedAt:      session.CreatedAt,
			Status:         session.Status,
			HasAllImages:   session.Images.Complete(),
			HasRegenerated: session.Regenerated,
			RegeneratedAt:  core.CloneTime(session.RegeneratedAt),
		})
	}
	c.mu.Unlock()
	return summaries, nil
}

func (c *Cache) Get(_ context.Context, sessionID string) (core.Session, error) {
	if c == nil {
		return core.Session{}, core.NotFoundError("Session not found")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.records[sessionID]
	if !ok {
		return core.Session{}, core.NotFoundError("Session not found")
	}
	session := existing.session
	session.Extra = core.CloneMap(session.Extra)
	session.RegeneratedAt = core.CloneTime(session.RegeneratedAt)
	return session, nil
}

// Sweep removes every session created more than the TTL ago and returns the
// number removed.
func (c *Cache) Sweep(context.Context) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func (c *Cache) sweepLocked(now time.Time) int {
	cutoff := now.Add(-c.ttl)
	removed := 0
	for id, item := range c.records {
		if item.session.CreatedAt.Before(cutoff) {
			delete(c.records, id)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("sessions swept", "removed", removed, "remaining", len(c.records))
	}
	return removed
}

func (c *Cache) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

var _ core.SessionStore = (*Cache)(nil)
