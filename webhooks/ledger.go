package webhooks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusFailed     = "failed"
)

type DeliveryRecord struct {
	ID             string
	ClaimID        string
	ProviderID     string
	DeliveryID     string
	EventType      string
	Status         string
	Attempts       int
	LastError      string
	LeaseExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DeliveryLedger tracks provider deliveries so a redelivered event is not
// applied twice. Release hands a failed claim back so the provider's own
// redelivery is processed again; the relay never schedules retries itself.
type DeliveryLedger interface {
	Claim(
		ctx context.Context,
		providerID string,
		deliveryID string,
		eventType string,
		lease time.Duration,
	) (DeliveryRecord, bool, error)
	Get(ctx context.Context, providerID string, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Release(ctx context.Context, claimID string, cause error) error
}

type DeliveryFilter struct {
	ProviderID string
	Page       int
	PerPage    int
}

type DeliveryPage struct {
	Items   []DeliveryRecord
	Total   int
	Page    int
	PerPage int
}

type DeliveryLister interface {
	List(ctx context.Context, filter DeliveryFilter) (DeliveryPage, error)
}

// Normalize clamps paging to sane bounds.
func (f DeliveryFilter) Normalize() DeliveryFilter {
	f.ProviderID = strings.TrimSpace(f.ProviderID)
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 25
	}
	if f.PerPage > 200 {
		f.PerPage = 200
	}
	return f
}

func (f DeliveryFilter) Offset() int {
	f = f.Normalize()
	return (f.Page - 1) * f.PerPage
}

// Reclaimable reports whether a stored delivery may be claimed again at now.
func Reclaimable(record DeliveryRecord, now time.Time) bool {
	switch record.Status {
	case DeliveryStatusFailed:
		return true
	case DeliveryStatusProcessing:
		return record.LeaseExpiresAt != nil && !now.Before(*record.LeaseExpiresAt)
	default:
		return false
	}
}

type InMemoryLedger struct {
	mu      sync.Mutex
	entries map[string]*DeliveryRecord
	claims  map[string]string
	Now     func() time.Time
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		entries: map[string]*DeliveryRecord{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *InMemoryLedger) Claim(
	_ context.Context,
	providerID string,
	deliveryID string,
	eventType string,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery ledger is nil")
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: provider id and delivery id are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	now := l.now()
	leaseExpiresAt := now.Add(lease)
	key := ledgerKey(providerID, deliveryID)

	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[key]
	if !exists {
		entry = &DeliveryRecord{
			ID:             uuid.NewString(),
			ClaimID:        uuid.NewString(),
			ProviderID:     providerID,
			DeliveryID:     deliveryID,
			EventType:      strings.TrimSpace(eventType),
			Status:         DeliveryStatusProcessing,
			Attempts:       1,
			LeaseExpiresAt: &leaseExpiresAt,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		l.entries[key] = entry
		l.claims[entry.ClaimID] = key
		return cloneDelivery(entry), true, nil
	}
	if !Reclaimable(*entry, now) {
		return cloneDelivery(entry), false, nil
	}

	delete(l.claims, entry.ClaimID)
	entry.ClaimID = uuid.NewString()
	entry.Status = DeliveryStatusProcessing
	entry.Attempts++
	entry.LeaseExpiresAt = &leaseExpiresAt
	entry.UpdatedAt = now
	l.claims[entry.ClaimID] = key
	return cloneDelivery(entry), true, nil
}

func (l *InMemoryLedger) Get(_ context.Context, providerID string, deliveryID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[ledgerKey(strings.TrimSpace(providerID), strings.TrimSpace(deliveryID))]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery not found for provider %q delivery %q", providerID, deliveryID)
	}
	return cloneDelivery(entry), nil
}

func (l *InMemoryLedger) Complete(_ context.Context, claimID string) error {
	return l.transition(claimID, DeliveryStatusProcessed, nil)
}

func (l *InMemoryLedger) Release(_ context.Context, claimID string, cause error) error {
	return l.transition(claimID, DeliveryStatusFailed, cause)
}

func (l *InMemoryLedger) List(_ context.Context, filter DeliveryFilter) (DeliveryPage, error) {
	if l == nil {
		return DeliveryPage{}, fmt.Errorf("webhooks: delivery ledger is nil")
	}
	filter = filter.Normalize()
	l.mu.Lock()
	items := make([]DeliveryRecord, 0, len(l.entries))
	for _, entry := range l.entries {
		if filter.ProviderID != "" && entry.ProviderID != filter.ProviderID {
			continue
		}
		items = append(items, cloneDelivery(entry))
	}
	l.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].DeliveryID > items[j].DeliveryID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	page := DeliveryPage{Total: len(items), Page: filter.Page, PerPage: filter.PerPage}
	start := filter.Offset()
	if start >= len(items) {
		page.Items = []DeliveryRecord{}
		return page, nil
	}
	end := start + filter.PerPage
	if end > len(items) {
		end = len(items)
	}
	page.Items = items[start:end]
	return page, nil
}

func (l *InMemoryLedger) transition(claimID string, status string, cause error) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is nil")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("webhooks: claim id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[claimID]
	if !ok {
		return nil
	}
	delete(l.claims, claimID)
	entry, exists := l.entries[key]
	if !exists || entry.ClaimID != claimID || entry.Status != DeliveryStatusProcessing {
		return nil
	}
	entry.Status = status
	entry.LeaseExpiresAt = nil
	entry.UpdatedAt = l.now()
	if cause != nil {
		entry.LastError = cause.Error()
	}
	return nil
}

func (l *InMemoryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func ledgerKey(providerID string, deliveryID string) string {
	return providerID + "\x00" + deliveryID
}

func cloneDelivery(entry *DeliveryRecord) DeliveryRecord {
	out := *entry
	if entry.LeaseExpiresAt != nil {
		value := *entry.LeaseExpiresAt
		out.LeaseExpiresAt = &value
	}
	return out
}

var (
	_ DeliveryLedger = (*InMemoryLedger)(nil)
	_ DeliveryLister = (*InMemoryLedger)(nil)
)
