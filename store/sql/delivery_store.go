package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-callback-relay/webhooks"
)

const defaultClaimLease = 30 * time.Second

// DeliveryStore is the durable delivery ledger. Claims race on the
// (provider_id, delivery_id) unique index; reclaims are guarded by the
// previous claim id so two processes cannot take over the same lease.
type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryRecord]
	Now  func() time.Time
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryRecord](db, deliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery repository wiring: %w", err)
		}
	}
	return &DeliveryStore{
		db:   db,
		repo: repo,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *DeliveryStore) Claim(
	ctx context.Context,
	providerID string,
	deliveryID string,
	eventType string,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: provider id and delivery id are required")
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := s.now()
	expires := now.Add(lease)

	record := &deliveryRecord{
		ID:             uuid.NewString(),
		ClaimID:        uuid.NewString(),
		ProviderID:     providerID,
		DeliveryID:     deliveryID,
		EventType:      strings.TrimSpace(eventType),
		Status:         webhooks.DeliveryStatusProcessing,
		Attempts:       1,
		LeaseExpiresAt: &expires,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := s.db.NewInsert().Model(record).Exec(ctx)
	if err == nil {
		return deliveryToDomain(record), true, nil
	}
	if !isUniqueViolation(err) {
		return webhooks.DeliveryRecord{}, false, err
	}

	existing, err := s.getRecord(ctx, providerID, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if !webhooks.Reclaimable(deliveryToDomain(existing), now) {
		return deliveryToDomain(existing), false, nil
	}

	claimID := uuid.NewString()
	res, err := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("claim_id = ?", claimID).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = attempts + 1").
		Set("lease_expires_at = ?", expires).
		Set("updated_at = ?", now).
		Where("id = ?", existing.ID).
		Where("claim_id = ?", existing.ClaimID).
		Where("status = ?", existing.Status).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		current, getErr := s.getRecord(ctx, providerID, deliveryID)
		if getErr != nil {
			return webhooks.DeliveryRecord{}, false, getErr
		}
		return deliveryToDomain(current), false, nil
	}

	existing.ClaimID = claimID
	existing.Status = webhooks.DeliveryStatusProcessing
	existing.Attempts++
	existing.LeaseExpiresAt = &expires
	existing.UpdatedAt = now
	return deliveryToDomain(existing), true, nil
}

func (s *DeliveryStore) Get(ctx context.Context, providerID string, deliveryID string) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	record, err := s.getRecord(ctx, strings.TrimSpace(providerID), strings.TrimSpace(deliveryID))
	if err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	return deliveryToDomain(record), nil
}

func (s *DeliveryStore) Complete(ctx context.Context, claimID string) error {
	return s.transition(ctx, claimID, webhooks.DeliveryStatusProcessed, nil)
}

func (s *DeliveryStore) Release(ctx context.Context, claimID string, cause error) error {
	return s.transition(ctx, claimID, webhooks.DeliveryStatusFailed, cause)
}

func (s *DeliveryStore) List(ctx context.Context, filter webhooks.DeliveryFilter) (webhooks.DeliveryPage, error) {
	if s == nil || s.repo == nil {
		return webhooks.DeliveryPage{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	filter = filter.Normalize()
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(filter.PerPage, filter.Offset()),
	}
	if filter.ProviderID != "" {
		selectors = append(selectors, repository.SelectBy("provider_id", "=", filter.ProviderID))
	}
	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return webhooks.DeliveryPage{}, err
	}
	items := make([]webhooks.DeliveryRecord, 0, len(records))
	for _, record := range records {
		items = append(items, deliveryToDomain(record))
	}
	return webhooks.DeliveryPage{
		Items:   items,
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	}, nil
}

func (s *DeliveryStore) transition(ctx context.Context, claimID string, status string, cause error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	query := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", status).
		Set("lease_expires_at = NULL").
		Set("updated_at = ?", s.now())
	if cause != nil {
		query = query.Set("last_error = ?", truncateError(cause.Error()))
	}
	_, err := query.
		Where("claim_id = ?", claimID).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Exec(ctx)
	return err
}

func (s *DeliveryStore) getRecord(ctx context.Context, providerID string, deliveryID string) (*deliveryRecord, error) {
	record := &deliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", providerID).
		Where("?TableAlias.delivery_id = ?", deliveryID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sqlstore: delivery not found for provider %q delivery %q", providerID, deliveryID)
		}
		return nil, err
	}
	return record, nil
}

func (s *DeliveryStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func deliveryToDomain(record *deliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         record.ID,
		ClaimID:    record.ClaimID,
		ProviderID: record.ProviderID,
		DeliveryID: record.DeliveryID,
		EventType:  record.EventType,
		Status:     record.Status,
		Attempts:   record.Attempts,
		LastError:  record.LastError,
		CreatedAt:  record.CreatedAt.UTC(),
		UpdatedAt:  record.UpdatedAt.UTC(),
	}
	if record.LeaseExpiresAt != nil {
		value := record.LeaseExpiresAt.UTC()
		result.LeaseExpiresAt = &value
	}
	return result
}

func truncateError(message string) string {
	const limit = 1024
	if len(message) > limit {
		return message[:limit]
	}
	return message
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
