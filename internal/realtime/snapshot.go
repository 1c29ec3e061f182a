package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"workbridge_backend/internal/models"
	"workbridge_backend/internal/repositories"
)

// StoreSnapshotFetcher backs reconciliation with the same repositories the
// CRUD layer uses, scoped by role exactly like the live feeds.
type StoreSnapshotFetcher struct {
	notifications repositories.NotificationRepository
	messages      repositories.MessageRepository
	proposals     repositories.ProposalRepository
	jobs          repositories.JobRepository
	payouts       repositories.PayoutRepository

	// limit bounds snapshot size to what the cache would retain anyway.
	limit int
}

func NewStoreSnapshotFetcher(
	notifications repositories.NotificationRepository,
	messages repositories.MessageRepository,
	proposals repositories.ProposalRepository,
	jobs repositories.JobRepository,
	payouts repositories.PayoutRepository,
	limit int,
) *StoreSnapshotFetcher {
	return &StoreSnapshotFetcher{
		notifications: notifications,
		messages:      messages,
		proposals:     proposals,
		jobs:          jobs,
		payouts:       payouts,
		limit:         limit,
	}
}

func (f *StoreSnapshotFetcher) FetchSnapshot(ctx context.Context, entity EntityType, identity Identity) ([]SnapshotRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch entity {
	case EntityNotification:
		rows, _, err := f.notifications.FindUserNotifications(identity.ID, repositories.NotificationCriteria{Limit: f.limit})
		if err != nil {
			return nil, err
		}
		return toSnapshotRows(rows, func(n models.Notification) (string, time.Time) { return n.ID, n.UpdatedAt })

	case EntityMessage:
		rows, err := f.messages.FindUserMessages(identity.ID)
		if err != nil {
			return nil, err
		}
		return toSnapshotRows(rows, func(m models.Message) (string, time.Time) { return m.ID, m.UpdatedAt })

	case EntityProposal:
		switch identity.Role {
		case models.UserRoleEmployer:
			rows, err := f.proposals.FindByEmployer(identity.ID)
			if err != nil {
				return nil, err
			}
			return toSnapshotRows(rows, func(p models.Proposal) (string, time.Time) { return p.ID, p.UpdatedAt })
		default:
			rows, _, err := f.proposals.FindByFreelancer(identity.ID, f.limit, 0)
			if err != nil {
				return nil, err
			}
			return toSnapshotRows(rows, func(p models.Proposal) (string, time.Time) { return p.ID, p.UpdatedAt })
		}

	case EntityJob:
		if identity.Role == models.UserRoleEmployer {
			rows, _, err := f.jobs.FindByEmployer(identity.ID, f.limit, 0)
			if err != nil {
				return nil, err
			}
			return toSnapshotRows(rows, func(j models.Job) (string, time.Time) { return j.ID, j.UpdatedAt })
		}
		rows, _, err := f.jobs.FindOpen(f.limit, 0)
		if err != nil {
			return nil, err
		}
		return toSnapshotRows(rows, func(j models.Job) (string, time.Time) { return j.ID, j.UpdatedAt })

	case EntityPayout:
		var (
			rows []models.Payout
			err  error
		)
		if identity.Role == models.UserRoleEmployer {
			rows, err = f.payouts.FindByEmployer(identity.ID)
		} else {
			rows, err = f.payouts.FindByFreelancer(identity.ID)
		}
		if err != nil {
			return nil, err
		}
		return toSnapshotRows(rows, func(p models.Payout) (string, time.Time) { return p.ID, p.UpdatedAt })
	}

	return nil, fmt.Errorf("realtime: no snapshot query for entity %q", entity)
}

// toSnapshotRows flattens model structs through their JSON form, which
// uses the same column names as the CDC trigger's row_to_json payloads,
// so live events and snapshot rows merge identically.
func toSnapshotRows[T any](items []T, meta func(T) (string, time.Time)) ([]SnapshotRow, error) {
	out := make([]SnapshotRow, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		var row Row
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, err
		}
		id, ts := meta(item)
		out = append(out, SnapshotRow{ID: id, Payload: row, ServerTS: ts})
	}
	return out, nil
}
