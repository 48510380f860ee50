package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/marmos91/tasklease/internal/telemetry"
	"github.com/marmos91/tasklease/pkg/models"
)

// ============================================
// LEASE OPERATIONS
// ============================================

func (s *GORMStore) AcquireLease(ctx context.Context, resource, holder string, ttl time.Duration) (*models.Lease, error) {
	ctx, span := telemetry.StartLeaseSpan(ctx, "acquire", resource,
		telemetry.Holder(holder),
		telemetry.LeaseTTL(ttl),
	)
	defer span.End()

	var lease *models.Lease

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockResource(tx, resource); err != nil {
			return err
		}

		now, err := s.now(tx)
		if err != nil {
			return err
		}

		var rows []models.Lease
		if err := s.locking(tx).Where("resource = ?", resource).Order("id").Find(&rows).Error; err != nil {
			return err
		}

		for i := range rows {
			if rows[i].ActiveAt(now) {
				return models.ErrLeaseHeld
			}
		}

		// Insert a fresh row rather than reviving an expired one; prior rows
		// stay in place as the resource's grant history.
		lease = &models.Lease{
			Resource:  resource,
			Holder:    holder,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		return tx.Create(lease).Error
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	telemetry.SetAttributes(ctx, telemetry.LeaseID(lease.ID))
	return lease, nil
}

func (s *GORMStore) RenewLease(ctx context.Context, resource, holder string, ttl time.Duration) (*models.Lease, error) {
	ctx, span := telemetry.StartLeaseSpan(ctx, "renew", resource,
		telemetry.Holder(holder),
		telemetry.LeaseTTL(ttl),
	)
	defer span.End()

	var lease *models.Lease

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockResource(tx, resource); err != nil {
			return err
		}

		now, err := s.now(tx)
		if err != nil {
			return err
		}

		var rows []models.Lease
		if err := s.locking(tx).Where("resource = ?", resource).Order("id").Find(&rows).Error; err != nil {
			return err
		}

		var active *models.Lease
		for i := range rows {
			if rows[i].ActiveAt(now) {
				active = &rows[i]
				break
			}
		}

		if active != nil {
			if active.Holder != holder {
				return models.ErrLeaseHeld
			}
			renewedAt := now
			active.RenewedAt = &renewedAt
			active.ExpiresAt = now.Add(ttl)
			if err := tx.Model(active).Updates(map[string]any{
				"renewed_at": active.RenewedAt,
				"expires_at": active.ExpiresAt,
			}).Error; err != nil {
				return err
			}
			lease = active
			return nil
		}

		// No active lease. A holder whose lease lapsed without release gets
		// a conflict rather than a silent re-grant; it must re-acquire and
		// must not assume continuity of ownership.
		for i := range rows {
			if rows[i].ReleasedAt == nil && rows[i].Holder == holder {
				return models.ErrLeaseExpired
			}
		}
		return models.ErrLeaseNotFound
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	return lease, nil
}

func (s *GORMStore) ReleaseLease(ctx context.Context, id uint) (*models.Lease, error) {
	ctx, span := telemetry.StartLeaseSpan(ctx, "release", "", telemetry.LeaseID(id))
	defer span.End()

	var lease *models.Lease

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Lease
		if err := s.locking(tx).Where("id = ?", id).First(&row).Error; err != nil {
			return convertNotFoundError(err, models.ErrLeaseNotFound)
		}

		// Released rows are terminal; a second release is a no-op.
		if row.ReleasedAt == nil {
			now, err := s.now(tx)
			if err != nil {
				return err
			}
			releasedAt := now
			row.ReleasedAt = &releasedAt
			if err := tx.Model(&row).Update("released_at", row.ReleasedAt).Error; err != nil {
				return err
			}
		}

		lease = &row
		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	telemetry.SetAttributes(ctx, telemetry.Resource(lease.Resource))
	return lease, nil
}

func (s *GORMStore) ReleaseHolderLease(ctx context.Context, resource, holder string) (*models.Lease, error) {
	ctx, span := telemetry.StartLeaseSpan(ctx, "release", resource, telemetry.Holder(holder))
	defer span.End()

	var lease *models.Lease

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockResource(tx, resource); err != nil {
			return err
		}

		now, err := s.now(tx)
		if err != nil {
			return err
		}

		var rows []models.Lease
		if err := s.locking(tx).Where("resource = ?", resource).Order("id").Find(&rows).Error; err != nil {
			return err
		}

		for i := range rows {
			if rows[i].ActiveAt(now) && rows[i].Holder == holder {
				releasedAt := now
				rows[i].ReleasedAt = &releasedAt
				if err := tx.Model(&rows[i]).Update("released_at", rows[i].ReleasedAt).Error; err != nil {
					return err
				}
				lease = &rows[i]
				return nil
			}
		}

		// Never touch another holder's active lease.
		return models.ErrLeaseNotFound
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	telemetry.SetAttributes(ctx, telemetry.LeaseID(lease.ID))
	return lease, nil
}

func (s *GORMStore) GetLease(ctx context.Context, id uint) (*models.Lease, error) {
	var lease models.Lease
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&lease).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrLeaseNotFound)
	}
	return &lease, nil
}

func (s *GORMStore) ListLeases(ctx context.Context, state models.LeaseState) ([]*models.Lease, error) {
	ctx, span := telemetry.StartLeaseSpan(ctx, "list", "", telemetry.LeaseState(string(state)))
	defer span.End()

	var leases []*models.Lease

	// Read the clock and the rows in one transaction so every row is
	// classified against the same instant.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now, err := s.now(tx)
		if err != nil {
			return err
		}

		var rows []*models.Lease
		if err := tx.Order("id").Find(&rows).Error; err != nil {
			return err
		}

		leases = make([]*models.Lease, 0, len(rows))
		for _, l := range rows {
			if l.MatchesState(state, now) {
				leases = append(leases, l)
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	return leases, nil
}
