// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kitkade/kitkade-backend/models"
	"github.com/kitkade/kitkade-backend/utils"
	"gorm.io/gorm"
)

// OTPSessionRepositoryImpl implements OTPSessionRepository interface
type OTPSessionRepositoryImpl struct {
	*BaseRepository[models.OTPSession, models.OTPSessionFilter]
}

// NewOTPSessionRepository creates a new OTP session repository
func NewOTPSessionRepository(db *gorm.DB) OTPSessionRepository {
	return &OTPSessionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.OTPSession, models.OTPSessionFilter](db),
	}
}

// LatestActive retrieves the most recent unverified, unexpired session for a
// phone and session id.
func (r *OTPSessionRepositoryImpl) LatestActive(ctx context.Context, phone string, sessionID uuid.UUID) (*models.OTPSession, error) {
	db := r.getDB(ctx)

	var session models.OTPSession
	err := db.Where("phone = ? AND session_id = ? AND verified = ? AND expires_at > ?",
		phone, sessionID, false, utils.UTCNow()).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

// LatestByPhone retrieves the most recently created session for a phone,
// regardless of verification or expiry state. Used for cooldown checks.
func (r *OTPSessionRepositoryImpl) LatestByPhone(ctx context.Context, phone string) (*models.OTPSession, error) {
	db := r.getDB(ctx)

	var session models.OTPSession
	err := db.Where("phone = ?", phone).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

// CountCreatedSince counts sessions issued for a phone after the given time.
func (r *OTPSessionRepositoryImpl) CountCreatedSince(ctx context.Context, phone string, since time.Time) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.OTPSession{}).
		Where("phone = ? AND created_at > ?", phone, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// IncrementAttempts bumps the attempt counter with a conditional update so
// that concurrent verifications cannot push it past max_attempts. Returns the
// session as it stands after the update.
func (r *OTPSessionRepositoryImpl) IncrementAttempts(ctx context.Context, id uint) (*models.OTPSession, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.OTPSession{}).
		Where("id = ? AND attempts < max_attempts", id).
		Update("attempts", gorm.Expr("attempts + 1")).Error
	if err != nil {
		return nil, err
	}

	var session models.OTPSession
	err = db.First(&session, id).Error
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// MarkVerified flips the session to verified. A verified session is inert for
// future verification lookups.
func (r *OTPSessionRepositoryImpl) MarkVerified(ctx context.Context, id uint, verifiedAt time.Time) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.OTPSession{}).
		Where("id = ? AND verified = ?", id, false).
		Updates(map[string]any{
			"verified":    true,
			"verified_at": verifiedAt,
		}).Error

	return err
}

// Delete removes a session row. Only used as the compensating action when SMS
// dispatch fails after the row was created.
func (r *OTPSessionRepositoryImpl) Delete(ctx context.Context, id uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Delete(&models.OTPSession{}, id).Error
	return err
}

// applyFilter applies filter criteria to a GORM query
func (r *OTPSessionRepositoryImpl) applyFilter(query *gorm.DB, filter models.OTPSessionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}

	if filter.SessionID != nil {
		query = query.Where("session_id = ?", *filter.SessionID)
	}

	if filter.Phone != nil {
		query = query.Where("phone = ?", *filter.Phone)
	}

	if filter.Verified != nil {
		query = query.Where("verified = ?", *filter.Verified)
	}

	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}

	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}

	if filter.ExpiresAfter != nil {
		query = query.Where("expires_at > ?", *filter.ExpiresAfter)
	}

	// Special handling for IsActive - filter unverified, unexpired sessions
	if filter.IsActive != nil && *filter.IsActive {
		query = query.Where("verified = ? AND expires_at > ?", false, utils.UTCNow())
	}

	return query
}

// ByFilter retrieves OTP sessions based on filter criteria
func (r *OTPSessionRepositoryImpl) ByFilter(ctx context.Context, filter models.OTPSessionFilter, orderBy string, limit, offset int) ([]*models.OTPSession, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.OTPSession{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var sessions []*models.OTPSession
	err := query.Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

// Count returns the number of OTP sessions matching the filter
func (r *OTPSessionRepositoryImpl) Count(ctx context.Context, filter models.OTPSessionFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.OTPSession{})

	query = r.applyFilter(query, filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any OTP session matching the filter exists
func (r *OTPSessionRepositoryImpl) Exists(ctx context.Context, filter models.OTPSessionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
