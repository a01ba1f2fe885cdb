package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/notification"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/shared"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormNotificationRepository implements notification.Repository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// FindByID finds a notification by its ID
func (r *GormNotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	var model models.NotificationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns notifications newest first
func (r *GormNotificationRepository) FindAll(ctx context.Context, filter notification.ListFilter) ([]notification.Notification, error) {
	query := r.db.WithContext(ctx).Model(&models.NotificationModel{})
	if filter.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var notificationModels []models.NotificationModel
	if err := query.Order("created_at DESC").Order("id DESC").Find(&notificationModels).Error; err != nil {
		return nil, err
	}
	result := make([]notification.Notification, len(notificationModels))
	for i := range notificationModels {
		result[i] = *notificationModels[i].ToDomain()
	}
	return result, nil
}

// Save creates or updates a notification
func (r *GormNotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	return r.db.WithContext(ctx).Save(models.NotificationModelFromDomain(n)).Error
}

// MarkAllRead flags every unread notification
func (r *GormNotificationRepository) MarkAllRead(ctx context.Context) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.NotificationModel{}).
		Where("is_read = ?", false).
		Updates(map[string]interface{}{
			"is_read":    true,
			"read_at":    now,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Ensure GormNotificationRepository implements notification.Repository
var _ notification.Repository = (*GormNotificationRepository)(nil)
