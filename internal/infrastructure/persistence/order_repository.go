package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/order"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/shared"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var model models.OrderModel
	if err := preloadItems(r.db.WithContext(ctx)).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrderNumber finds an order by order number
func (r *GormOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	var model models.OrderModel
	if err := preloadItems(r.db.WithContext(ctx)).
		Where("order_number = ?", orderNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds orders with filtering
func (r *GormOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]order.Order, error) {
	var orderModels []models.OrderModel
	query := r.applyFilter(preloadItems(r.db.WithContext(ctx)).Model(&models.OrderModel{}), filter)

	if err := query.Find(&orderModels).Error; err != nil {
		return nil, err
	}
	orders := make([]order.Order, len(orderModels))
	for i := range orderModels {
		orders[i] = *orderModels[i].ToDomain()
	}
	return orders, nil
}

// Count counts orders with optional filters
func (r *GormOrderRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts the order and its items in one transaction
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	model := models.OrderModelFromDomain(o)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrAlreadyExists
			}
			return err
		}
		if len(model.Items) == 0 {
			return nil
		}
		for i := range model.Items {
			model.Items[i].OrderID = model.ID
		}
		return tx.Create(&model.Items).Error
	})
}

// SaveWithLock saves the order header with optimistic locking (version check)
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, o *order.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.OrderModel
		if err := tx.Select("version").First(&current, "id = ?", o.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		if current.Version != o.Version {
			return shared.ErrConcurrencyConflict
		}

		nextVersion := o.Version + 1
		updatedAt := time.Now()

		result := tx.Model(&models.OrderModel{}).
			Where("id = ? AND version = ?", o.ID, current.Version).
			Updates(map[string]interface{}{
				"status":           o.Status,
				"customer_name":    o.Customer.Name,
				"customer_email":   o.Customer.Email,
				"customer_phone":   o.Customer.Phone,
				"shipping_address": o.ShippingAddress,
				"total":            o.Total,
				"notes":            o.Notes,
				"version":          nextVersion,
				"updated_at":       updatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		o.Version = nextVersion
		o.UpdatedAt = updatedAt
		return nil
	})
}

// MarkItemFulfilled flips the item for productID to fulfilled. The update is
// conditional on fulfilled = false and on the order not being terminal, so of
// any number of concurrent callers exactly one observes true.
func (r *GormOrderRepository) MarkItemFulfilled(ctx context.Context, orderID uuid.UUID, productID int64, at time.Time) (bool, error) {
	var changed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eligible := tx.Model(&models.OrderModel{}).
			Select("id").
			Where("id = ? AND status NOT IN ?", orderID, []order.Status{order.StatusDelivered, order.StatusCancelled})

		result := tx.Model(&models.OrderItemModel{}).
			Where("order_id = ? AND product_id = ? AND fulfilled = ?", orderID, productID, false).
			Where("order_id IN (?)", eligible).
			Updates(map[string]interface{}{
				"fulfilled":    true,
				"fulfilled_at": at,
				"updated_at":   at,
			})
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			var item models.OrderItemModel
			if err := tx.Select("fulfilled").
				Where("order_id = ? AND product_id = ?", orderID, productID).
				First(&item).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return order.ErrItemNotFound
				}
				return err
			}
			if item.Fulfilled {
				return nil
			}
			return order.ErrNotEligible
		}

		changed = true
		return tx.Model(&models.OrderModel{}).
			Where("id = ?", orderID).
			Updates(map[string]interface{}{
				"version":    gorm.Expr("version + 1"),
				"updated_at": at,
			}).Error
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// applyFilter applies filter options with pagination and ordering
func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	return query.Order(sortClause(filter.OrderBy, filter.OrderDir, orderSortColumns, "created_at"))
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormOrderRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "order_number":
			query = query.Where("order_number = ?", value)
		}
	}
	return query
}

// Ensure GormOrderRepository implements order.Repository
var _ order.Repository = (*GormOrderRepository)(nil)
