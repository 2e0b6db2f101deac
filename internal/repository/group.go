package repository

import (
	"context"

	"penfeed/internal/models"
	"penfeed/internal/observability"

	"gorm.io/gorm"
)

// GroupRepository defines persistence operations for groups.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id uint) (*models.Group, error)
	GetBySlug(ctx context.Context, slug string) (*models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id uint) error
}

type groupRepository struct {
	db      *gorm.DB
	metrics *observability.DatabaseMetrics
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db, metrics: observability.NewDatabaseMetrics("groups")}
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	defer r.metrics.TrackQuery("create")()

	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A group with this slug already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (*models.Group, error) {
	defer r.metrics.TrackQuery("get_by_id")()

	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
		return nil, lookupError(err, "Group", id)
	}
	return &group, nil
}

func (r *groupRepository) GetBySlug(ctx context.Context, slug string) (*models.Group, error) {
	defer r.metrics.TrackQuery("get_by_slug")()

	var group models.Group
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&group).Error; err != nil {
		return nil, lookupError(err, "Group", slug)
	}
	return &group, nil
}

// List returns every group ordered by title.
func (r *groupRepository) List(ctx context.Context) ([]models.Group, error) {
	defer r.metrics.TrackQuery("list")()

	var groups []models.Group
	if err := r.db.WithContext(ctx).Order("title ASC").Order("id ASC").Find(&groups).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return groups, nil
}

func (r *groupRepository) Update(ctx context.Context, group *models.Group) error {
	defer r.metrics.TrackQuery("update")()

	err := r.db.WithContext(ctx).Model(group).
		Select("title", "description").
		Updates(group).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes the group; its posts stay and lose their group.
func (r *groupRepository) Delete(ctx context.Context, id uint) error {
	defer r.metrics.TrackQuery("delete")()

	res := r.db.WithContext(ctx).Delete(&models.Group{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Group", id)
	}
	return nil
}
