package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/vidcatalog/internal/domain"
	"github.com/totegamma/vidcatalog/internal/infra/database/models"
	"github.com/totegamma/vidcatalog/internal/usecase"
)

var _ usecase.VideoRepository = (*VideoRepository)(nil)

// sortColumns maps client sort keys to columns. Anything else is rejected.
var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"title":       "title",
	"description": "description",
	"duration":    "duration",
	"views":       "views",
	"isPublished": "is_published",
	"id":          "id",
	"owner":       "owner_id",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type VideoRepository struct {
	db *gorm.DB
}

func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) Query(ctx context.Context, stages []domain.Stage, page domain.PageRequest) (domain.Page[domain.Video], error) {

	var filters []func(*gorm.DB) *gorm.DB
	var orders []clause.OrderByColumn

	for _, stage := range stages {
		switch stage.Kind {
		case domain.StageOwner:
			ownerID := stage.OwnerID
			filters = append(filters, func(tx *gorm.DB) *gorm.DB {
				return tx.Where("owner_id = ?", ownerID)
			})
		case domain.StageText:
			pattern := "%" + likeEscaper.Replace(strings.ToLower(stage.Text)) + "%"
			filters = append(filters, func(tx *gorm.DB) *gorm.DB {
				return tx.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
			})
		case domain.StagePublished:
			published := stage.Published
			filters = append(filters, func(tx *gorm.DB) *gorm.DB {
				return tx.Where("is_published = ?", published)
			})
		case domain.StageSort:
			column, ok := sortColumns[stage.SortField]
			if !ok {
				return domain.Page[domain.Video]{}, domain.InvalidArgumentError("unsupported sort field: " + stage.SortField)
			}
			orders = append(orders, clause.OrderByColumn{
				Column: clause.Column{Name: column},
				Desc:   stage.SortDir == domain.SortDesc,
			})
		default:
			return domain.Page[domain.Video]{}, errors.Errorf("unknown stage kind %s", stage.Kind)
		}
	}

	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Scopes(filters...).
		Count(&total).Error
	if err != nil {
		return domain.Page[domain.Video]{}, errors.Wrap(err, "VideoRepository.Query count")
	}

	find := r.db.WithContext(ctx).Scopes(filters...)
	for _, order := range orders {
		find = find.Order(order)
	}

	var rows []models.Video
	err = find.
		Order("id").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error
	if err != nil {
		return domain.Page[domain.Video]{}, errors.Wrap(err, "VideoRepository.Query find")
	}

	items := make([]domain.Video, 0, len(rows))
	for _, row := range rows {
		items = append(items, toDomainVideo(row))
	}

	return domain.NewPage(items, page, total), nil
}

func (r *VideoRepository) Get(ctx context.Context, id uuid.UUID) (domain.Video, error) {
	var row models.Video
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Video{}, domain.NotFoundError("video")
		}
		return domain.Video{}, errors.Wrap(err, "VideoRepository.Get")
	}
	return toDomainVideo(row), nil
}

func (r *VideoRepository) Create(ctx context.Context, video domain.Video) (domain.Video, error) {
	if video.ID == uuid.Nil {
		video.ID = uuid.New()
	}

	row := models.Video{
		ID:          video.ID,
		Title:       video.Title,
		Description: video.Description,
		VideoFile:   video.VideoFile,
		Thumbnail:   video.Thumbnail,
		Duration:    video.Duration,
		Views:       video.Views,
		IsPublished: video.IsPublished,
		OwnerID:     video.OwnerID,
	}

	if err := r.db.WithContext(ctx).Omit("Owner").Create(&row).Error; err != nil {
		return domain.Video{}, errors.Wrap(err, "VideoRepository.Create")
	}

	return toDomainVideo(row), nil
}

// UpdateFields writes only the non-nil fields and returns the stored record.
func (r *VideoRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields domain.VideoFields) (domain.Video, error) {

	updates := map[string]any{}
	if fields.Title != nil {
		updates["title"] = *fields.Title
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if fields.Thumbnail != nil {
		updates["thumbnail"] = *fields.Thumbnail
	}
	if fields.IsPublished != nil {
		updates["is_published"] = *fields.IsPublished
	}
	if len(updates) == 0 {
		return r.Get(ctx, id)
	}
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return domain.Video{}, errors.Wrap(result.Error, "VideoRepository.UpdateFields")
	}
	if result.RowsAffected == 0 {
		return domain.Video{}, domain.NotFoundError("video")
	}

	return r.Get(ctx, id)
}

func (r *VideoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Video{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "VideoRepository.Delete")
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError("video")
	}
	return nil
}

func toDomainVideo(row models.Video) domain.Video {
	return domain.Video{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		VideoFile:   row.VideoFile,
		Thumbnail:   row.Thumbnail,
		Duration:    row.Duration,
		Views:       row.Views,
		IsPublished: row.IsPublished,
		OwnerID:     row.OwnerID,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
