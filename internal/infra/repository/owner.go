package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/totegamma/vidcatalog/internal/domain"
	"github.com/totegamma/vidcatalog/internal/infra/database/models"
	"github.com/totegamma/vidcatalog/internal/logger"
	"github.com/totegamma/vidcatalog/internal/usecase"
)

var _ usecase.OwnerRepository = (*OwnerRepository)(nil)

const (
	ownerLocalTTL  = time.Minute
	ownerSharedTTL = 5 * time.Minute
)

// OwnerRepository reads owner projections through an in-process cache and an
// optional memcached layer. Owners are never written here, so entries only expire.
type OwnerRepository struct {
	db    *gorm.DB
	mc    *memcache.Client
	cache *cache.Cache
	log   *logger.Logger
}

// NewOwnerRepository accepts a nil memcache client.
func NewOwnerRepository(db *gorm.DB, mc *memcache.Client, log *logger.Logger) *OwnerRepository {
	return &OwnerRepository{
		db:    db,
		mc:    mc,
		cache: cache.New(ownerLocalTTL, 2*ownerLocalTTL),
		log:   log.With("repository", "OwnerRepository"),
	}
}

func ownerCacheKey(id uuid.UUID) string {
	return "owner:" + id.String()
}

func (r *OwnerRepository) GetProjection(ctx context.Context, ownerID uuid.UUID) (domain.OwnerProjection, error) {
	key := ownerCacheKey(ownerID)

	if cached, found := r.cache.Get(key); found {
		return cached.(domain.OwnerProjection), nil
	}

	if r.mc != nil {
		item, err := r.mc.Get(key)
		if err == nil {
			var owner domain.OwnerProjection
			if err := json.Unmarshal(item.Value, &owner); err == nil {
				r.cache.Set(key, owner, cache.DefaultExpiration)
				return owner, nil
			}
		} else if !errors.Is(err, memcache.ErrCacheMiss) {
			r.log.Warn("memcached get failed", "key", key, "error", err)
		}
	}

	var row models.User
	err := r.db.WithContext(ctx).
		Select("id", "username", "avatar").
		Where("id = ?", ownerID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.OwnerProjection{}, domain.NotFoundError("owner")
		}
		return domain.OwnerProjection{}, errors.Wrap(err, "OwnerRepository.GetProjection")
	}

	owner := domain.OwnerProjection{
		ID:       row.ID,
		Username: row.Username,
		Avatar:   row.Avatar,
	}

	r.cache.Set(key, owner, cache.DefaultExpiration)
	if r.mc != nil {
		if value, err := json.Marshal(owner); err == nil {
			err = r.mc.Set(&memcache.Item{Key: key, Value: value, Expiration: int32(ownerSharedTTL.Seconds())})
			if err != nil {
				r.log.Warn("memcached set failed", "key", key, "error", err)
			}
		}
	}

	return owner, nil
}
