package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/totegamma/vidcatalog/internal/domain"
)

// VideoRepository defines storage operations for catalog records.
type VideoRepository interface {
	Query(ctx context.Context, stages []domain.Stage, page domain.PageRequest) (domain.Page[domain.Video], error)
	Get(ctx context.Context, id uuid.UUID) (domain.Video, error)
	Create(ctx context.Context, video domain.Video) (domain.Video, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields domain.VideoFields) (domain.Video, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// OwnerRepository resolves owner display fields for detail views.
type OwnerRepository interface {
	GetProjection(ctx context.Context, ownerID uuid.UUID) (domain.OwnerProjection, error)
}

// ObjectStore holds the binary assets referenced by catalog records.
type ObjectStore interface {
	Upload(ctx context.Context, localPath string) (domain.Asset, error)
	Delete(ctx context.Context, ref string) error
}

// EventPublisher broadcasts committed catalog mutations.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
