package usecase

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/vidcatalog/internal/domain"
	"github.com/totegamma/vidcatalog/internal/logger"
)

var tracer = otel.Tracer("usecase")

type PublishInput struct {
	Title          string
	Description    string
	Thumbnail      string
	VideoLocalPath string
	OwnerID        uuid.UUID
}

type UpdateInput struct {
	VideoID     string
	Title       string
	Description string
	// Thumbnail is optional; empty keeps the stored reference.
	Thumbnail string
	ActorID   uuid.UUID
}

type VideoUsecase struct {
	repo   VideoRepository
	owners OwnerRepository
	store  ObjectStore
	events EventPublisher
	log    *logger.Logger
	now    func() time.Time
}

// NewVideoUsecase wires the catalog lifecycle. events may be nil.
func NewVideoUsecase(
	repo VideoRepository,
	owners OwnerRepository,
	store ObjectStore,
	events EventPublisher,
	log *logger.Logger,
) *VideoUsecase {
	return &VideoUsecase{
		repo:   repo,
		owners: owners,
		store:  store,
		events: events,
		log:    log.With("usecase", "VideoUsecase"),
		now:    time.Now,
	}
}

func (uc *VideoUsecase) List(ctx context.Context, params ListParams) (domain.Page[domain.Video], error) {
	ctx, span := tracer.Start(ctx, "Video.Usecase.List")
	defer span.End()

	stages, err := BuildStages(params)
	if err != nil {
		span.RecordError(err)
		return domain.Page[domain.Video]{}, err
	}

	page := domain.PageRequest{Page: params.Page, PageSize: params.Limit}
	if page.Page == 0 {
		page.Page = domain.DefaultPage
	}
	if page.PageSize == 0 {
		page.PageSize = domain.DefaultPageSize
	}
	if page.Page < 0 || page.PageSize < 0 {
		return domain.Page[domain.Video]{}, domain.InvalidArgumentError("page and limit must be positive")
	}

	result, err := uc.repo.Query(ctx, stages, page)
	if err != nil {
		span.RecordError(err)
		return domain.Page[domain.Video]{}, errors.Wrap(err, "VideoUsecase.List")
	}
	return result, nil
}

func (uc *VideoUsecase) Publish(ctx context.Context, input PublishInput) (domain.Video, error) {
	ctx, span := tracer.Start(ctx, "Video.Usecase.Publish")
	defer span.End()

	if isBlank(input.Title) || isBlank(input.Description) || isBlank(input.Thumbnail) {
		return domain.Video{}, domain.InvalidArgumentError("title, description, and thumbnail URL are required")
	}
	if input.VideoLocalPath == "" {
		return domain.Video{}, domain.InvalidArgumentError("video file is required")
	}

	asset, err := uc.store.Upload(ctx, input.VideoLocalPath)
	if err != nil {
		span.RecordError(err)
		return domain.Video{}, domain.UploadFailedError(err)
	}
	if asset.Ref == "" {
		return domain.Video{}, domain.UploadFailedError(errors.New("object store returned an empty reference"))
	}

	video, err := uc.repo.Create(ctx, domain.Video{
		ID:          uuid.New(),
		Title:       input.Title,
		Description: input.Description,
		VideoFile:   asset.Ref,
		Thumbnail:   input.Thumbnail,
		Duration:    roundDuration(asset.Duration),
		IsPublished: true,
		OwnerID:     input.OwnerID,
	})
	if err != nil {
		span.RecordError(err)
		// the upload is not referenced by any record yet
		uc.deleteAsset(ctx, asset.Ref, "video")
		return domain.Video{}, errors.Wrap(err, "VideoUsecase.Publish")
	}

	span.SetAttributes(attribute.String("VideoID", video.ID.String()))
	uc.publish(ctx, domain.EventVideoPublished, video)
	return video, nil
}

func (uc *VideoUsecase) GetDetail(ctx context.Context, rawID string) (domain.VideoDetail, error) {
	ctx, span := tracer.Start(ctx, "Video.Usecase.GetDetail")
	defer span.End()

	id, err := uuid.Parse(rawID)
	if err != nil {
		return domain.VideoDetail{}, domain.NotFoundError("video")
	}

	video, err := uc.repo.Get(ctx, id)
	if err != nil {
		return domain.VideoDetail{}, err
	}

	owner, err := uc.owners.GetProjection(ctx, video.OwnerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.VideoDetail{}, domain.NotFoundError("video")
		}
		span.RecordError(err)
		return domain.VideoDetail{}, errors.Wrap(err, "VideoUsecase.GetDetail")
	}

	return domain.VideoDetail{Video: video, OwnerDetails: owner}, nil
}

func (uc *VideoUsecase) Update(ctx context.Context, input UpdateInput) (domain.Video, error) {
	ctx, span := tracer.Start(ctx, "Video.Usecase.Update")
	defer span.End()

	id, err := uuid.Parse(input.VideoID)
	if err != nil {
		return domain.Video{}, domain.InvalidArgumentError("invalid video id")
	}
	if isBlank(input.Title) || isBlank(input.Description) {
		return domain.Video{}, domain.InvalidArgumentError("title and description are required")
	}

	video, err := uc.authorize(ctx, id, input.ActorID, "update this video")
	if err != nil {
		return domain.Video{}, err
	}

	fields := domain.VideoFields{
		Title:       &input.Title,
		Description: &input.Description,
	}

	if !isBlank(input.Thumbnail) && input.Thumbnail != video.Thumbnail {
		// not compensated: if the update below fails the record keeps the deleted reference
		uc.deleteAsset(ctx, video.Thumbnail, "thumbnail")
		fields.Thumbnail = &input.Thumbnail
	}

	updated, err := uc.repo.UpdateFields(ctx, id, fields)
	if err != nil {
		span.RecordError(err)
		return domain.Video{}, errors.Wrap(err, "VideoUsecase.Update")
	}

	uc.publish(ctx, domain.EventVideoUpdated, updated)
	return updated, nil
}

func (uc *VideoUsecase) Delete(ctx context.Context, rawID string, actorID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "Video.Usecase.Delete")
	defer span.End()

	id, err := uuid.Parse(rawID)
	if err != nil {
		return domain.InvalidArgumentError("invalid video id")
	}

	video, err := uc.authorize(ctx, id, actorID, "delete this video")
	if err != nil {
		return err
	}

	if err := uc.repo.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "VideoUsecase.Delete")
	}

	uc.deleteAsset(ctx, video.VideoFile, "video")
	uc.deleteAsset(ctx, video.Thumbnail, "thumbnail")

	uc.publish(ctx, domain.EventVideoDeleted, video)
	return nil
}

func (uc *VideoUsecase) TogglePublish(ctx context.Context, rawID string, actorID uuid.UUID) (bool, error) {
	ctx, span := tracer.Start(ctx, "Video.Usecase.TogglePublish")
	defer span.End()

	id, err := uuid.Parse(rawID)
	if err != nil {
		return false, domain.InvalidArgumentError("invalid video id")
	}

	video, err := uc.authorize(ctx, id, actorID, "change the publish status")
	if err != nil {
		return false, err
	}

	published := !video.IsPublished
	updated, err := uc.repo.UpdateFields(ctx, id, domain.VideoFields{IsPublished: &published})
	if err != nil {
		span.RecordError(err)
		return false, errors.Wrap(err, "VideoUsecase.TogglePublish")
	}

	uc.publish(ctx, domain.EventVideoVisibility, updated)
	return updated.IsPublished, nil
}

// authorize loads the record and checks that actorID owns it.
func (uc *VideoUsecase) authorize(ctx context.Context, id, actorID uuid.UUID, action string) (domain.Video, error) {
	video, err := uc.repo.Get(ctx, id)
	if err != nil {
		return domain.Video{}, err
	}
	if video.OwnerID != actorID {
		return domain.Video{}, domain.ForbiddenError("you are not authorized to " + action)
	}
	return video, nil
}

// deleteAsset removes a stored object. Failures are logged and dropped.
func (uc *VideoUsecase) deleteAsset(ctx context.Context, ref, kind string) {
	if ref == "" {
		return
	}
	if err := uc.store.Delete(ctx, ref); err != nil {
		uc.log.Warn("asset cleanup failed", "kind", kind, "ref", ref, "error", err)
	}
}

func (uc *VideoUsecase) publish(ctx context.Context, eventType string, video domain.Video) {
	if uc.events == nil {
		return
	}
	err := uc.events.Publish(ctx, domain.Event{
		Type:        eventType,
		VideoID:     video.ID,
		OwnerID:     video.OwnerID,
		IsPublished: video.IsPublished,
		At:          uc.now(),
	})
	if err != nil {
		uc.log.Warn("event publish failed", "type", eventType, "video_id", video.ID, "error", err)
	}
}

// maxDurationSeconds bounds probed durations well inside int64.
const maxDurationSeconds = 1 << 40

func roundDuration(seconds float64) int64 {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	if seconds >= maxDurationSeconds {
		return maxDurationSeconds
	}
	return int64(math.Round(seconds))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
