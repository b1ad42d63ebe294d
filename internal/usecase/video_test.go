package usecase

import (
	"context"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/totegamma/vidcatalog/internal/domain"
	"github.com/totegamma/vidcatalog/internal/logger"
)

// --- mocks ---

type callLog []string

func (l *callLog) add(call string) { *l = append(*l, call) }

type mockVideoRepo struct {
	videos    map[uuid.UUID]domain.Video
	calls     *callLog
	createErr error
	updateErr error
	clock     time.Time
}

func newMockVideoRepo(calls *callLog) *mockVideoRepo {
	return &mockVideoRepo{
		videos: map[uuid.UUID]domain.Video{},
		calls:  calls,
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *mockVideoRepo) Query(ctx context.Context, stages []domain.Stage, page domain.PageRequest) (domain.Page[domain.Video], error) {
	var items []domain.Video
	for _, v := range m.videos {
		if matchStages(v, stages) {
			items = append(items, v)
		}
	}
	for _, s := range stages {
		if s.Kind != domain.StageSort {
			continue
		}
		sort.Slice(items, func(i, j int) bool {
			var less bool
			switch s.SortField {
			case "title":
				less = items[i].Title < items[j].Title
			default:
				less = items[i].CreatedAt.Before(items[j].CreatedAt)
			}
			if s.SortDir == domain.SortDesc {
				return !less
			}
			return less
		})
	}
	total := int64(len(items))
	start := page.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + page.PageSize
	if end > len(items) {
		end = len(items)
	}
	return domain.NewPage(items[start:end], page, total), nil
}

func matchStages(v domain.Video, stages []domain.Stage) bool {
	for _, s := range stages {
		switch s.Kind {
		case domain.StageOwner:
			if v.OwnerID != s.OwnerID {
				return false
			}
		case domain.StageText:
			q := strings.ToLower(s.Text)
			if !strings.Contains(strings.ToLower(v.Title), q) && !strings.Contains(strings.ToLower(v.Description), q) {
				return false
			}
		case domain.StagePublished:
			if v.IsPublished != s.Published {
				return false
			}
		}
	}
	return true
}

func (m *mockVideoRepo) Get(ctx context.Context, id uuid.UUID) (domain.Video, error) {
	v, ok := m.videos[id]
	if !ok {
		return domain.Video{}, domain.NotFoundError("video")
	}
	return v, nil
}

func (m *mockVideoRepo) Create(ctx context.Context, video domain.Video) (domain.Video, error) {
	m.calls.add("repo.create")
	if m.createErr != nil {
		return domain.Video{}, m.createErr
	}
	m.clock = m.clock.Add(time.Minute)
	video.CreatedAt = m.clock
	video.UpdatedAt = m.clock
	m.videos[video.ID] = video
	return video, nil
}

func (m *mockVideoRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields domain.VideoFields) (domain.Video, error) {
	m.calls.add("repo.update")
	if m.updateErr != nil {
		return domain.Video{}, m.updateErr
	}
	v, ok := m.videos[id]
	if !ok {
		return domain.Video{}, domain.NotFoundError("video")
	}
	if fields.Title != nil {
		v.Title = *fields.Title
	}
	if fields.Description != nil {
		v.Description = *fields.Description
	}
	if fields.Thumbnail != nil {
		v.Thumbnail = *fields.Thumbnail
	}
	if fields.IsPublished != nil {
		v.IsPublished = *fields.IsPublished
	}
	m.videos[id] = v
	return v, nil
}

func (m *mockVideoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.calls.add("repo.delete")
	if _, ok := m.videos[id]; !ok {
		return domain.NotFoundError("video")
	}
	delete(m.videos, id)
	return nil
}

type mockOwnerRepo struct {
	owners map[uuid.UUID]domain.OwnerProjection
}

func (m *mockOwnerRepo) GetProjection(ctx context.Context, ownerID uuid.UUID) (domain.OwnerProjection, error) {
	o, ok := m.owners[ownerID]
	if !ok {
		return domain.OwnerProjection{}, domain.NotFoundError("owner")
	}
	return o, nil
}

type mockStore struct {
	calls     *callLog
	asset     domain.Asset
	uploadErr error
	deleteErr error
	uploads   []string
	deleted   []string
}

func (m *mockStore) Upload(ctx context.Context, localPath string) (domain.Asset, error) {
	m.calls.add("store.upload")
	m.uploads = append(m.uploads, localPath)
	if m.uploadErr != nil {
		return domain.Asset{}, m.uploadErr
	}
	return m.asset, nil
}

func (m *mockStore) Delete(ctx context.Context, ref string) error {
	m.calls.add("store.delete:" + ref)
	m.deleted = append(m.deleted, ref)
	return m.deleteErr
}

type mockPublisher struct {
	events []domain.Event
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.Event) error {
	m.events = append(m.events, event)
	return nil
}

type fixture struct {
	uc     *VideoUsecase
	repo   *mockVideoRepo
	store  *mockStore
	events *mockPublisher
	calls  *callLog
	owner  uuid.UUID
}

func newFixture() *fixture {
	calls := &callLog{}
	owner := uuid.New()
	repo := newMockVideoRepo(calls)
	owners := &mockOwnerRepo{owners: map[uuid.UUID]domain.OwnerProjection{
		owner: {ID: owner, Username: "alice", Avatar: "https://cdn.example.com/alice.png"},
	}}
	store := &mockStore{calls: calls, asset: domain.Asset{Ref: "v1", Duration: 61.7}}
	events := &mockPublisher{}
	uc := NewVideoUsecase(repo, owners, store, events, logger.Nop())
	return &fixture{uc: uc, repo: repo, store: store, events: events, calls: calls, owner: owner}
}

func (f *fixture) publish(t *testing.T, title string) domain.Video {
	t.Helper()
	video, err := f.uc.Publish(context.Background(), PublishInput{
		Title:          title,
		Description:    "D",
		Thumbnail:      "u1",
		VideoLocalPath: "/tmp/video.mp4",
		OwnerID:        f.owner,
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	return video
}

// --- tests ---

func TestPublishCreatesPublishedRecord(t *testing.T) {
	f := newFixture()

	video := f.publish(t, "T")

	if video.Duration != 62 {
		t.Fatalf("expected duration 62 got %d", video.Duration)
	}
	if !video.IsPublished {
		t.Fatalf("expected new video to be published")
	}
	if video.OwnerID != f.owner || video.VideoFile != "v1" || video.Thumbnail != "u1" {
		t.Fatalf("unexpected video %+v", video)
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != domain.EventVideoPublished {
		t.Fatalf("expected a published event got %+v", f.events.events)
	}
}

func TestPublishMissingThumbnail(t *testing.T) {
	f := newFixture()

	_, err := f.uc.Publish(context.Background(), PublishInput{
		Title:          "T",
		Description:    "D",
		VideoLocalPath: "/tmp/video.mp4",
		OwnerID:        f.owner,
	})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument got %v", err)
	}
	if len(f.repo.videos) != 0 {
		t.Fatalf("expected no record to be created")
	}
	if len(f.store.uploads) != 0 {
		t.Fatalf("expected no upload")
	}
}

func TestPublishMissingVideoFile(t *testing.T) {
	f := newFixture()

	_, err := f.uc.Publish(context.Background(), PublishInput{Title: "T", Description: "D", Thumbnail: "u1", OwnerID: f.owner})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument got %v", err)
	}
}

func TestPublishUploadFailureLeavesNoRecord(t *testing.T) {
	f := newFixture()
	f.store.uploadErr = errors.New("connection reset")

	_, err := f.uc.Publish(context.Background(), PublishInput{
		Title:          "T",
		Description:    "D",
		Thumbnail:      "u1",
		VideoLocalPath: "/tmp/video.mp4",
		OwnerID:        f.owner,
	})
	if !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("expected upload failed got %v", err)
	}
	if len(f.repo.videos) != 0 {
		t.Fatalf("expected no record to be created")
	}
	if len(f.events.events) != 0 {
		t.Fatalf("expected no event")
	}
}

func TestPublishEmptyReferenceIsUploadFailure(t *testing.T) {
	f := newFixture()
	f.store.asset = domain.Asset{}

	_, err := f.uc.Publish(context.Background(), PublishInput{
		Title:          "T",
		Description:    "D",
		Thumbnail:      "u1",
		VideoLocalPath: "/tmp/video.mp4",
		OwnerID:        f.owner,
	})
	if !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("expected upload failed got %v", err)
	}
	if len(f.repo.videos) != 0 {
		t.Fatalf("expected no record to be created")
	}
}

func TestPublishCreateFailureReclaimsUpload(t *testing.T) {
	f := newFixture()
	f.repo.createErr = errors.New("db down")

	_, err := f.uc.Publish(context.Background(), PublishInput{
		Title:          "T",
		Description:    "D",
		Thumbnail:      "u1",
		VideoLocalPath: "/tmp/video.mp4",
		OwnerID:        f.owner,
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(f.store.deleted) != 1 || f.store.deleted[0] != "v1" {
		t.Fatalf("expected uploaded video to be deleted got %v", f.store.deleted)
	}
}

func TestUpdateByNonOwnerIsForbidden(t *testing.T) {
	f := newFixture()
	video := f.publish(t, "T")

	_, err := f.uc.Update(context.Background(), UpdateInput{
		VideoID:     video.ID.String(),
		Title:       "hijacked",
		Description: "hijacked",
		Thumbnail:   "u2",
		ActorID:     uuid.New(),
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden got %v", err)
	}

	stored := f.repo.videos[video.ID]
	if stored.Title != "T" || stored.Thumbnail != "u1" {
		t.Fatalf("expected record unchanged got %+v", stored)
	}
	if len(f.store.deleted) != 0 {
		t.Fatalf("expected no store delete got %v", f.store.deleted)
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	f := newFixture()

	_, err := f.uc.Update(context.Background(), UpdateInput{
		VideoID:     uuid.New().String(),
		Title:       "T",
		Description: "D",
		ActorID:     f.owner,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestUpdateRequiresTitleAndDescription(t *testing.T) {
	f := newFixture()
	video := f.publish(t, "T")

	_, err := f.uc.Update(context.Background(), UpdateInput{
		VideoID: video.ID.String(),
		Title:   "  ",
		ActorID: f.owner,
	})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument got %v", err)
	}

	_, err = f.uc.Update(context.Background(), UpdateInput{VideoID: "xyz", Title: "T", Description: "D", ActorID: f.owner})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for malformed id got %v", err)
	}
}

func TestUpdateSameThumbnailSkipsStore(t *testing.T) {
	f := newFixture()
	video := f.publish(t, "T")

	updated, err := f.uc.Update(context.Background(), UpdateInput{
		VideoID:     video.ID.String(),
		Title:       "T2",
		Description: "D2",
		Thumbnail:   "u1",
		ActorID:     f.owner,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if len(f.store.deleted) != 0 {
		t.Fatalf("expected no store delete got %v", f.store.deleted)
	}
	if updated.Title != "T2" || updated.Description != "D2" || updated.Thumbnail != "u1" {
		t.Fatalf("unexpected update result %+v", updated)
	}
}

func TestUpdateWithoutThumbnailKeepsReference(t *testing.T) {
	f := newFixture()
	video := f.publish(t, "T")

	updated, err := f.uc.Update(context.Background(), UpdateInput{
		VideoID:     video.ID.String(),
		Title:       "T2",
		Description: "D2",
		ActorID:     f.owner,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Thumbnail != "u1" {
		t.Fatalf("expected thumbnail to be kept got %s", updated.Thumbnail)
	}
	if len(f.store.deleted) != 0 {
		t.Fatalf("expected no store delete got %v", f.store.deleted)
	}
}

func TestUpdateBlankThumbnailKeepsReference(t *testing.T) {
	f := newFixture()
	video := f.publish(t, "T")

	updated, err := f.uc.Update(context.Background(), UpdateInput{
		VideoID:     video.ID.String(),
		Title:       "T2",
		Description: "D2",
		Thumbnail:   "   ",
		ActorID:     f.owner,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Thumbnail != "u1" {
		t.Fatalf("expected thumbnail to be kept got %q", updated.Thumbnail)
	}
	if len(f.store.deleted) != 0 {
		t.Fatalf("expected no store delete got %v", f.store.deleted)
	}
}

func TestUpdateNewThumbnailDeletesOldBeforeUpdate(t *testing.T) {
	f := newFixture()
	video := f.publish(t, "T")
	*f.calls = nil

	updated, err := f.uc.Update(context.Background(), UpdateInput{
		VideoID:     video.ID.String(),
		Title:       "T",
		Description: "D",
		Thumbnail:   "u2",
		ActorID:     f.owner,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if len(f.store.deleted) != 1 || f.store.deleted[0] != "u1" {
		t.Fatalf("expected exactly one delete of u1 got %v", f.store.deleted)
	}
	calls := *f.calls
	if len(calls) != 2 || calls[0] != "store.delete:u1" || calls[1] != "repo.update" {
		t.Fatalf("expected delete before update got %v", calls)
	}
	if updated.Thumbnail != "u2" {
		t.Fatalf("expected new thumbnail got %s", updated.Thumbnail)
	}
}

func TestUpdateThumbnailCleanupFailureIsSwallowed(t *testing.T) {
	f := newFixture()
	video := f.publish(t, "T")
	f.store.deleteErr = errors.New("store unavailable")

	updated, err := f.uc.Update(context.Background(), UpdateInput{
		VideoID:     video.ID.String(),
		Title:       "T",
		Description: "D",
		Thumbnail:   "u2",
		ActorID:     f.owner,
	})
	if err != nil {
		t.Fatalf("expected update to succeed got %v", err)
	}
	if updated.Thumbnail != "u2" {
		t.Fatalf("expected new thumbnail got %s", updated.Thumbnail)
	}
}

func TestDeleteSurvivesAssetFailures(t *testing.T) {
	f := newFixture()
	video := f.publish(t, "T")
	f.store.deleteErr = errors.New("store unavailable")
	*f.calls = nil

	if err := f.uc.Delete(context.Background(), video.ID.String(), f.owner); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	calls := *f.calls
	if len(calls) != 3 || calls[0] != "repo.delete" {
		t.Fatalf("expected record delete first got %v", calls)
	}
	if len(f.store.deleted) != 2 || f.store.deleted[0] != "v1" || f.store.deleted[1] != "u1" {
		t.Fatalf("expected video and thumbnail deletes got %v", f.store.deleted)
	}

	_, err := f.uc.GetDetail(context.Background(), video.ID.String())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete got %v", err)
	}

	last := f.events.events[len(f.events.events)-1]
	if last.Type != domain.EventVideoDeleted {
		t.Fatalf("expected deleted event got %s", last.Type)
	}
}

func TestDeleteByNonOwnerIsForbidden(t *testing.T) {
	f := newFixture()
	video := f.publish(t, "T")

	err := f.uc.Delete(context.Background(), video.ID.String(), uuid.New())
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden got %v", err)
	}
	if _, ok := f.repo.videos[video.ID]; !ok {
		t.Fatalf("expected record to remain")
	}
	if len(f.store.deleted) != 0 {
		t.Fatalf("expected no store delete got %v", f.store.deleted)
	}
}

func TestDeleteMissingRecord(t *testing.T) {
	f := newFixture()

	err := f.uc.Delete(context.Background(), uuid.New().String(), f.owner)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestToggleTwiceRestores(t *testing.T) {
	f := newFixture()
	video := f.publish(t, "T")

	first, err := f.uc.TogglePublish(context.Background(), video.ID.String(), f.owner)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if first {
		t.Fatalf("expected unpublished after first toggle")
	}

	second, err := f.uc.TogglePublish(context.Background(), video.ID.String(), f.owner)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !second {
		t.Fatalf("expected published after second toggle")
	}
}

func TestToggleByNonOwnerIsForbidden(t *testing.T) {
	f := newFixture()
	video := f.publish(t, "T")

	_, err := f.uc.TogglePublish(context.Background(), video.ID.String(), uuid.New())
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden got %v", err)
	}
	if !f.repo.videos[video.ID].IsPublished {
		t.Fatalf("expected record unchanged")
	}
}

func TestGetDetail(t *testing.T) {
	f := newFixture()
	video := f.publish(t, "T")

	detail, err := f.uc.GetDetail(context.Background(), video.ID.String())
	if err != nil {
		t.Fatalf("get detail failed: %v", err)
	}
	if detail.OwnerDetails.Username != "alice" {
		t.Fatalf("expected owner projection got %+v", detail.OwnerDetails)
	}

	if _, err := f.uc.GetDetail(context.Background(), "not-an-id"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for malformed id got %v", err)
	}
}

func TestGetDetailUnresolvableOwner(t *testing.T) {
	f := newFixture()
	video := f.publish(t, "T")
	orphan := f.repo.videos[video.ID]
	orphan.OwnerID = uuid.New()
	f.repo.videos[video.ID] = orphan

	_, err := f.uc.GetDetail(context.Background(), video.ID.String())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestListEmpty(t *testing.T) {
	f := newFixture()

	page, err := f.uc.List(context.Background(), ListParams{Query: "nothing"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 {
		t.Fatalf("expected empty items got %v", page.Items)
	}
	if page.TotalCount != 0 {
		t.Fatalf("expected total 0 got %d", page.TotalCount)
	}
	if page.Page != domain.DefaultPage || page.PageSize != domain.DefaultPageSize {
		t.Fatalf("expected default paging got %d/%d", page.Page, page.PageSize)
	}
}

func TestListRejectsNegativePaging(t *testing.T) {
	f := newFixture()

	_, err := f.uc.List(context.Background(), ListParams{Page: -1})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument got %v", err)
	}
}

func TestListSorting(t *testing.T) {
	f := newFixture()
	f.publish(t, "b")
	f.publish(t, "c")
	f.publish(t, "a")

	page, err := f.uc.List(context.Background(), ListParams{SortBy: "title", SortType: "desc"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page.Items) != 3 || page.Items[0].Title != "c" || page.Items[2].Title != "a" {
		t.Fatalf("expected title desc got %v", titles(page.Items))
	}

	page, err = f.uc.List(context.Background(), ListParams{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if page.Items[0].Title != "a" || page.Items[2].Title != "b" {
		t.Fatalf("expected createdAt desc got %v", titles(page.Items))
	}
}

func TestLifecycleEndToEnd(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	video := f.publish(t, "T")
	if video.Duration != 62 || !video.IsPublished {
		t.Fatalf("unexpected published video %+v", video)
	}

	published, err := f.uc.TogglePublish(ctx, video.ID.String(), f.owner)
	if err != nil || published {
		t.Fatalf("expected unpublished got %v %v", published, err)
	}

	page, err := f.uc.List(ctx, ListParams{OwnerID: f.owner.String()})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page.Items) != 0 || page.TotalCount != 0 {
		t.Fatalf("expected unpublished video to be hidden got %v", titles(page.Items))
	}

	published, err = f.uc.TogglePublish(ctx, video.ID.String(), f.owner)
	if err != nil || !published {
		t.Fatalf("expected published got %v %v", published, err)
	}

	page, err = f.uc.List(ctx, ListParams{OwnerID: f.owner.String()})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != video.ID {
		t.Fatalf("expected the published video got %v", titles(page.Items))
	}
}

func TestRoundDuration(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{-3, 0},
		{61.7, 62},
		{61.2, 61},
		{2.5, 3},
		{0.5, 1},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{math.Inf(-1), 0},
		{math.MaxFloat64, maxDurationSeconds},
	}
	for _, tc := range cases {
		if got := roundDuration(tc.in); got != tc.want {
			t.Fatalf("roundDuration(%v): expected %d got %d", tc.in, tc.want, got)
		}
	}
}

func titles(videos []domain.Video) []string {
	out := make([]string, 0, len(videos))
	for _, v := range videos {
		out = append(out, v.Title)
	}
	return out
}
