package rest

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/totegamma/vidcatalog/internal/domain"
	"github.com/totegamma/vidcatalog/internal/logger"
	"github.com/totegamma/vidcatalog/internal/present/rest/middleware"
	"github.com/totegamma/vidcatalog/internal/present/rest/presenter"
	"github.com/totegamma/vidcatalog/internal/usecase"
)

const maxListLimit = 100

// Subscriber streams catalog events for a set of owners.
type Subscriber interface {
	Subscribe(ctx context.Context, owners []uuid.UUID) (<-chan domain.Event, func() error)
}

type UploadConfig struct {
	TempDir  string
	MaxBytes int64
}

type Handler struct {
	video   *usecase.VideoUsecase
	signal  Subscriber
	auth    *middleware.AuthMiddleware
	uploads UploadConfig
	log     *logger.Logger
}

// NewHandler builds the REST surface. signal may be nil, which disables /realtime.
func NewHandler(
	video *usecase.VideoUsecase,
	signal Subscriber,
	auth *middleware.AuthMiddleware,
	uploads UploadConfig,
	log *logger.Logger,
) *Handler {
	if uploads.TempDir == "" {
		uploads.TempDir = os.TempDir()
	}
	return &Handler{
		video:   video,
		signal:  signal,
		auth:    auth,
		uploads: uploads,
		log:     log.With("handler", "rest"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	videos := e.Group("/api/v1/videos", h.auth.IdentifyIdentity)
	videos.GET("", h.handleList)
	videos.POST("", h.handlePublish, h.auth.RequireAuth)
	videos.PATCH("/toggle/publish/:videoId", h.handleTogglePublish, h.auth.RequireAuth)
	videos.GET("/:videoId", h.handleDetail)
	videos.PATCH("/:videoId", h.handleUpdate, h.auth.RequireAuth)
	videos.DELETE("/:videoId", h.handleDelete, h.auth.RequireAuth)

	if h.signal != nil {
		e.GET("/realtime", h.handleRealtime)
	}
}

func (h *Handler) handleList(c echo.Context) error {
	ctx := c.Request().Context()

	params := usecase.ListParams{
		OwnerID:  c.QueryParam("userId"),
		Query:    c.QueryParam("query"),
		SortBy:   c.QueryParam("sortBy"),
		SortType: c.QueryParam("sortType"),
		Page:     domain.DefaultPage,
		Limit:    domain.DefaultPageSize,
	}

	if pageStr := c.QueryParam("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return presenter.BadRequestMessage(c, "invalid page parameter")
		}
		params.Page = page
	}

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return presenter.BadRequestMessage(c, "invalid limit parameter")
		}
		params.Limit = limit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}

	result, err := h.video.List(ctx, params)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handlePublish(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := middleware.RequesterID(ctx)

	input := usecase.PublishInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Thumbnail:   c.FormValue("thumbnail"),
		OwnerID:     actor,
	}

	fileHeader, err := c.FormFile("videoFile")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		return presenter.BadRequestMessage(c, "invalid multipart body")
	}
	if fileHeader != nil {
		if h.uploads.MaxBytes > 0 && fileHeader.Size > h.uploads.MaxBytes {
			return presenter.BadRequestMessage(c, "video file is too large")
		}
		staged, err := h.stageUpload(fileHeader)
		if err != nil {
			return presenter.Error(c, errors.Wrap(err, "stage upload"))
		}
		defer func() {
			if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
				h.log.Warn("failed to remove staged upload", "path", staged, "error", err)
			}
		}()
		input.VideoLocalPath = staged
	}

	video, err := h.video.Publish(ctx, input)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, video)
}

func (h *Handler) handleDetail(c echo.Context) error {
	ctx := c.Request().Context()

	detail, err := h.video.GetDetail(ctx, c.Param("videoId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, detail)
}

type updateRequest struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
	Thumbnail   string `json:"thumbnail" form:"thumbnail"`
}

func (h *Handler) handleUpdate(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := middleware.RequesterID(ctx)

	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "invalid request body")
	}

	video, err := h.video.Update(ctx, usecase.UpdateInput{
		VideoID:     c.Param("videoId"),
		Title:       req.Title,
		Description: req.Description,
		Thumbnail:   req.Thumbnail,
		ActorID:     actor,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, video)
}

func (h *Handler) handleDelete(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := middleware.RequesterID(ctx)

	if err := h.video.Delete(ctx, c.Param("videoId"), actor); err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleTogglePublish(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := middleware.RequesterID(ctx)

	published, err := h.video.TogglePublish(ctx, c.Param("videoId"), actor)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"isPublished": published})
}

var nonWord = regexp.MustCompile(`\W+`)

// stagedName keeps the client's base name readable and makes it unique.
func stagedName(original string, now time.Time, n int) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(filepath.Base(original), ext)
	base = nonWord.ReplaceAllString(base, "_")
	return fmt.Sprintf("%s_%d_%d%s", base, now.Unix(), n, ext)
}

func (h *Handler) stageUpload(fileHeader *multipart.FileHeader) (string, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	path := filepath.Join(h.uploads.TempDir, stagedName(fileHeader.Filename, time.Now(), rand.Intn(10000)))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type   string   `json:"type"`
	Owners []string `json:"owners"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("failed to upgrade websocket", "error", err)
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	requests := make(chan []uuid.UUID)

	go func() {
		defer cancel()
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					if closeErr.Code != websocket.CloseNormalClosure && closeErr.Code != websocket.CloseGoingAway {
						h.log.Debug("websocket closed", "error", closeErr)
					}
				} else {
					h.log.Error("error reading message", "error", err)
				}
				return
			}

			switch req.Type {
			case "listen":
				owners := parseOwners(req.Owners)
				h.log.Debug("socket subscribe", "owners", owners)
				select {
				case requests <- owners:
				case <-ctx.Done():
					return
				}
			case "h": // heartbeat
			default:
				h.log.Info("unknown request type", "type", req.Type)
			}
		}
	}()

	var events <-chan domain.Event
	unsubscribe := func() {}
	defer func() { unsubscribe() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case owners := <-requests:
			unsubscribe()
			events, unsubscribe = nil, func() {}
			if len(owners) == 0 {
				continue
			}
			subCtx, subCancel := context.WithCancel(ctx)
			stream, closer := h.signal.Subscribe(subCtx, owners)
			events = stream
			unsubscribe = func() {
				subCancel()
				if err := closer(); err != nil {
					h.log.Debug("failed to close subscription", "error", err)
				}
			}
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := ws.WriteJSON(event); err != nil {
				h.log.Error("error writing message", "error", err)
				return nil
			}
		}
	}
}

func parseOwners(raw []string) []uuid.UUID {
	owners := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		owners = append(owners, id)
	}
	return owners
}
