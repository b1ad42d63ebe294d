package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/vidcatalog/internal/domain"
	"github.com/totegamma/vidcatalog/internal/logger"
	"github.com/totegamma/vidcatalog/internal/usecase"
)

var tracer = otel.Tracer("storage")

var _ usecase.ObjectStore = (*AssetStore)(nil)

const keyPrefix = "videos/"

// Backend is a bucket on some object storage provider.
type Backend interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Remove succeeds when the object is already gone.
	Remove(ctx context.Context, key string) error
	// BaseURL is the public URL under which keys are served.
	BaseURL() string
}

// Prober reports the playback duration of a media file in seconds.
type Prober interface {
	Probe(ctx context.Context, path string) (float64, error)
}

type AssetStore struct {
	backend Backend
	prober  Prober
	baseURL string
	log     *logger.Logger
	now     func() time.Time
}

// NewAssetStore serves references under publicBaseURL, or the backend's own
// base URL when empty. prober may be nil.
func NewAssetStore(backend Backend, prober Prober, publicBaseURL string, log *logger.Logger) *AssetStore {
	if publicBaseURL == "" {
		publicBaseURL = backend.BaseURL()
	}
	return &AssetStore{
		backend: backend,
		prober:  prober,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		log:     log.With("service", "AssetStore"),
		now:     time.Now,
	}
}

func (s *AssetStore) Upload(ctx context.Context, localPath string) (domain.Asset, error) {
	ctx, span := tracer.Start(ctx, "Storage.AssetStore.Upload")
	defer span.End()

	file, err := os.Open(localPath)
	if err != nil {
		return domain.Asset{}, errors.Wrap(err, "open staged file")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return domain.Asset{}, errors.Wrap(err, "stat staged file")
	}

	hasher := xxh3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return domain.Asset{}, errors.Wrap(err, "hash staged file")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return domain.Asset{}, errors.Wrap(err, "rewind staged file")
	}

	ext := strings.ToLower(filepath.Ext(localPath))
	// each upload gets its own object, even for identical bytes
	key := fmt.Sprintf("%s%016x_%s_%d%s", keyPrefix, hasher.Sum64(), uuid.NewString(), s.now().Unix(), ext)
	span.SetAttributes(attribute.String("Key", key))

	duration := s.probe(ctx, localPath)

	contentType := contentTypeFor(ext)

	if err := s.backend.Put(ctx, key, file, info.Size(), contentType); err != nil {
		span.RecordError(err)
		return domain.Asset{}, errors.Wrapf(err, "put %s", key)
	}

	s.log.Debug("asset uploaded", "key", key, "size", info.Size(), "duration", duration)

	return domain.Asset{
		Ref:      s.RefForKey(key),
		Key:      key,
		Duration: duration,
	}, nil
}

// Delete removes the object behind ref. References outside this store are
// left alone.
func (s *AssetStore) Delete(ctx context.Context, ref string) error {
	ctx, span := tracer.Start(ctx, "Storage.AssetStore.Delete")
	defer span.End()

	key, ok := s.KeyFromRef(ref)
	if !ok {
		s.log.Info("skipping delete of foreign reference", "ref", ref)
		return nil
	}
	if err := s.backend.Remove(ctx, key); err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "remove %s", key)
	}
	return nil
}

func (s *AssetStore) RefForKey(key string) string {
	return s.baseURL + "/" + key
}

func (s *AssetStore) KeyFromRef(ref string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(ref, prefix)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	if key == "" {
		return "", false
	}
	return key, true
}

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

func contentTypeFor(ext string) string {
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *AssetStore) probe(ctx context.Context, path string) float64 {
	if s.prober == nil {
		return 0
	}
	duration, err := s.prober.Probe(ctx, path)
	if err != nil {
		s.log.Warn("duration probe failed", "path", path, "error", err)
		return 0
	}
	return duration
}
