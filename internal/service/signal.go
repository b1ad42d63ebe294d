package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/vidcatalog/internal/domain"
	"github.com/totegamma/vidcatalog/internal/usecase"
)

var _ usecase.EventPublisher = (*SignalService)(nil)

const ownerChannelPrefix = "catalog:owner:"

func OwnerChannel(ownerID uuid.UUID) string {
	return ownerChannelPrefix + ownerID.String()
}

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, event domain.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, OwnerChannel(event.OwnerID), jsonstr).Err()
	if err != nil {
		return errors.Wrap(err, "SignalService.Publish")
	}

	return nil
}

// Subscribe streams events for the given owners until ctx is done or the
// returned close func is called.
func (s *SignalService) Subscribe(ctx context.Context, owners []uuid.UUID) (<-chan domain.Event, func() error) {
	channels := make([]string, 0, len(owners))
	for _, owner := range owners {
		channels = append(channels, OwnerChannel(owner))
	}

	pubsub := s.rdb.Subscribe(ctx, channels...)
	out := make(chan domain.Event)

	go func() {
		defer close(out)
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, pubsub.Close
}
