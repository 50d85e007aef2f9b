package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/participation-api/internal/dto"
	"github.com/noah-isme/participation-api/internal/observability"
)

const feedBufferSize = 16

// ParticipationPublisher announces committed participation saves.
type ParticipationPublisher interface {
	Publish(ctx context.Context, event dto.ParticipationSavedEvent)
}

// ParticipationFeed fans saved events out to live subscribers of an activity.
type ParticipationFeed interface {
	ParticipationPublisher
	Subscribe(activityID uint) (<-chan dto.ParticipationSavedEvent, func())
	Start(ctx context.Context) error
}

type participationFeed struct {
	nats         *nats.Conn
	natsSubject  string
	redis        *redis.Client
	redisChannel string
	logger       zerolog.Logger
	broker       *feedBroker
	nodeID       string
}

type feedBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.ParticipationSavedEvent]struct{}
}

// NewParticipationFeed builds the feed. Both transports are optional; without
// them events only reach subscribers connected to this process.
func NewParticipationFeed(natsConn *nats.Conn, natsSubject string, redisClient *redis.Client, redisChannel string, logger zerolog.Logger) ParticipationFeed {
	return &participationFeed{
		nats:         natsConn,
		natsSubject:  natsSubject,
		redis:        redisClient,
		redisChannel: redisChannel,
		logger:       logger.With().Str("component", "participation_feed").Logger(),
		broker: &feedBroker{
			subscribers: make(map[uint]map[chan dto.ParticipationSavedEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

// Start subscribes to the configured transports so events saved on other
// nodes reach local subscribers. Subscriptions end with ctx.
func (f *participationFeed) Start(ctx context.Context) error {
	if f.redis != nil && f.redisChannel != "" {
		pubsub := f.redis.Subscribe(ctx, f.redisChannel)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return err
		}
		go f.consumeRedis(ctx, pubsub)
	}

	if f.nats != nil && f.natsSubject != "" {
		sub, err := f.nats.Subscribe(f.natsSubject, func(msg *nats.Msg) {
			f.handlePayload(msg.Data)
		})
		if err != nil {
			return err
		}
		go func() {
			<-ctx.Done()
			if err := sub.Drain(); err != nil {
				f.logger.Warn().Err(err).Msg("failed to drain participation nats subscription")
			}
		}()
	}

	return nil
}

func (f *participationFeed) Publish(ctx context.Context, event dto.ParticipationSavedEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.SavedAt.IsZero() {
		event.SavedAt = time.Now().UTC()
	}
	event.Origin = f.nodeID

	f.broker.broadcast(event)

	if f.nats == nil && f.redis == nil {
		f.logger.Info().
			Uint("activity_id", event.ActivityID).
			Int("room", event.Room).
			Int("upserted", event.Upserted).
			Int("deleted", event.Deleted).
			Msg("participation saved")
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		f.logger.Warn().Err(err).Msg("failed to encode participation event")
		return
	}

	if f.nats != nil && f.natsSubject != "" {
		if err := f.nats.Publish(f.natsSubject, payload); err != nil {
			f.logger.Warn().Err(err).Msg("failed to publish participation event to nats")
		}
	}
	if f.redis != nil && f.redisChannel != "" {
		if err := f.redis.Publish(ctx, f.redisChannel, payload).Err(); err != nil {
			f.logger.Warn().Err(err).Msg("failed to publish participation event to redis")
		}
	}
}

func (f *participationFeed) Subscribe(activityID uint) (<-chan dto.ParticipationSavedEvent, func()) {
	channel := make(chan dto.ParticipationSavedEvent, feedBufferSize)
	f.broker.subscribe(activityID, channel)
	observability.FeedSubscribers().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			f.broker.unsubscribe(activityID, channel)
			observability.FeedSubscribers().Dec()
		})
	}
	return channel, cleanup
}

func (f *participationFeed) consumeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			f.logger.Error().Err(err).Msg("participation redis subscription closed")
			return
		}
		f.handlePayload([]byte(msg.Payload))
	}
}

func (f *participationFeed) handlePayload(payload []byte) {
	var event dto.ParticipationSavedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		f.logger.Warn().Err(err).Msg("invalid participation event payload")
		return
	}
	if event.Origin == f.nodeID {
		return
	}
	f.broker.broadcast(event)
}

func (b *feedBroker) subscribe(activityID uint, ch chan dto.ParticipationSavedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[activityID]; !exists {
		b.subscribers[activityID] = make(map[chan dto.ParticipationSavedEvent]struct{})
	}
	b.subscribers[activityID][ch] = struct{}{}
}

func (b *feedBroker) unsubscribe(activityID uint, ch chan dto.ParticipationSavedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[activityID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, activityID)
		}
	}
}

// broadcast drops events for subscribers whose buffer is full.
func (b *feedBroker) broadcast(event dto.ParticipationSavedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[event.ActivityID] {
		select {
		case ch <- event:
		default:
		}
	}
}
