package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/participation-api/internal/middleware"
	"github.com/noah-isme/participation-api/internal/service"
)

const feedPingInterval = 30 * time.Second

// FeedHandler streams participation saves of one activity over a websocket.
type FeedHandler struct {
	feed   service.ParticipationFeed
	logger zerolog.Logger
}

// NewFeedHandler creates a feed handler.
func NewFeedHandler(feed service.ParticipationFeed, logger zerolog.Logger) *FeedHandler {
	return &FeedHandler{
		feed:   feed,
		logger: logger.With().Str("component", "feed_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group.
func (h *FeedHandler) Register(router fiber.Router) {
	router.Get("/ws/activities/:id", h.upgrade, websocket.New(h.handleConnection))
}

func (h *FeedHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	activityID, err := parseActivityID(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	c.Locals("activity_id", activityID)
	c.Locals("request_ctx", requestContext(c))
	return c.Next()
}

func (h *FeedHandler) handleConnection(conn *websocket.Conn) {
	activityID, _ := conn.Locals("activity_id").(uint)
	if activityID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "activity id required"))
		_ = conn.Close()
		return
	}

	ctx, _ := conn.Locals("request_ctx").(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}
	logger := h.logger.With().
		Uint("activity_id", activityID).
		Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
		Logger()

	events, unsubscribe := h.feed.Subscribe(activityID)
	defer unsubscribe()

	closed := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(closed) }) }

	go func() {
		defer stop()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.Info().Msg("participation feed connected")
	defer logger.Info().Msg("participation feed disconnected")

	for {
		select {
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "feed closed"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("failed to write participation event")
				return
			}
		case <-time.After(feedPingInterval):
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
