package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Live-channel event names
const (
	EventTurnOrderInitialized = "turnOrder:initialized"
	EventTurnOrderUpdated     = "turnOrder:updated"
	EventTurnOrderEnded       = "turnOrder:ended"
	EventNotificationNew      = "notification:new"
	EventNotificationSound    = "notification:sound"
	EventSceneUpdated         = "scene:updated"
	EventClockUpdated         = "clock:updated"
)

// liveEnvelope is the wire shape on the redis channel and the SSE stream.
type liveEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// LiveBroker fans campaign events out through redis pub/sub and serves the
// per-campaign SSE stream that browsers consume. One redis channel per
// campaign: campaign:{id}.
type LiveBroker struct {
	DB  *gorm.DB
	rdb *redis.Client
}

func NewLiveBroker(db *gorm.DB, addr, password string, redisDB int) (*LiveBroker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       redisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &LiveBroker{DB: db, rdb: rdb}, nil
}

func (b *LiveBroker) Close() error {
	return b.rdb.Close()
}

func campaignChannel(campaignID string) string {
	return "campaign:" + campaignID
}

// Publish sends one event to every live subscriber of the campaign.
// Best-effort: a publish failure is logged, never surfaced.
func (b *LiveBroker) Publish(campaignID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Live] marshal %s failed: %v", event, err)
		return
	}
	env, _ := json.Marshal(liveEnvelope{Event: event, Data: data})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := b.rdb.Publish(ctx, campaignChannel(campaignID), env).Err(); err != nil {
		log.Printf("[Live] publish %s to %s failed: %v", event, campaignID, err)
	}
}

// StreamCampaign serves the SSE stream for one campaign. Auth comes from the
// SSE middleware (query token); membership is checked here.
func (b *LiveBroker) StreamCampaign(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	userID := c.Locals("user_id").(string)

	if _, err := getMembership(b.DB, campaignID, userID); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not a member of this campaign"})
	}

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	subCtx, cancel := context.WithCancel(context.Background())
	pubsub := b.rdb.Subscribe(subCtx, campaignChannel(campaignID))

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer pubsub.Close()

		msgs := pubsub.Channel()
		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var env liveEnvelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					log.Printf("[Live] bad payload on %s: %v", m.Channel, err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Event, env.Data)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
