package services

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"ticus/internal/models"
)

// NotifyService delivers session events to the user's live WebSocket
// connections and, when configured, to an outbound webhook. It is the
// single delivery path for the focus controllers.
type NotifyService struct {
	connections *ConnectionManager
	webhookURL  string
	limiter     *rate.Limiter
	httpClient  *http.Client
}

// NewNotifyService creates a new notify service. webhookURL may be
// empty, in which case only WebSocket delivery is active.
func NewNotifyService(connections *ConnectionManager, webhookURL string, ratePerSecond float64) *NotifyService {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	return &NotifyService{
		connections: connections,
		webhookURL:  webhookURL,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond)+1),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify fans the event out to all the user's connections and the
// webhook. Never blocks the caller on network I/O.
func (s *NotifyService) Notify(userID string, event models.SessionEvent) {
	s.connections.SendToUser(userID, event)

	if s.webhookURL == "" {
		return
	}
	// Ticks are high-frequency noise for an external receiver.
	if event.Type == models.EventTick {
		return
	}
	go s.postWebhook(userID, event)
}

func (s *NotifyService) postWebhook(userID string, event models.SessionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		log.Printf("⚠️  Webhook rate limit wait canceled for %s event", event.Type)
		return
	}

	payload, err := json.Marshal(struct {
		UserID string              `json:"user_id"`
		Event  models.SessionEvent `json:"event"`
	}{UserID: userID, Event: event})
	if err != nil {
		log.Printf("⚠️  Failed to encode webhook payload: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		log.Printf("⚠️  Failed to build webhook request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Printf("⚠️  Webhook delivery failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("⚠️  Webhook returned %s for %s event", resp.Status, event.Type)
	}
}
