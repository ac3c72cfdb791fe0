package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxAttempts = 3

// Dispatcher delivers prompt events to subscriber endpoints from a single
// background goroutine. Deliveries are best-effort: a full queue drops the
// event rather than blocking the mutation that produced it.
type Dispatcher struct {
	db         *pgxpool.Pool
	httpClient *http.Client
	deliveries chan delivery
	done       chan struct{}
}

type delivery struct {
	SubscriptionID uuid.UUID
	URL            string
	Secret         string
	Event          string
	Payload        []byte
}

func NewDispatcher(db *pgxpool.Pool) *Dispatcher {
	d := &Dispatcher{
		db: db,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		deliveries: make(chan delivery, 1000),
		done:       make(chan struct{}),
	}
	go d.processLoop()
	return d
}

func (d *Dispatcher) enqueue(req delivery) {
	select {
	case d.deliveries <- req:
	default:
		slog.Warn("webhook delivery queue full, dropping",
			"subscription_id", req.SubscriptionID, "event", req.Event)
	}
}

// Close stops accepting deliveries and drains the queue.
func (d *Dispatcher) Close() {
	close(d.deliveries)
	<-d.done
}

func (d *Dispatcher) processLoop() {
	defer close(d.done)
	for req := range d.deliveries {
		d.deliver(req)
	}
}

func (d *Dispatcher) deliver(req delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	signature := sign(req.Payload, req.Secret)

	var lastStatus int
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastStatus, lastErr = d.attempt(ctx, req, signature)
		if lastErr == nil && lastStatus < 400 {
			d.recordDelivery(ctx, req, lastStatus, attempt, nil)
			return
		}
		// Endpoint bugs don't heal on retry, server trouble might.
		if lastStatus >= 400 && lastStatus < 500 {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * time.Second):
		case <-ctx.Done():
			d.recordDelivery(ctx, req, lastStatus, attempt, ctx.Err())
			return
		}
	}

	slog.Warn("webhook delivery failed",
		"subscription_id", req.SubscriptionID,
		"event", req.Event,
		"status", lastStatus,
		"error", lastErr,
	)
	d.recordDelivery(ctx, req, lastStatus, maxAttempts, lastErr)
}

func (d *Dispatcher) attempt(ctx context.Context, req delivery, signature string) (int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Webhook-Event", req.Event)
	httpReq.Header.Set("X-Webhook-Signature", signature)
	httpReq.Header.Set("X-Webhook-ID", req.SubscriptionID.String())

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (d *Dispatcher) recordDelivery(ctx context.Context, req delivery, status, attempts int, deliveryErr error) {
	var deliveredAt *time.Time
	if deliveryErr == nil && status < 400 {
		now := time.Now()
		deliveredAt = &now
	}

	_, err := d.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, event, payload, response_status, attempts, delivered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), req.SubscriptionID, req.Event, req.Payload, status, attempts, deliveredAt,
	)
	if err != nil {
		slog.Error("failed to record webhook delivery", "error", err)
	}
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
