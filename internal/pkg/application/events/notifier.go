package events

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

const (
	SessionStartedType   string = "SessionStarted"
	SessionDestroyedType string = "SessionDestroyed"
)

type Notifier interface {
	Start() error
	Stop() error

	SessionStarted(ctx context.Context, sessionID, userID string)
	SessionDestroyed(ctx context.Context, sessionID, userID string)
}

// Event is posted to the notification endpoint. Session ids are never sent,
// only a fingerprint that lets a receiver correlate events.
type Event struct {
	Type        string    `json:"type"`
	Fingerprint string    `json:"fingerprint"`
	UserID      string    `json:"userId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func Fingerprint(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:8])
}

var tracer = otel.Tracer("entity-sessions/notifier")

type action func()

type notifier struct {
	mu       sync.RWMutex
	started  bool
	endpoint string
	client   http.Client

	queue chan action
}

// NewNotifier returns a notifier that posts to endpoint, or one that discards
// every event when endpoint is empty
func NewNotifier(ctx context.Context, endpoint string) (Notifier, error) {
	if endpoint == "" {
		logging.GetFromContext(ctx).Info("no notification endpoint configured, session events will be discarded")
		return &discard{}, nil
	}

	return &notifier{
		endpoint: endpoint,
		client: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
		queue: make(chan action, 32),
	}, nil
}

func (n *notifier) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return fmt.Errorf("already started")
	}

	n.started = true

	go n.run()

	return nil
}

// Stop waits for events being enqueued, drains the queue and closes it
func (n *notifier) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		n.started = false

		// Create a result channel so that we can wait for completion
		resultChan := make(chan bool)

		n.queue <- func() {
			close(n.queue)
			resultChan <- true
		}

		// blocking read until our action has been processed
		<-resultChan
	}
	return nil
}

func (n *notifier) SessionStarted(ctx context.Context, sessionID, userID string) {
	n.enqueue(ctx, SessionStartedType, sessionID, userID)
}

func (n *notifier) SessionDestroyed(ctx context.Context, sessionID, userID string) {
	n.enqueue(ctx, SessionDestroyedType, sessionID, userID)
}

func (n *notifier) enqueue(ctx context.Context, eventType, sessionID, userID string) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if !n.started {
		return
	}

	var err error

	logger := logging.GetFromContext(ctx)

	ctx, span := tracer.Start(
		tracing.ExtractHeaders(context.Background(), tracing.InjectHeaders(ctx)),
		"post",
	)

	evt := Event{
		Type:        eventType,
		Fingerprint: Fingerprint(sessionID),
		UserID:      userID,
		Timestamp:   time.Now().UTC(),
	}

	n.queue <- func() {
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = n.post(ctx, evt)
		if err != nil {
			logger.Error("failed to post notification", "type", eventType, "err", err.Error())
		}
	}
}

func (n *notifier) post(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling error (%w)", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("unable to create new request (%w)", err)
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request (%w)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}

	return nil
}

func (n *notifier) run() {
	// repeat until the queue is closed
	for action := range n.queue {
		action()
	}
}

type discard struct{}

func (discard) Start() error                                     { return nil }
func (discard) Stop() error                                      { return nil }
func (discard) SessionStarted(context.Context, string, string)   {}
func (discard) SessionDestroyed(context.Context, string, string) {}
