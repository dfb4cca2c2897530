package actionpush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/waddlebot/core/pkg/stream"
)

// PlatformActionClient executes one moderation or chat-reply action against
// a single platform. Each adapter package (pkg/receivers/<platform>) owns
// the credentials and client needed to implement this for its platform;
// this package only defines the contract and a generic HTTP-based fallback.
type PlatformActionClient interface {
	Execute(ctx context.Context, req ActionRequest) error
}

// HTTPActionClient posts the action request as JSON to a configured
// webhook-style endpoint, for platforms fronted by their own small action
// service rather than a native Go SDK call — grounded on the same
// request/response shape as the router's httpDispatcher (pkg/router/dispatch.go).
type HTTPActionClient struct {
	client *http.Client
	url    string
}

// NewHTTPActionClient builds an HTTPActionClient posting to url.
func NewHTTPActionClient(client *http.Client, url string) *HTTPActionClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPActionClient{client: client, url: url}
}

func (c *HTTPActionClient) Execute(ctx context.Context, req ActionRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("actionpush: encode action request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("actionpush: build action request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("actionpush: post to %s: %w", c.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("actionpush: %s returned %d", c.url, resp.StatusCode)
	}
	return nil
}

// Worker consumes ActionRequests and dispatches each to the registered
// client for its community's platform. Grounded on pkg/stream.Pool's
// handler-function shape: the worker itself doesn't poll Redis, it's
// handed one decoded message at a time by a stream.Worker/Pool.
type Worker struct {
	clients map[string]PlatformActionClient
	log     *slog.Logger
}

// NewWorker builds a Worker. clients maps platform name ("twitch",
// "discord", ...) to the client that executes actions for it.
func NewWorker(clients map[string]PlatformActionClient, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{clients: clients, log: log}
}

// Handle implements stream.Handler: decode the message payload, look up
// the platform client, execute, and return an error so pkg/stream's
// retry/DLQ machinery can take over on failure.
func (w *Worker) Handle(ctx context.Context, msg stream.Message) error {
	var req ActionRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("actionpush: decode action request: %w", err)
	}

	client, ok := w.clients[req.Platform]
	if !ok {
		w.log.WarnContext(ctx, "actionpush: no client registered for platform", "platform", req.Platform)
		return nil
	}

	if err := client.Execute(ctx, req); err != nil {
		w.log.WarnContext(ctx, "actionpush: action execution failed",
			"platform", req.Platform, "kind", req.Kind, "error", err)
		return err
	}
	return nil
}
