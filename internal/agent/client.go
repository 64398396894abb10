package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/tour-assistant/pkg/logger"
	"github.com/capitalize-ai/tour-assistant/pkg/metrics"
	"github.com/capitalize-ai/tour-assistant/pkg/tracing"
)

const maxErrorBody = 4 << 10

// Client talks to the remote agent service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no overall timeout; a response may stream for minutes.
	streamClient *http.Client
	tracer       trace.Tracer
	logger       *logger.Logger
}

// NewClient creates a new agent client. timeout bounds REST calls and the
// wait for stream response headers.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{
			Transport: transport,
		},
		tracer: tracing.Tracer("agent"),
		logger: log.Named("agent"),
	}
}

// CreateRoom creates a room and returns its server identifiers.
func (c *Client) CreateRoom(ctx context.Context, title string) (*Room, error) {
	var room Room
	if err := c.do(ctx, "create_room", http.MethodPost, "/rooms", CreateRoomRequest{Title: title}, &room, nil); err != nil {
		return nil, err
	}
	if room.RoomID == "" {
		return nil, fmt.Errorf("agent create_room: response has no room_id")
	}
	return &room, nil
}

// ListRooms returns the caller's persisted rooms.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	var total int
	if err := c.do(ctx, "list_rooms", http.MethodGet, "/rooms", nil, &rooms, &total); err != nil {
		return nil, err
	}
	c.logger.Debug("listed rooms", zap.Int("count", len(rooms)), zap.Int("total", total))
	return rooms, nil
}

// RoomMessages returns the persisted messages of a room in order.
func (c *Client) RoomMessages(ctx context.Context, roomID string) ([]RoomMessage, error) {
	var msgs []RoomMessage
	path := "/rooms/" + url.PathEscape(roomID) + "/messages"
	if err := c.do(ctx, "room_messages", http.MethodGet, path, nil, &msgs, nil); err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteRoom deletes a room. Success requires EC == 0.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, "delete_room", http.MethodDelete, "/rooms/"+url.PathEscape(roomID), nil, nil, nil)
}

// ChatStream posts a chat message and returns the streaming response body.
// The caller must close it.
func (c *Client) ChatStream(ctx context.Context, chatReq ChatRequest) (io.ReadCloser, error) {
	const op = "chat_stream"
	ctx, span := c.tracer.Start(ctx, "agent."+op)
	defer span.End()

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, c.fail(span, op, fmt.Errorf("marshal request: %w", err))
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(span, op, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, c.fail(span, op, fmt.Errorf("http request: %w", err))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, c.fail(span, op, statusError(op, resp))
	}

	// Some agents answer a rejected chat with a JSON envelope and status 200.
	if isJSON(resp.Header.Get("Content-Type")) {
		defer resp.Body.Close()
		var env Envelope
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&env); err != nil {
			return nil, c.fail(span, op, fmt.Errorf("decode response: %w", err))
		}
		if env.EC != CodeOK {
			return nil, c.fail(span, op, &EnvelopeError{Op: op, Code: env.EC, Message: env.EM})
		}
		return nil, c.fail(span, op, fmt.Errorf("agent %s: expected a stream, got JSON", op))
	}

	metrics.RecordAgentRequest(op, "ok")
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any, total *int) error {
	ctx, span := c.tracer.Start(ctx, "agent."+op)
	defer span.End()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return c.fail(span, op, fmt.Errorf("marshal request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return c.fail(span, op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(span, op, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(span, op, fmt.Errorf("read response: %w", err))
	}

	var env Envelope
	var envErr error
	if len(bytes.TrimSpace(raw)) > 0 {
		envErr = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Prefer the domain error when the agent sent one.
		if envErr == nil && env.EC != CodeOK {
			return c.fail(span, op, &EnvelopeError{Op: op, Code: env.EC, Message: env.EM, Status: resp.StatusCode})
		}
		return c.fail(span, op, &StatusError{Op: op, Status: resp.StatusCode, Body: truncateBody(raw)})
	}
	if envErr != nil {
		return c.fail(span, op, fmt.Errorf("decode response: %w", envErr))
	}
	if env.EC != CodeOK {
		return c.fail(span, op, &EnvelopeError{Op: op, Code: env.EC, Message: env.EM})
	}

	if out != nil && len(raw) > 0 {
		data := []byte(env.Data)
		if len(data) == 0 {
			// Bare objects without a data wrapper are accepted too.
			data = raw
		}
		if string(data) != "null" {
			if err := json.Unmarshal(data, out); err != nil {
				return c.fail(span, op, fmt.Errorf("decode data: %w", err))
			}
		}
	}
	if total != nil {
		*total = env.Total
	}

	metrics.RecordAgentRequest(op, "ok")
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

func (c *Client) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.RecordAgentRequest(op, "error")
	c.logger.Debug("agent request failed", zap.String("op", op), zap.Error(err))
	return err
}

func statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var env Envelope
	if json.Unmarshal(raw, &env) == nil && env.EC != CodeOK {
		return &EnvelopeError{Op: op, Code: env.EC, Message: env.EM, Status: resp.StatusCode}
	}
	return &StatusError{Op: op, Status: resp.StatusCode, Body: truncateBody(raw)}
}

func truncateBody(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return strings.TrimSpace(string(b))
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}
