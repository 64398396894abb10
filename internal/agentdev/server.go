package agentdev

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/tour-assistant/internal/agent"
	"github.com/capitalize-ai/tour-assistant/internal/llm"
	"github.com/capitalize-ai/tour-assistant/internal/middleware"
	"github.com/capitalize-ai/tour-assistant/internal/model"
	"github.com/capitalize-ai/tour-assistant/internal/stream"
	"github.com/capitalize-ai/tour-assistant/pkg/logger"
)

// codeBadRequest is the envelope code for malformed requests.
const codeBadRequest = 1

const (
	textGenerationFailed = "Xin lỗi, trợ lý đang gặp sự cố. Vui lòng thử lại sau."
	defaultRecommend     = 3
)

// Options configures a Server.
type Options struct {
	FramePrefix string
	Catalog     *Catalog
	// LLM produces the reply text. Nil selects a scripted reply built from
	// the matched catalog tours.
	LLM   llm.Client
	Model string
	// TokenDelay paces scripted tokens.
	TokenDelay time.Duration
	Clock      func() time.Time
	Logger     *logger.Logger
}

// Server serves the agent protocol. Routes expect middleware.Auth to have
// put the user ID in the request context.
type Server struct {
	store *Store
	opts  Options
	log   *logger.Logger
}

// NewServer creates a server over store.
func NewServer(store *Store, opts Options) *Server {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Server{store: store, opts: opts, log: opts.Logger.Named("agentdev")}
}

// Routes returns the agent router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/rooms", func(r chi.Router) {
		r.Post("/", s.CreateRoom)
		r.Get("/", s.ListRooms)
		r.Get("/{roomID}/messages", s.RoomMessages)
		r.Delete("/{roomID}", s.DeleteRoom)
	})
	r.Post("/chat/stream", s.ChatStream)
	return r
}

// CreateRoom handles POST /rooms
func (s *Server) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req agent.CreateRoomRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeEnvelope(w, http.StatusBadRequest, codeBadRequest, "invalid request body", nil, 0)
			return
		}
	}
	room := s.store.CreateRoom(middleware.GetUserID(r.Context()), req.Title)
	writeEnvelope(w, http.StatusOK, agent.CodeOK, "", room, 0)
}

// ListRooms handles GET /rooms
func (s *Server) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.store.Rooms(middleware.GetUserID(r.Context()))
	writeEnvelope(w, http.StatusOK, agent.CodeOK, "", rooms, len(rooms))
}

// RoomMessages handles GET /rooms/{roomID}/messages
func (s *Server) RoomMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.store.Messages(middleware.GetUserID(r.Context()), chi.URLParam(r, "roomID"))
	if err != nil {
		writeNotFound(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, agent.CodeOK, "", msgs, len(msgs))
}

// DeleteRoom handles DELETE /rooms/{roomID}
func (s *Server) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(middleware.GetUserID(r.Context()), chi.URLParam(r, "roomID")); err != nil {
		writeNotFound(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, agent.CodeOK, "", nil, 0)
}

// ChatStream handles POST /chat/stream. The response is a sequence of
// prefixed JSON frames: start, tokens, optional recommendations, then
// complete or error.
func (s *Server) ChatStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req agent.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeEnvelope(w, http.StatusBadRequest, codeBadRequest, "message is required", nil, 0)
		return
	}

	var room agent.Room
	if req.ConversationID == nil || *req.ConversationID == "" {
		room = s.store.CreateRoom(userID, "")
	} else {
		var err error
		if room, err = s.store.Room(userID, *req.ConversationID); err != nil {
			writeNotFound(w, err)
			return
		}
	}

	past, _ := s.store.Messages(userID, room.RoomID)

	limit := req.MaxRecommendations
	if limit <= 0 {
		limit = defaultRecommend
	}
	tours := s.opts.Catalog.Match(req.Message, limit)

	log := s.log.With(zap.String("user_id", userID), zap.String("room_id", room.RoomID))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	enc := stream.NewEncoder(w, s.opts.FramePrefix)
	if err := enc.Encode(stream.Start{ConversationID: room.RoomID, UserID: userID}); err != nil {
		log.Debug("client went away before start", zap.Error(err))
		return
	}

	userMsg := agent.RoomMessage{
		ID:        uuid.NewString(),
		Role:      string(model.RoleUser),
		Content:   req.Message,
		CreatedAt: s.opts.Clock(),
	}

	resp, err := s.source(tours).CompleteStream(ctx, &llm.CompletionRequest{
		Model:    s.opts.Model,
		System:   systemPrompt(tours),
		Messages: append(history(past), llm.ChatMessage{Role: userMsg.Role, Content: userMsg.Content}),
	}, func(token string, _ int) error {
		return enc.Encode(stream.Token{Content: token})
	})
	if err != nil {
		if ctx.Err() != nil {
			log.Info("chat stream cancelled by client")
			s.persist(log, userID, room.RoomID, userMsg)
			return
		}
		log.Error("reply generation failed", zap.Error(err))
		enc.Encode(stream.Error{Message: textGenerationFailed})
		s.persist(log, userID, room.RoomID, userMsg, agent.RoomMessage{
			ID:        uuid.NewString(),
			Role:      string(model.RoleAssistant),
			Content:   textGenerationFailed,
			IsError:   true,
			CreatedAt: s.opts.Clock(),
		})
		return
	}

	if len(tours) > 0 {
		enc.Encode(stream.Recommendations{TourPackages: tours})
	}
	refs := sources(tours)
	enc.Encode(stream.Complete{FullResponse: resp.Content, Sources: refs})

	s.persist(log, userID, room.RoomID, userMsg, agent.RoomMessage{
		ID:           uuid.NewString(),
		Role:         string(model.RoleAssistant),
		Content:      resp.Content,
		Sources:      refs,
		TourPackages: tours,
		CreatedAt:    s.opts.Clock(),
	})

	log.Info("chat stream completed",
		zap.Int("tours", len(tours)),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int64("latency_ms", resp.LatencyMs),
	)
}

func (s *Server) source(tours []model.TourPackage) llm.Client {
	if s.opts.LLM != nil {
		return s.opts.LLM
	}
	reply := composeReply(tours)
	return llm.NewScriptedClient(func(*llm.CompletionRequest) string { return reply }, s.opts.TokenDelay)
}

func (s *Server) persist(log *logger.Logger, userID, roomID string, msgs ...agent.RoomMessage) {
	if err := s.store.Append(userID, roomID, msgs...); err != nil {
		// The room was deleted while the reply streamed.
		log.Warn("failed to persist turn", zap.Error(err))
	}
}

func writeNotFound(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrRoomNotFound) {
		writeEnvelope(w, http.StatusNotFound, agent.CodeNotFound, err.Error(), nil, 0)
		return
	}
	writeEnvelope(w, http.StatusInternalServerError, codeBadRequest, err.Error(), nil, 0)
}

func writeEnvelope(w http.ResponseWriter, status, code int, message string, data any, total int) {
	env := agent.Envelope{EC: code, EM: message, Total: total}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			status, env.EC, env.EM = http.StatusInternalServerError, codeBadRequest, "failed to encode response"
		} else {
			env.Data = raw
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}
