package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"Story-Loom/server/internal/boundary"
	"Story-Loom/server/internal/emotion"
	"Story-Loom/server/internal/engine"
	"Story-Loom/server/internal/intent"
	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/ledger"
	"Story-Loom/server/internal/models"
	"Story-Loom/server/internal/rag"
	"Story-Loom/server/internal/relationship"
	"Story-Loom/server/internal/storage"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Handlers is the thin JSON surface over the engine operations.
type Handlers struct {
	orchestrator  *engine.Orchestrator
	ledger        *ledger.Service
	emotions      *emotion.Machine
	intents       *intent.Tracker
	relationships *relationship.Service
	boundaries    *boundary.Engine
	games         interfaces.GameStore
	characters    interfaces.CharacterStore
	summaries     interfaces.SummaryStore
	recall        *rag.SemanticIndex
	redisStore    *storage.RedisStore
	hub           *EventHub
	defaultRating string
}

// HandlerDeps bundles what the HTTP surface needs. recall and redisStore may
// be nil; the affected endpoints report the feature as unavailable.
type HandlerDeps struct {
	Orchestrator  *engine.Orchestrator
	Ledger        *ledger.Service
	Emotions      *emotion.Machine
	Intents       *intent.Tracker
	Relationships *relationship.Service
	Boundaries    *boundary.Engine
	Games         interfaces.GameStore
	Characters    interfaces.CharacterStore
	Summaries     interfaces.SummaryStore
	Recall        *rag.SemanticIndex
	RedisStore    *storage.RedisStore
	Hub           *EventHub
	DefaultRating string
}

func NewHandlers(deps HandlerDeps) *Handlers {
	return &Handlers{
		orchestrator:  deps.Orchestrator,
		ledger:        deps.Ledger,
		emotions:      deps.Emotions,
		intents:       deps.Intents,
		relationships: deps.Relationships,
		boundaries:    deps.Boundaries,
		games:         deps.Games,
		characters:    deps.Characters,
		summaries:     deps.Summaries,
		recall:        deps.Recall,
		redisStore:    deps.RedisStore,
		hub:           deps.Hub,
		defaultRating: deps.DefaultRating,
	}
}

// NewRouter builds the chi router over the handlers.
func NewRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Request logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("REQUEST: %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	})
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ws", h.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/games", h.CreateGame)
		r.Get("/intent-chains", h.ListIntentChains)

		r.Route("/games/{gameID}", func(r chi.Router) {
			r.Get("/", h.GetGame)
			r.Post("/advance", h.AdvanceTurn)
			r.Post("/actions", h.RecordAction)
			r.Get("/narration", h.RecentNarration)
			r.Post("/recall", h.RecallMemories)

			r.Get("/settings", h.GetSettings)
			r.Put("/settings/preset", h.ApplyPreset)
			r.Put("/settings/ceiling", h.SetCeiling)
			r.Delete("/settings", h.ResetSettings)
			r.Post("/boundary/check", h.CheckBoundary)

			r.Post("/characters", h.CreateCharacter)
			r.Get("/characters", h.ListCharacters)

			r.Route("/characters/{characterID}", func(r chi.Router) {
				r.Get("/witnessed", h.Witnessed)
				r.Post("/generate", h.GenerateTurn)

				r.Get("/emotion", h.GetEmotion)
				r.Post("/emotion/adjust", h.AdjustEmotion)
				r.Post("/emotion/reset", h.ResetEmotion)

				r.Get("/intents", h.ListIntents)
				r.Post("/intents/pursue", h.PursueIntent)
				r.Post("/intents/complete", h.CompleteIntent)

				r.Get("/relationships", h.ListRelationships)
				r.Post("/relationships/{targetID}/adjust", h.AdjustRelationship)
				r.Put("/relationships/{targetID}", h.SetRelationship)

				r.Get("/summaries", h.ListSummaries)
			})
		})
	})

	return r
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"service":    "story-loom",
		"ws_clients": h.hub.GetClientCount(),
	})
}

// ServeWS upgrades the connection and subscribes the client to game events.
func (h *Handlers) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Web] WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		ID:     generateClientID(),
		GameID: r.URL.Query().Get("game_id"),
		Conn:   conn,
		Send:   make(chan []byte, 64),
		Hub:    h.hub,
	}
	h.hub.register <- client
	go client.readPump()
}

func (h *Handlers) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID            string `json:"id"`
		Title         string `json:"title"`
		ContentRating string `json:"content_rating"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = generateClientID()
	}
	if req.ContentRating == "" {
		req.ContentRating = h.defaultRating
	}
	if req.ContentRating == "" {
		req.ContentRating = boundary.DefaultRating
	}

	game := &models.Game{
		ID:            req.ID,
		Title:         req.Title,
		Status:        "active",
		CurrentTurn:   1,
		ContentRating: req.ContentRating,
	}
	if err := h.games.Save(r.Context(), game); err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.boundaries.ApplyPreset(r.Context(), game.ID, req.ContentRating); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

func (h *Handlers) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.games.Get(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (h *Handlers) AdvanceTurn(w http.ResponseWriter, r *http.Request) {
	report, err := h.orchestrator.AdvanceTurn(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) RecordAction(w http.ResponseWriter, r *http.Request) {
	var entry models.TurnEntry
	if !decodeJSON(w, r, &entry) {
		return
	}
	entry.GameID = chi.URLParam(r, "gameID")

	if err := h.orchestrator.RecordAction(r.Context(), &entry); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handlers) Witnessed(w http.ResponseWriter, r *http.Request) {
	turns := queryInt(r, "turns", 0)
	entries, err := h.ledger.Witnessed(r.Context(), chi.URLParam(r, "gameID"), chi.URLParam(r, "characterID"), turns)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
}

func (h *Handlers) GenerateTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Instruction string `json:"instruction"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	text, err := h.orchestrator.GenerateCharacterTurn(r.Context(),
		chi.URLParam(r, "gameID"), chi.URLParam(r, "characterID"), req.Instruction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (h *Handlers) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	var character models.Character
	if !decodeJSON(w, r, &character) {
		return
	}
	character.GameID = chi.URLParam(r, "gameID")
	if character.ID == "" {
		character.ID = generateClientID()
	}
	if character.Name == "" {
		writeError(w, &models.ValidationError{Field: "name", Reason: "must not be empty"})
		return
	}

	if err := h.characters.Save(r.Context(), &character); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, character)
}

func (h *Handlers) ListCharacters(w http.ResponseWriter, r *http.Request) {
	characters, err := h.characters.ListByGame(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"characters": characters})
}

func (h *Handlers) GetEmotion(w http.ResponseWriter, r *http.Request) {
	state, err := h.emotions.Current(r.Context(), chi.URLParam(r, "characterID"), chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handlers) AdjustEmotion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emotion            string `json:"emotion"`
		Delta              int    `json:"delta"`
		TriggeredBy        string `json:"triggered_by"`
		TriggerDescription string `json:"trigger_description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.emotions.Adjust(r.Context(),
		chi.URLParam(r, "characterID"), chi.URLParam(r, "gameID"),
		req.Emotion, req.Delta, req.TriggeredBy, req.TriggerDescription)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) ResetEmotion(w http.ResponseWriter, r *http.Request) {
	err := h.emotions.Reset(r.Context(), chi.URLParam(r, "characterID"), chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListIntentChains(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]interface{})
	for _, chainType := range intent.ChainTypes() {
		chain, _ := intent.ChainFor(chainType)
		out[chainType] = chain
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) ListIntents(w http.ResponseWriter, r *http.Request) {
	intents, err := h.intents.Active(r.Context(), chi.URLParam(r, "gameID"), chi.URLParam(r, "characterID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"intents": intents})
}

func (h *Handlers) PursueIntent(w http.ResponseWriter, r *http.Request) {
	var req intent.PursueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.GameID = chi.URLParam(r, "gameID")
	req.CharacterID = chi.URLParam(r, "characterID")
	if req.Turn == 0 {
		if game, err := h.games.Get(r.Context(), req.GameID); err == nil {
			req.Turn = game.CurrentTurn
		}
	}

	result, err := h.intents.Pursue(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) CompleteIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IntentType string                  `json:"intent_type"`
		Status     models.CompletionStatus `json:"status"`
		Turn       int                     `json:"turn"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	switch req.Status {
	case models.IntentAchieved, models.IntentAbandoned, models.IntentInterrupted, models.IntentRejected:
	default:
		writeError(w, &models.ValidationError{Field: "status", Reason: "unknown completion status " + string(req.Status)})
		return
	}

	completed, err := h.intents.Complete(r.Context(),
		chi.URLParam(r, "gameID"), chi.URLParam(r, "characterID"),
		req.IntentType, req.Status, req.Turn)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completed)
}

func (h *Handlers) ListRelationships(w http.ResponseWriter, r *http.Request) {
	rels, err := h.relationships.Perceived(r.Context(), chi.URLParam(r, "gameID"), chi.URLParam(r, "characterID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"relationships": rels})
}

func (h *Handlers) AdjustRelationship(w http.ResponseWriter, r *http.Request) {
	var req struct {
		relationship.Delta
		Turn int `json:"turn"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	rel, err := h.relationships.Adjust(r.Context(),
		chi.URLParam(r, "gameID"), chi.URLParam(r, "characterID"), chi.URLParam(r, "targetID"),
		req.Delta, req.Turn)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (h *Handlers) SetRelationship(w http.ResponseWriter, r *http.Request) {
	var req struct {
		relationship.Values
		Turn int `json:"turn"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	rel, err := h.relationships.Set(r.Context(),
		chi.URLParam(r, "gameID"), chi.URLParam(r, "characterID"), chi.URLParam(r, "targetID"),
		req.Values, req.Turn)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.boundaries.Settings(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handlers) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating string `json:"rating"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	settings, err := h.boundaries.ApplyPreset(r.Context(), chi.URLParam(r, "gameID"), req.Rating)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handlers) SetCeiling(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category models.ContentCategory `json:"category"`
		Level    int                    `json:"level"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	settings, err := h.boundaries.SetCeiling(r.Context(), chi.URLParam(r, "gameID"), req.Category, req.Level)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handlers) ResetSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.boundaries.Reset(r.Context(), chi.URLParam(r, "gameID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) CheckBoundary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category    models.ContentCategory `json:"category"`
		TargetLevel int                    `json:"target_level"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	decision, err := h.boundaries.CanEscalate(r.Context(), chi.URLParam(r, "gameID"), req.Category, req.TargetLevel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (h *Handlers) ListSummaries(w http.ResponseWriter, r *http.Request) {
	window := models.WindowType(r.URL.Query().Get("window"))
	if window == "" {
		window = models.WindowShort
	}
	startTurn := queryInt(r, "start", 1)
	endTurn := queryInt(r, "end", 1<<30)

	summaries, err := h.summaries.InRange(r.Context(),
		chi.URLParam(r, "gameID"), chi.URLParam(r, "characterID"), window, startTurn, endTurn)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"summaries": summaries})
}

func (h *Handlers) RecallMemories(w http.ResponseWriter, r *http.Request) {
	if h.recall == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "semantic recall is not configured"})
		return
	}

	var req struct {
		Query       string `json:"query"`
		CharacterID string `json:"character_id"`
		StartTurn   int    `json:"start_turn"`
		EndTurn     int    `json:"end_turn"`
		Limit       int    `json:"limit"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, &models.ValidationError{Field: "query", Reason: "must not be empty"})
		return
	}

	memories, err := h.recall.Recall(r.Context(), req.Query, rag.RecallOptions{
		GameID:      chi.URLParam(r, "gameID"),
		CharacterID: req.CharacterID,
		StartTurn:   req.StartTurn,
		EndTurn:     req.EndTurn,
		Limit:       req.Limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"memories": memories})
}

func (h *Handlers) RecentNarration(w http.ResponseWriter, r *http.Request) {
	if h.redisStore == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "narration feed is not configured"})
		return
	}

	lines, err := h.redisStore.RecentNarration(r.Context(), chi.URLParam(r, "gameID"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"narration": lines})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid JSON body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[Web] Failed to write response: %v", err)
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var validation *models.ValidationError
	var provider *interfaces.ProviderError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.Is(err, interfaces.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, interfaces.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &provider):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func generateClientID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
