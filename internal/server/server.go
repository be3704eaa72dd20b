package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdemd/internal/ai"
	"github.com/lox/holdemd/internal/game"
	"github.com/lox/holdemd/internal/history"
	"github.com/lox/holdemd/internal/phh"
	"github.com/lox/holdemd/internal/store"
)

// serverPlayerID owns tables declared in configuration, so the server
// itself may start them.
const serverPlayerID = "server"

// Server wires the registry, hub, orchestrator, AI driver and
// persistence behind one HTTP listener: a small lobby API, a metrics
// endpoint and the websocket channel.
type Server struct {
	cfg      *Config
	logger   *log.Logger
	clock    quartz.Clock
	oracle   ai.Oracle
	upgrader websocket.Upgrader

	registry     *game.Registry
	hub          *Hub
	orchestrator *Orchestrator
	driver       *AIDriver
	history      *history.Repository
	store        *store.Store
	metrics      *Metrics
}

// Option customizes a server at construction.
type Option func(*Server)

// WithClock injects the clock, so tests control every timer.
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// WithOracle overrides the AI oracle.
func WithOracle(oracle ai.Oracle) Option {
	return func(s *Server) { s.oracle = oracle }
}

// New assembles a server from its configuration.
func New(cfg *Config, logger *log.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger.WithPrefix("server"),
		clock:  quartz.NewReal(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.oracle == nil {
		if cfg.Server.AIOracleURL != "" {
			s.oracle = ai.NewHTTPOracle(cfg.Server.AIOracleURL)
		} else {
			s.oracle = ai.RulePolicy{}
		}
	}

	s.metrics = NewMetrics()
	s.registry = game.NewRegistry()
	s.history = history.NewRepository(history.DefaultLimit)
	s.hub = NewHub(logger, s.clock, s.metrics)
	s.orchestrator = NewOrchestrator(s.hub, s.history, logger, s.clock, s.metrics)
	s.driver = NewAIDriver(s.oracle, s.orchestrator, s.hub, logger, s.clock, s.metrics)
	s.orchestrator.ScheduleAI = s.driver.Enqueue
	s.metrics.TrackGames(s.registry.Len)
	s.store = store.New(cfg.Server.DataDir, logger, s.clock, s.registry, s.history)
	return s
}

// Bootstrap loads persisted state and creates the configured tables.
// A configured game whose ID survived a restart keeps its state,
// including its AI seats; only freshly created tables get seated.
func (s *Server) Bootstrap() error {
	s.store.LoadAll()

	created := make(map[string]bool, len(s.cfg.Games))
	for _, gc := range s.cfg.Games {
		if _, ok := s.registry.Get(gc.ID); ok {
			continue
		}
		cfg, err := gc.Build()
		if err != nil {
			return err
		}
		if _, err := s.registry.CreateWithID(gc.ID, cfg, serverPlayerID); err != nil {
			return err
		}
		created[gc.ID] = true
		s.logger.Info("created table", "game", gc.ID,
			"blinds", fmt.Sprintf("%d/%d", cfg.SmallBlind, cfg.BigBlind),
			"structure", cfg.Structure, "mode", cfg.Mode)
	}

	for _, seatCfg := range s.cfg.AISeats {
		if !created[seatCfg.Game] {
			continue
		}
		g, ok := s.registry.Get(seatCfg.Game)
		if !ok {
			continue
		}
		for i := 0; i < seatCfg.Count; i++ {
			name := seatCfg.Name
			if seatCfg.Count > 1 {
				name = fmt.Sprintf("%s %d", seatCfg.Name, i+1)
			}
			buyIn := seatCfg.BuyIn
			if buyIn == 0 {
				buyIn = 50 * g.Config().BigBlind
			}
			playerID := "ai:" + uuid.NewString()
			g.Lock()
			_, err := g.AddSeat(playerID, name, buyIn, false)
			g.Unlock()
			if err != nil {
				s.logger.Warn("ai seat not added", "game", seatCfg.Game, "name", name, "error", err)
				continue
			}
			if seatCfg.Strategy != "" {
				if policy, ok := ai.PolicyByName(seatCfg.Strategy); ok {
					s.driver.UsePolicy(playerID, policy)
				}
			}
			s.logger.Info("seated ai player", "game", seatCfg.Game, "name", name,
				"buy_in", buyIn, "strategy", seatCfg.Strategy)
		}
	}

	for _, gc := range s.cfg.Games {
		if !gc.AutoStart {
			continue
		}
		g, ok := s.registry.Get(gc.ID)
		if !ok {
			continue
		}
		g.Lock()
		err := g.Start(serverPlayerID)
		g.Unlock()
		if err != nil {
			if !errors.Is(err, game.ErrNotEnoughPlayers) && !errors.Is(err, game.ErrHandInProgress) {
				s.logger.Warn("autostart failed", "game", gc.ID, "error", err)
			}
			continue
		}
		s.logger.Info("autostarted table", "game", gc.ID)
		s.orchestrator.StartNextHand(g)
	}
	return nil
}

// Run serves until the context is cancelled, then drains: subscribers
// disconnect, the listener stops and a final snapshot lands on disk.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Bootstrap(); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    s.cfg.Server.Listen,
		Handler: s.routes(),
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.logger.Info("listening", "addr", s.cfg.Server.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return s.store.Run(ctx, s.cfg.Server.SnapshotEvery())
	})
	group.Go(func() error {
		<-ctx.Done()
		s.hub.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// routes builds the HTTP surface.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /api/games", s.handleListGames)
	mux.HandleFunc("POST /api/games", s.handleCreateGame)
	mux.HandleFunc("POST /api/games/{id}/join", s.handleJoinGame)
	mux.HandleFunc("POST /api/games/{id}/start", s.handleStartGame)
	mux.HandleFunc("POST /api/games/{id}/leave", s.handleLeaveGame)
	mux.HandleFunc("GET /api/games/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /ws/{id}", s.handleWebSocket)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"games":  s.registry.Len(),
	})
}

// gameSummary is the lobby's view of one table.
type gameSummary struct {
	ID         string         `json:"game_id"`
	Name       string         `json:"name"`
	Status     game.Status    `json:"status"`
	Mode       game.Mode      `json:"mode"`
	Structure  game.Structure `json:"structure"`
	SmallBlind int            `json:"small_blind"`
	BigBlind   int            `json:"big_blind"`
	MaxSeats   int            `json:"max_seats"`
	Seated     int            `json:"seated"`
	HandCount  int            `json:"hand_count"`
	CreatedAt  time.Time      `json:"created_at"`
}

func summarize(g *game.Game) gameSummary {
	cfg := g.Config()
	g.Lock()
	defer g.Unlock()

	seated := 0
	for _, seat := range g.Seats() {
		if seat.Status != game.SeatOut {
			seated++
		}
	}
	return gameSummary{
		ID:         g.ID(),
		Name:       cfg.Name,
		Status:     g.Status(),
		Mode:       cfg.Mode,
		Structure:  cfg.Structure,
		SmallBlind: cfg.SmallBlind,
		BigBlind:   cfg.BigBlind,
		MaxSeats:   cfg.MaxSeats,
		Seated:     seated,
		HandCount:  g.HandCount(),
		CreatedAt:  g.CreatedAt(),
	}
}

func (s *Server) handleListGames(w http.ResponseWriter, _ *http.Request) {
	games := s.registry.List()
	summaries := make([]gameSummary, 0, len(games))
	for _, g := range games {
		summaries = append(summaries, summarize(g))
	}
	writeJSON(w, http.StatusOK, summaries)
}

type createGameRequest struct {
	game.Config
	CreatorID string `json:"creator_id"`
}

type createGameResponse struct {
	gameSummary
	CreatorID string `json:"creator_id"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.CreatorID == "" {
		req.CreatorID = uuid.NewString()
	}

	g, err := s.registry.Create(req.Config, req.CreatorID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("game created", "game", g.ID(), "name", req.Config.Name, "creator", req.CreatorID)
	writeJSON(w, http.StatusCreated, createGameResponse{
		gameSummary: summarize(g),
		CreatorID:   req.CreatorID,
	})
}

type joinGameRequest struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	BuyIn       int    `json:"buy_in"`
	AI          bool   `json:"ai"`
}

type joinGameResponse struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
	SeatID   int    `json:"seat_id"`
	Chips    int    `json:"chips"`
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	g, ok := s.lookupGame(w, r)
	if !ok {
		return
	}
	var req joinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.PlayerID == "" {
		req.PlayerID = uuid.NewString()
	}
	if req.DisplayName == "" {
		req.DisplayName = "Player " + req.PlayerID[:8]
	}
	if req.BuyIn == 0 {
		req.BuyIn = g.Config().MinBuyIn
	}

	g.Lock()
	seat, err := g.AddSeat(req.PlayerID, req.DisplayName, req.BuyIn, !req.AI)
	if errors.Is(err, game.ErrAlreadySeated) {
		// Joining again with the same player ID is a reconnect, not a
		// conflict; hand the existing seat back.
		seat, err = g.SeatByPlayer(req.PlayerID), nil
	}
	var state *GameState
	if err == nil {
		state = buildGameState(g)
	}
	g.Unlock()

	if err != nil {
		s.writeError(w, joinStatus(err), err.Error())
		return
	}
	s.orchestrator.broadcastState(g.ID(), TypeGameState, state)
	s.logger.Info("player joined", "game", g.ID(), "player", req.PlayerID, "seat", seat.ID, "name", req.DisplayName)
	writeJSON(w, http.StatusOK, joinGameResponse{
		GameID:   g.ID(),
		PlayerID: req.PlayerID,
		SeatID:   seat.ID,
		Chips:    seat.Chips,
	})
}

func joinStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrGameFull):
		return http.StatusConflict
	case errors.Is(err, game.ErrGameOver):
		return http.StatusGone
	default:
		return http.StatusBadRequest
	}
}

type playerRequest struct {
	PlayerID string `json:"player_id"`
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	g, ok := s.lookupGame(w, r)
	if !ok {
		return
	}
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	g.Lock()
	err := g.Start(req.PlayerID)
	g.Unlock()

	if err != nil {
		switch {
		case errors.Is(err, game.ErrNotAuthorized):
			s.writeError(w, http.StatusForbidden, "only the creator may start the game")
		case errors.Is(err, game.ErrNotEnoughPlayers), errors.Is(err, game.ErrHandInProgress):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, game.ErrGameOver):
			s.writeError(w, http.StatusGone, err.Error())
		default:
			s.writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	s.logger.Info("game started", "game", g.ID(), "by", req.PlayerID)
	s.orchestrator.StartNextHand(g)
	writeJSON(w, http.StatusOK, summarize(g))
}

func (s *Server) handleLeaveGame(w http.ResponseWriter, r *http.Request) {
	g, ok := s.lookupGame(w, r)
	if !ok {
		return
	}
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	g.Lock()
	seat, res, err := g.RemoveSeat(req.PlayerID)
	var state *GameState
	if err == nil {
		if res != nil && res.OK {
			s.orchestrator.EnqueueResult(g, res)
		} else {
			state = buildGameState(g)
		}
	}
	g.Unlock()

	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if state != nil {
		s.orchestrator.broadcastState(g.ID(), TypeGameState, state)
	}
	s.logger.Info("player left", "game", g.ID(), "player", req.PlayerID, "seat", seat.ID)
	writeJSON(w, http.StatusOK, map[string]int{"seat_id": seat.ID})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	g, ok := s.lookupGame(w, r)
	if !ok {
		return
	}
	n := 20
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}
	records := s.history.Recent(g.ID(), n)

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		if records == nil {
			records = []history.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	case "phh":
		// Recent returns newest first; PHH files read oldest first.
		hands := make([]*phh.HandHistory, 0, len(records))
		for i := len(records) - 1; i >= 0; i-- {
			hands = append(hands, phh.FromRecord(records[i]))
		}
		w.Header().Set("Content-Type", "application/toml; charset=utf-8")
		if err := phh.EncodeAll(w, hands); err != nil {
			s.logger.Error("encode phh history", "game", g.ID(), "error", err)
		}
	default:
		s.writeError(w, http.StatusBadRequest, "unknown format, use json or phh")
	}
}

// handleWebSocket upgrades a subscriber. A player_id query parameter
// binds the session to its seat; without one the session observes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	playerID := r.URL.Query().Get("player_id")

	g, ok := s.registry.Get(gameID)
	if !ok {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	seatID := ObserverSeat
	if playerID != "" {
		g.Lock()
		seat := g.SeatByPlayer(playerID)
		g.Unlock()
		if seat == nil {
			http.Error(w, "player not seated at this game", http.StatusNotFound)
			return
		}
		seatID = seat.ID
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	session := NewSession(conn, s, gameID, playerID, seatID)
	s.hub.Subscribe(session, gameID, seatID, playerID)
	session.Start()

	g.Lock()
	state := buildGameState(g)
	req, seat := buildActionRequest(g)
	g.Unlock()

	if msg, err := NewMessage(TypeGameState, state.Redact(seatID)); err == nil {
		_ = session.Send(msg)
	}
	// Reconnecting into your own turn re-arms the prompt.
	if req != nil && seat.ID == seatID && seat.IsHuman {
		if msg, err := NewMessage(TypeActionRequest, req); err == nil {
			_ = session.Send(msg)
		}
	}
	s.logger.Info("subscriber connected", "game", gameID, "player", playerID, "seat", seatID)
}

// lookupGame resolves the {id} path segment, answering 404 itself.
func (s *Server) lookupGame(w http.ResponseWriter, r *http.Request) (*game.Game, bool) {
	g, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "game not found")
		return nil, false
	}
	return g, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
