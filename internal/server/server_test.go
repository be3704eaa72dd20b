package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdemd/internal/game"
	"github.com/lox/holdemd/internal/history"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Games = nil
	cfg.AISeats = nil
	cfg.Server.DataDir = t.TempDir()
	cfg.Server.LogLevel = "error"

	srv := New(cfg, testLogger(), opts...)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(func() {
		srv.hub.CloseAll()
		ts.Close()
	})
	return srv, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func createTestGame(t *testing.T, baseURL string, body map[string]any) string {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/games", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"game_id"`
	}
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)
	return created.ID
}

func joinTestGame(t *testing.T, baseURL, gameID, playerID string, buyIn int) joinGameResponse {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/games/"+gameID+"/join", map[string]any{
		"player_id":    playerID,
		"display_name": strings.ToUpper(playerID[:1]) + playerID[1:],
		"buy_in":       buyIn,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var joined joinGameResponse
	decodeBody(t, resp, &joined)
	return joined
}

func dialWS(t *testing.T, ts *httptest.Server, gameID, playerID string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + gameID
	if playerID != "" {
		u += "?player_id=" + playerID
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil pumps messages until one of the wanted type arrives,
// acknowledging animation steps along the way like a real client.
func readUntil(t *testing.T, conn *websocket.Conn, want MessageType) *Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", want)
		ackAnimation(t, conn, &msg)
		if msg.Type == want {
			return &msg
		}
	}
}

func ackAnimation(t *testing.T, conn *websocket.Conn, msg *Message) {
	t.Helper()
	var step string
	switch msg.Type {
	case TypeRoundBetsFinalized:
		step = StepRoundBetsFinalized
	case TypeStreetDealt:
		var data StreetDealtData
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		step = StreetDealtStep(data.Street)
	default:
		return
	}
	ack, err := NewMessage(TypeAnimationDone, AnimationDoneData{StepType: step})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ack))
}

func sendWS(t *testing.T, conn *websocket.Conn, msgType MessageType, payload any) {
	t.Helper()
	msg, err := NewMessage(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	var health struct {
		Status string `json:"status"`
		Games  int    `json:"games"`
	}
	decodeBody(t, resp, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 0, health.Games)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "holdemd_")
}

func TestLobbyFlow(t *testing.T) {
	_, ts := newTestServer(t)

	gameID := createTestGame(t, ts.URL, map[string]any{
		"name":        "Lobby Table",
		"small_blind": 5,
		"big_blind":   10,
		"max_seats":   4,
		"creator_id":  "alice",
	})

	resp, err := http.Get(ts.URL + "/api/games")
	require.NoError(t, err)
	var listed []gameSummary
	decodeBody(t, resp, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, gameID, listed[0].ID)
	assert.Equal(t, "Lobby Table", listed[0].Name)
	assert.Equal(t, game.StatusWaiting, listed[0].Status)

	alice := joinTestGame(t, ts.URL, gameID, "alice", 500)
	assert.Equal(t, 0, alice.SeatID)
	assert.Equal(t, 500, alice.Chips)
	bob := joinTestGame(t, ts.URL, gameID, "bob", 500)
	assert.Equal(t, 1, bob.SeatID)

	// Joining again with the same player ID is a reconnect and hands
	// the same seat back without a second buy-in.
	again := joinTestGame(t, ts.URL, gameID, "alice", 500)
	assert.Equal(t, 0, again.SeatID)
	assert.Equal(t, 500, again.Chips)

	// Only the creator may start.
	resp = postJSON(t, ts.URL+"/api/games/"+gameID+"/start", map[string]any{"player_id": "bob"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/games/"+gameID+"/start", map[string]any{"player_id": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started gameSummary
	decodeBody(t, resp, &started)
	assert.Equal(t, game.StatusActive, started.Status)

	resp = postJSON(t, ts.URL+"/api/games/"+gameID+"/start", map[string]any{"player_id": "alice"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateGameValidation(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/games", map[string]any{"name": "Broken"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Contains(t, body["error"], "big blind")

	resp, err := http.Post(ts.URL+"/api/games", "application/json", strings.NewReader("{{{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJoinValidation(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/games/nope/join", map[string]any{"player_id": "alice"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	gameID := createTestGame(t, ts.URL, map[string]any{
		"big_blind":  10,
		"max_seats":  2,
		"creator_id": "alice",
	})

	resp = postJSON(t, ts.URL+"/api/games/"+gameID+"/join", map[string]any{
		"player_id": "alice",
		"buy_in":    1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Contains(t, body["error"], "buy-in")

	joinTestGame(t, ts.URL, gameID, "alice", 500)
	joinTestGame(t, ts.URL, gameID, "bob", 500)
	resp = postJSON(t, ts.URL+"/api/games/"+gameID+"/join", map[string]any{
		"player_id": "carol",
		"buy_in":    500,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestHistoryEndpointFormats(t *testing.T) {
	_, ts := newTestServer(t)
	gameID := createTestGame(t, ts.URL, map[string]any{
		"big_blind":  10,
		"creator_id": "alice",
	})

	resp, err := http.Get(ts.URL + "/api/games/" + gameID + "/history")
	require.NoError(t, err)
	var records []history.Record
	decodeBody(t, resp, &records)
	assert.Empty(t, records)

	resp, err = http.Get(ts.URL + "/api/games/" + gameID + "/history?format=phh")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/toml")
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/games/" + gameID + "/history?format=csv")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/games/" + gameID + "/history?n=0")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestWebSocketPersonalisesState(t *testing.T) {
	srv, ts := newTestServer(t)
	gameID := createTestGame(t, ts.URL, map[string]any{
		"small_blind": 5,
		"big_blind":   10,
		"creator_id":  "alice",
	})
	joinTestGame(t, ts.URL, gameID, "alice", 500)
	joinTestGame(t, ts.URL, gameID, "bob", 500)

	resp := postJSON(t, ts.URL+"/api/games/"+gameID+"/start", map[string]any{"player_id": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	waitFor(t, "first hand to deal", func() bool {
		g, ok := srv.registry.Get(gameID)
		if !ok {
			return false
		}
		g.Lock()
		defer g.Unlock()
		return g.Hand() != nil
	})

	// A seated player connecting mid-hand sees their own cards and, on
	// their turn, gets the action prompt re-armed.
	aliceConn := dialWS(t, ts, gameID, "alice")
	stateMsg := readUntil(t, aliceConn, TypeGameState)
	var state GameState
	require.NoError(t, json.Unmarshal(stateMsg.Data, &state))
	require.Len(t, state.Seats, 2)
	for _, s := range state.Seats {
		if s.ID == 0 {
			assert.Len(t, s.HoleCards, 2, "own cards are visible")
		} else {
			assert.Empty(t, s.HoleCards, "opponent cards stay hidden")
		}
	}
	prompt := readUntil(t, aliceConn, TypeActionRequest)
	var req ActionRequestData
	require.NoError(t, json.Unmarshal(prompt.Data, &req))
	assert.Equal(t, 0, req.SeatID)

	// Observers see no hole cards at all.
	obsConn := dialWS(t, ts, gameID, "")
	stateMsg = readUntil(t, obsConn, TypeGameState)
	require.NoError(t, json.Unmarshal(stateMsg.Data, &state))
	for _, s := range state.Seats {
		assert.Empty(t, s.HoleCards, "observer sees seat %d cards", s.ID)
	}

	// Unknown game IDs fail the upgrade.
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/nope"
	_, badResp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	if badResp != nil {
		assert.Equal(t, http.StatusNotFound, badResp.StatusCode)
		badResp.Body.Close()
	}
}

func TestPlayFoldHandOverWebSocket(t *testing.T) {
	srv, ts := newTestServer(t)
	gameID := createTestGame(t, ts.URL, map[string]any{
		"name":        "WS Table",
		"small_blind": 5,
		"big_blind":   10,
		"creator_id":  "alice",
	})
	joinTestGame(t, ts.URL, gameID, "alice", 500)
	joinTestGame(t, ts.URL, gameID, "bob", 500)

	aliceConn := dialWS(t, ts, gameID, "alice")
	bobConn := dialWS(t, ts, gameID, "bob")
	readUntil(t, aliceConn, TypeGameState)
	readUntil(t, bobConn, TypeGameState)

	resp := postJSON(t, ts.URL+"/api/games/"+gameID+"/start", map[string]any{"player_id": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Seat 0 holds the button and posts the small blind heads-up, so
	// the first prompt lands on alice.
	prompt := readUntil(t, aliceConn, TypeActionRequest)
	var req ActionRequestData
	require.NoError(t, json.Unmarshal(prompt.Data, &req))
	require.Equal(t, 0, req.SeatID)
	assert.Equal(t, 5, req.CallAmount)

	sendWS(t, aliceConn, TypeAction, ActionData{Action: game.Fold})

	resultMsg := readUntil(t, bobConn, TypeHandResult)
	var result HandResultData
	require.NoError(t, json.Unmarshal(resultMsg.Data, &result))
	require.Len(t, result.Winners, 1)
	assert.Contains(t, result.Winners[0], "Bob")
	assert.Len(t, result.Players, 2)
	assert.Empty(t, result.Board, "a preflop fold deals no board")
	readUntil(t, bobConn, TypeHandVisuallyConcluded)

	waitFor(t, "history record", func() bool {
		return len(srv.history.Recent(gameID, 1)) == 1
	})

	resp, err := http.Get(ts.URL + "/api/games/" + gameID + "/history")
	require.NoError(t, err)
	var records []history.Record
	decodeBody(t, resp, &records)
	require.Len(t, records, 1)
	assert.True(t, records[0].FoldWin)
	assert.Equal(t, "WS Table", records[0].Table)

	resp, err = http.Get(ts.URL + "/api/games/" + gameID + "/history?format=phh")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `variant = "NT"`)
	assert.Contains(t, string(body), `"p1 f"`)
}

func TestObserverCannotAct(t *testing.T) {
	_, ts := newTestServer(t)
	gameID := createTestGame(t, ts.URL, map[string]any{
		"big_blind":  10,
		"creator_id": "alice",
	})

	obsConn := dialWS(t, ts, gameID, "")
	readUntil(t, obsConn, TypeGameState)

	sendWS(t, obsConn, TypeAction, ActionData{Action: game.Fold})

	errMsg := readUntil(t, obsConn, TypeError)
	var data ErrorData
	require.NoError(t, json.Unmarshal(errMsg.Data, &data))
	assert.Equal(t, string(game.ErrKindNotAuthorized), data.Code)
}

func TestChatDeliveryOverWebSocket(t *testing.T) {
	_, ts := newTestServer(t)
	gameID := createTestGame(t, ts.URL, map[string]any{
		"big_blind":  10,
		"creator_id": "alice",
	})
	joinTestGame(t, ts.URL, gameID, "alice", 500)
	joinTestGame(t, ts.URL, gameID, "bob", 500)

	aliceConn := dialWS(t, ts, gameID, "alice")
	bobConn := dialWS(t, ts, gameID, "bob")
	readUntil(t, aliceConn, TypeGameState)
	readUntil(t, bobConn, TypeGameState)

	// Table chat reaches everyone, the sender included.
	sendWS(t, aliceConn, TypeChat, ChatSendData{Text: "gg"})
	chatMsg := readUntil(t, bobConn, TypeChat)
	var chat ChatData
	require.NoError(t, json.Unmarshal(chatMsg.Data, &chat))
	assert.Equal(t, "Alice", chat.From)
	assert.Equal(t, "gg", chat.Text)
	chatMsg = readUntil(t, aliceConn, TypeChat)
	require.NoError(t, json.Unmarshal(chatMsg.Data, &chat))
	assert.Equal(t, "Alice", chat.From)

	// Private chat goes to the target only.
	sendWS(t, bobConn, TypeChat, ChatSendData{Text: "nice fold", Target: "alice"})
	chatMsg = readUntil(t, aliceConn, TypeChat)
	require.NoError(t, json.Unmarshal(chatMsg.Data, &chat))
	assert.Equal(t, "Bob", chat.From)
	assert.Equal(t, "nice fold", chat.Text)
}

func TestPingPong(t *testing.T) {
	_, ts := newTestServer(t)
	gameID := createTestGame(t, ts.URL, map[string]any{
		"big_blind":  10,
		"creator_id": "alice",
	})

	conn := dialWS(t, ts, gameID, "")
	readUntil(t, conn, TypeGameState)

	sent := time.Now().UTC().Truncate(time.Millisecond)
	sendWS(t, conn, TypePing, PingData{Timestamp: sent})
	pongMsg := readUntil(t, conn, TypePong)
	var pong PongData
	require.NoError(t, json.Unmarshal(pongMsg.Data, &pong))
	assert.True(t, pong.Timestamp.Equal(sent), "pong echoes the ping timestamp")
}

func TestBootstrapSeatsConfiguredTables(t *testing.T) {
	// The mock clock freezes the auto-advance timer, so the autostarted
	// table plays exactly one hand.
	mock := quartz.NewMock(t)
	cfg := DefaultConfig()
	cfg.Server.DataDir = t.TempDir()
	cfg.Server.LogLevel = "error"
	cfg.Games = []GameConfig{{
		ID:         "main",
		Name:       "Main Table",
		SmallBlind: 10,
		BigBlind:   20,
		MaxSeats:   4,
		AutoStart:  true,
	}}
	cfg.AISeats = []AISeatConfig{{
		Name:     "Bot",
		Game:     "main",
		Count:    2,
		BuyIn:    600,
		Strategy: "calling-station",
	}}
	require.NoError(t, cfg.Validate())

	srv := New(cfg, testLogger(), WithClock(mock))
	t.Cleanup(srv.hub.CloseAll)
	require.NoError(t, srv.Bootstrap())

	g, ok := srv.registry.Get("main")
	require.True(t, ok, "configured table exists")

	g.Lock()
	seats := g.Seats()
	require.Len(t, seats, 2)
	for _, s := range seats {
		assert.False(t, s.IsHuman)
		assert.True(t, strings.HasPrefix(s.DisplayName, "Bot "), "numbered seat name, got %q", s.DisplayName)
	}
	g.Unlock()

	// The unwatched table plays the hand through without waiting on
	// animations; calling stations check and call down to showdown.
	waitFor(t, "first hand to finish", func() bool {
		return len(srv.history.Recent("main", 1)) == 1
	})
	rec := srv.history.Recent("main", 1)[0]
	assert.False(t, rec.FoldWin, "calling stations never fold")
	assert.Len(t, rec.Board, 5)

	finishing := 0
	for _, s := range rec.Seats {
		assert.Equal(t, 600, s.Starting)
		finishing += s.Finishing
	}
	assert.Equal(t, 1200, finishing, "chips are conserved")

	g.Lock()
	total := 0
	for _, s := range g.Seats() {
		total += s.Chips
	}
	g.Unlock()
	assert.Equal(t, 1200, total)
}

func TestBootstrapRestoresSnapshots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.DataDir = t.TempDir()
	cfg.Server.LogLevel = "error"
	cfg.Games = nil
	cfg.AISeats = nil

	srv := New(cfg, testLogger())
	g, err := srv.registry.CreateWithID("g-persist", game.Config{
		Name:       "Persist Table",
		SmallBlind: 5,
		BigBlind:   10,
		MaxSeats:   6,
	}, "alice")
	require.NoError(t, err)
	g.Lock()
	_, err = g.AddSeat("alice", "Alice", 750, true)
	g.Unlock()
	require.NoError(t, err)
	require.NoError(t, srv.store.SaveAll())

	// A fresh server over the same data directory finds the table.
	srv2 := New(cfg, testLogger())
	t.Cleanup(srv2.hub.CloseAll)
	require.NoError(t, srv2.Bootstrap())

	restored, ok := srv2.registry.Get("g-persist")
	require.True(t, ok, "snapshot restored on boot")
	restored.Lock()
	defer restored.Unlock()
	assert.Equal(t, "Persist Table", restored.Config().Name)
	seats := restored.Seats()
	require.Len(t, seats, 1)
	assert.Equal(t, "alice", seats[0].PlayerID)
	assert.Equal(t, 750, seats[0].Chips)
}
