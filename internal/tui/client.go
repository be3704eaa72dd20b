package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/holdemd/internal/game"
	"github.com/lox/holdemd/internal/server"
)

// Client talks to a holdemd server: the lobby over HTTP, the table
// over a websocket. Writes are serialised; reads belong to one reader.
type Client struct {
	baseURL string
	wsURL   string
	httpc   *http.Client
	logger  *log.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn
}

// JoinResult is the server's answer to a join request.
type JoinResult struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
	SeatID   int    `json:"seat_id"`
	Chips    int    `json:"chips"`
}

// GameSummary is one lobby listing.
type GameSummary struct {
	ID         string `json:"game_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	SmallBlind int    `json:"small_blind"`
	BigBlind   int    `json:"big_blind"`
	MaxSeats   int    `json:"max_seats"`
	Seated     int    `json:"seated"`
}

// NewClient builds a client for a server URL. A bare host:port is
// taken as http.
func NewClient(serverURL string, logger *log.Logger) (*Client, error) {
	if !strings.Contains(serverURL, "://") {
		serverURL = "http://" + serverURL
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	ws := *u
	if u.Scheme == "https" {
		ws.Scheme = "wss"
	} else {
		ws.Scheme = "ws"
	}

	return &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		wsURL:   strings.TrimRight(ws.String(), "/"),
		httpc:   &http.Client{Timeout: 10 * time.Second},
		logger:  logger.WithPrefix("client"),
	}, nil
}

// ListGames fetches the lobby listing.
func (c *Client) ListGames() ([]GameSummary, error) {
	resp, err := c.httpc.Get(c.baseURL + "/api/games")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var games []GameSummary
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		return nil, fmt.Errorf("decode games: %w", err)
	}
	return games, nil
}

// Join takes a seat at a game. An empty playerID lets the server mint
// one; buyIn zero takes the table minimum.
func (c *Client) Join(gameID, playerID, displayName string, buyIn int) (*JoinResult, error) {
	body := map[string]any{
		"player_id":    playerID,
		"display_name": displayName,
		"buy_in":       buyIn,
	}
	var result JoinResult
	if err := c.post("/api/games/"+gameID+"/join", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Start asks the server to begin play. Only the game's creator may.
func (c *Client) Start(gameID, playerID string) error {
	return c.post("/api/games/"+gameID+"/start", map[string]any{"player_id": playerID}, nil)
}

// Leave gives up the player's seat.
func (c *Client) Leave(gameID, playerID string) error {
	return c.post("/api/games/"+gameID+"/leave", map[string]any{"player_id": playerID}, nil)
}

func (c *Client) post(path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return fmt.Errorf("server: %s", body.Error)
	}
	return fmt.Errorf("server returned %s", resp.Status)
}

// Connect dials the game's websocket. An empty playerID observes.
func (c *Client) Connect(gameID, playerID string) error {
	wsURL := c.wsURL + "/ws/" + gameID
	if playerID != "" {
		wsURL += "?player_id=" + url.QueryEscape(playerID)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (%s)", wsURL, err, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	c.conn = conn
	c.logger.Info("connected", "game", gameID, "player", playerID)
	return nil
}

// ReadMessage blocks for the next server message.
func (c *Client) ReadMessage() (*server.Message, error) {
	var msg server.Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendAction submits a betting decision.
func (c *Client) SendAction(action game.Action, amount int) error {
	return c.send(server.TypeAction, server.ActionData{Action: action, Amount: amount})
}

// SendChat sends table chat, or a private message when target is set.
func (c *Client) SendChat(text, target string) error {
	return c.send(server.TypeChat, server.ChatSendData{Text: text, Target: target})
}

// SendPing asks for a pong, optionally with a fresh state snapshot.
func (c *Client) SendPing(needsRefresh bool) error {
	return c.send(server.TypePing, server.PingData{Timestamp: time.Now(), NeedsRefresh: needsRefresh})
}

// SendAnimationDone acknowledges one visual step.
func (c *Client) SendAnimationDone(step string) error {
	return c.send(server.TypeAnimationDone, server.AnimationDoneData{StepType: step})
}

func (c *Client) send(msgType server.MessageType, payload any) error {
	msg, err := server.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteJSON(msg)
}

// Close tears the websocket down.
func (c *Client) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}
