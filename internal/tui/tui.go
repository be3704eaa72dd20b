// Package tui is the terminal client: a Bubble Tea program that joins
// a table over the lobby API, follows the game over its websocket and
// submits actions typed at a prompt. Every animated step the server
// waits on is acknowledged as soon as it is rendered.
package tui

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/game"
	"github.com/lox/holdemd/internal/server"
)

// Model is the Bubble Tea model for one table session.
type Model struct {
	client *Client
	logger *log.Logger

	gameID   string
	playerID string
	seatID   int

	logViewport viewport.Model
	input       textinput.Model

	gameLog     []string
	focusedPane int // 0 = log, 1 = input
	width       int
	height      int
	initialized bool
	quitting    bool

	state   *server.GameState
	request *server.ActionRequestData
}

// serverMsg carries one decoded server message into Update.
type serverMsg struct {
	msg *server.Message
}

// connClosedMsg reports the websocket read loop ending.
type connClosedMsg struct {
	err error
}

// statusMsg surfaces the outcome of an async send.
type statusMsg struct {
	text  string
	isErr bool
}

// NewModel creates the model for a connected client. seatID is
// server.ObserverSeat when watching without a seat.
func NewModel(client *Client, logger *log.Logger, gameID, playerID string, seatID int) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "fold, check, call, bet 40, raise 120, allin, /say hi, /quit"
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 100
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.Prompt = "> "

	return &Model{
		client:      client,
		logger:      logger.WithPrefix("tui"),
		gameID:      gameID,
		playerID:    playerID,
		seatID:      seatID,
		logViewport: vp,
		input:       ti,
		focusedPane: 1,
	}
}

// Init starts the websocket read loop.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.readNext())
}

// readNext blocks for the next server message.
func (m *Model) readNext() tea.Cmd {
	return func() tea.Msg {
		msg, err := m.client.ReadMessage()
		if err != nil {
			return connClosedMsg{err: err}
		}
		return serverMsg{msg: msg}
	}
}

// Update handles terminal events and server messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case serverMsg:
		cmds = append(cmds, m.handleServer(msg.msg), m.readNext())

	case connClosedMsg:
		if !m.quitting {
			m.addLog(ErrorStyle.Render(fmt.Sprintf("Connection closed: %v", msg.err)))
			m.addLog(InfoStyle.Render("Press Ctrl+C to exit."))
		}

	case statusMsg:
		if msg.text != "" {
			if msg.isErr {
				m.addLog(ErrorStyle.Render(msg.text))
			} else {
				m.addLog(InfoStyle.Render(msg.text))
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			_ = m.client.Close()
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "tab":
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.input.Focus()
			} else {
				m.focusedPane = 0
				m.input.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				line := strings.TrimSpace(m.input.Value())
				m.input.SetValue("")
				if line != "" {
					model, cmd := m.handleCommand(line)
					return model, tea.Batch(append(cmds, cmd)...)
				}
			}
		case "up", "k":
			if m.focusedPane == 0 {
				m.logViewport.ScrollUp(1)
			}
		case "down", "j":
			if m.focusedPane == 0 {
				m.logViewport.ScrollDown(1)
			}
		case "pgup":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageUp()
			}
		case "pgdown":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageDown()
			}
		}
	}

	var cmd tea.Cmd
	if m.focusedPane == 1 {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleServer folds one server message into the display state and
// returns any acknowledgement to send back.
func (m *Model) handleServer(msg *server.Message) tea.Cmd {
	switch msg.Type {
	case server.TypeGameState, server.TypeChipsDistributed:
		var state server.GameState
		if err := json.Unmarshal(msg.Data, &state); err != nil {
			m.logger.Debug("bad game_state", "error", err)
			return nil
		}
		m.state = &state
		if state.CurrentActorIndex != m.seatID {
			m.request = nil
		}

	case server.TypeActionRequest:
		var req server.ActionRequestData
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return nil
		}
		if req.SeatID == m.seatID {
			m.request = &req
			m.addLog(ActionsStyle.Render("Your turn to act."))
		}

	case server.TypeActionLog:
		var entry server.ActionLogData
		if err := json.Unmarshal(msg.Data, &entry); err != nil {
			return nil
		}
		m.addLog(entry.Text)

	case server.TypeTurnHighlightRemoved:
		// The sidebar highlight follows game_state; nothing to do.

	case server.TypeRoundBetsFinalized:
		var data server.RoundBetsFinalizedData
		if err := json.Unmarshal(msg.Data, &data); err == nil && m.state != nil {
			m.state.Pot = data.Pot
			for i := range m.state.Seats {
				m.state.Seats[i].StreetBet = 0
			}
		}
		return m.ack(server.StepRoundBetsFinalized)

	case server.TypeStreetDealt:
		var data server.StreetDealtData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil
		}
		if m.state != nil {
			m.state.CommunityCards = append(m.state.CommunityCards, data.Cards...)
		}
		return m.ack(server.StreetDealtStep(data.Street))

	case server.TypeShowdownTransition:
		// Reveal sequence begins; individual steps follow.

	case server.TypeShowdownHandsRevealed:
		var data server.ShowdownHandsRevealedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil
		}
		for _, ph := range data.PlayerHands {
			m.addLog(fmt.Sprintf("%s shows %s", m.seatName(ph.SeatID), m.formatCards(ph.Cards)))
		}

	case server.TypePotWinnersDetermined, server.TypeHandResult:
		// Winner log lines arrive separately as action_log entries.

	case server.TypeHandVisuallyConcluded:
		m.request = nil
		return m.ack(server.StepHandVisuallyConcluded)

	case server.TypeKeepalive:
		return func() tea.Msg {
			if err := m.client.SendPing(false); err != nil {
				return statusMsg{text: fmt.Sprintf("ping failed: %v", err), isErr: true}
			}
			return nil
		}

	case server.TypePong:
		// Latency probe answered; nothing to show.

	case server.TypeError:
		var data server.ErrorData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil
		}
		m.addLog(ErrorStyle.Render(fmt.Sprintf("Error (%s): %s", data.Code, data.Message)))

	case server.TypeChat:
		var data server.ChatData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil
		}
		m.addLog(ChatStyle.Render(fmt.Sprintf("[%s] %s", data.From, data.Text)))
	}
	return nil
}

// ack acknowledges one animation step.
func (m *Model) ack(step string) tea.Cmd {
	return func() tea.Msg {
		if err := m.client.SendAnimationDone(step); err != nil {
			return statusMsg{text: fmt.Sprintf("ack failed: %v", err), isErr: true}
		}
		return nil
	}
}

// handleCommand parses one line typed at the prompt.
func (m *Model) handleCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	args := fields[1:]

	switch cmd {
	case "quit", "exit", "q":
		m.quitting = true
		_ = m.client.Close()
		return m, tea.Sequence(tea.ClearScreen, tea.Quit)

	case "say":
		text := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		if text == "" {
			m.addLog(ErrorStyle.Render("Usage: /say <message>"))
			return m, nil
		}
		return m, func() tea.Msg {
			if err := m.client.SendChat(text, ""); err != nil {
				return statusMsg{text: fmt.Sprintf("chat failed: %v", err), isErr: true}
			}
			return nil
		}

	case "msg":
		if len(args) < 2 {
			m.addLog(ErrorStyle.Render("Usage: /msg <player_id> <message>"))
			return m, nil
		}
		target := args[0]
		text := strings.Join(args[1:], " ")
		return m, func() tea.Msg {
			if err := m.client.SendChat(text, target); err != nil {
				return statusMsg{text: fmt.Sprintf("chat failed: %v", err), isErr: true}
			}
			return nil
		}

	case "start":
		return m, func() tea.Msg {
			if err := m.client.Start(m.gameID, m.playerID); err != nil {
				return statusMsg{text: fmt.Sprintf("start failed: %v", err), isErr: true}
			}
			return statusMsg{text: "Game start requested."}
		}

	case "fold":
		return m, m.submit(game.Fold, 0)
	case "check":
		return m, m.submit(game.Check, 0)
	case "call":
		return m, m.submit(game.Call, 0)
	case "allin", "all-in", "shove":
		return m, m.submit(game.AllIn, 0)

	case "bet", "raise":
		amount, err := parseAmount(args)
		if err != nil {
			m.addLog(ErrorStyle.Render(fmt.Sprintf("Usage: %s <amount>", cmd)))
			return m, nil
		}
		action := game.Bet
		if cmd == "raise" {
			action = game.Raise
		}
		return m, m.submit(action, amount)

	default:
		m.addLog(ErrorStyle.Render(fmt.Sprintf("Unknown command %q", cmd)))
		return m, nil
	}
}

// parseAmount reads the numeric argument of bet/raise, tolerating a
// leading "to" as in "raise to 120".
func parseAmount(args []string) (int, error) {
	if len(args) > 0 && strings.EqualFold(args[0], "to") {
		args = args[1:]
	}
	if len(args) == 0 {
		return 0, fmt.Errorf("missing amount")
	}
	amount, err := strconv.Atoi(strings.TrimPrefix(args[0], "$"))
	if err != nil || amount <= 0 {
		return 0, fmt.Errorf("bad amount %q", args[0])
	}
	return amount, nil
}

// submit sends a betting action. The server answers rejections with an
// error message; the request stays armed until an accepted action
// moves the turn on.
func (m *Model) submit(action game.Action, amount int) tea.Cmd {
	if m.seatID == server.ObserverSeat {
		m.addLog(ErrorStyle.Render("Observers cannot act."))
		return nil
	}
	return func() tea.Msg {
		if err := m.client.SendAction(action, amount); err != nil {
			return statusMsg{text: fmt.Sprintf("send failed: %v", err), isErr: true}
		}
		return nil
	}
}

// View renders the three panes: log, sidebar and action bar.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Connecting..."
	}

	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	actionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#04B575")).
		Width(max(m.width-2, 1))
	actionPane := actionStyle.Render(actionContent)

	sidebarContent := m.renderSidebar()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 28)
	paneHeight := max(m.height-actionHeight-4, 1)

	sidebarStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(sidebarWidth).
		Height(paneHeight)
	sidebarPane := sidebarStyle.Render(sidebarContent)

	logWidth := max(m.width-sidebarWidth-6, 1)
	m.logViewport.Width = logWidth
	m.logViewport.Height = paneHeight
	if !m.initialized && logWidth > 1 && paneHeight > 1 {
		m.logViewport.GotoBottom()
		m.initialized = true
	}

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(logWidth).
		Height(paneHeight)
	if m.focusedPane == 0 {
		logStyle = logStyle.BorderForeground(lipgloss.Color("#04B575"))
	}
	logPane := logStyle.Render(m.logViewport.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, topRow, actionPane)
}

// renderSidebar summarises the table: round, pot, board and seats.
func (m *Model) renderSidebar() string {
	var b strings.Builder

	if m.state == nil {
		b.WriteString(InfoStyle.Render("Waiting for game state..."))
		return b.String()
	}

	b.WriteString(HandInfoStyle.Render(m.state.Name))
	b.WriteString("\n")
	b.WriteString(InfoStyle.Render(fmt.Sprintf("%s, blinds %d/%d",
		m.state.CurrentRound, m.state.SmallBlind, m.state.BigBlind)))
	b.WriteString("\n\n")

	b.WriteString(WarningStyle.Render(fmt.Sprintf("Pot: $%d", m.state.Pot)))
	if m.state.CurrentBet > 0 {
		b.WriteString(WarningStyle.Render(fmt.Sprintf("  Bet: $%d", m.state.CurrentBet)))
	}
	b.WriteString("\n")
	if len(m.state.CommunityCards) > 0 {
		b.WriteString("Board: " + m.formatCards(m.state.CommunityCards))
	}
	b.WriteString("\n\n")

	for _, seat := range m.state.Seats {
		marker := "  "
		if seat.ID == m.state.CurrentActorIndex {
			marker = ActionsStyle.Render("→ ")
		}
		name := seat.DisplayName
		if seat.ID == m.state.ButtonPosition {
			name += " (D)"
		}
		if seat.ID == m.seatID {
			name += " *"
		}
		line := fmt.Sprintf("%s%s: $%d", marker, name, seat.Chips)
		switch seat.Status {
		case game.SeatFolded:
			line += InfoStyle.Render(" folded")
		case game.SeatAllIn:
			line += WarningStyle.Render(" all-in")
		case game.SeatOut:
			line += InfoStyle.Render(" out")
		}
		if seat.StreetBet > 0 {
			line += fmt.Sprintf(" [%d]", seat.StreetBet)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// renderActionPane shows the hand, the open options and the prompt.
func (m *Model) renderActionPane() string {
	var b strings.Builder

	if m.request != nil {
		if cards := m.myHoleCards(); len(cards) > 0 {
			b.WriteString(HandInfoStyle.Render("Hand: " + m.formatCards(cards)))
			b.WriteString("  ")
		}
		b.WriteString(m.renderOptions())
		b.WriteString("\n")
	} else if m.seatID == server.ObserverSeat {
		b.WriteString(InfoStyle.Render("Observing."))
		b.WriteString("\n")
	} else {
		b.WriteString(InfoStyle.Render("Waiting..."))
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.focusedPane == 0 {
		b.WriteString(HelpStyle.Render("Log focused: ↑↓ scroll, Tab to input"))
	} else {
		b.WriteString(HelpStyle.Render("Tab to scroll log, Enter to submit, Ctrl+C to quit"))
	}
	return b.String()
}

// renderOptions lists the legal actions with their amounts.
func (m *Model) renderOptions() string {
	var opts []string
	for _, action := range m.request.Options {
		switch action {
		case game.Fold:
			opts = append(opts, ErrorStyle.Render("[fold]"))
		case game.Check:
			opts = append(opts, SuccessStyle.Render("[check]"))
		case game.Call:
			opts = append(opts, SuccessStyle.Render(fmt.Sprintf("[call $%d]", m.request.CallAmount)))
		case game.Bet:
			opts = append(opts, WarningStyle.Render(fmt.Sprintf("[bet $%d-$%d]", m.request.MinRaise, m.request.MaxRaise)))
		case game.Raise:
			opts = append(opts, WarningStyle.Render(fmt.Sprintf("[raise to $%d-$%d]", m.request.MinRaise, m.request.MaxRaise)))
		case game.AllIn:
			opts = append(opts, WarningStyle.Render("[allin]"))
		}
	}
	return ActionsStyle.Render("Actions: ") + strings.Join(opts, " ")
}

func (m *Model) myHoleCards() []deck.Card {
	if m.state == nil {
		return nil
	}
	for _, seat := range m.state.Seats {
		if seat.ID == m.seatID {
			return seat.HoleCards
		}
	}
	return nil
}

func (m *Model) seatName(seatID int) string {
	if m.state != nil {
		for _, seat := range m.state.Seats {
			if seat.ID == seatID {
				return seat.DisplayName
			}
		}
	}
	return fmt.Sprintf("Seat %d", seatID)
}

// formatCards colours cards by suit.
func (m *Model) formatCards(cards []deck.Card) string {
	parts := make([]string, 0, len(cards))
	for _, card := range cards {
		if card.IsRed() {
			parts = append(parts, RedCardStyle.Render(card.Pretty()))
		} else {
			parts = append(parts, BlackCardStyle.Render(card.Pretty()))
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// addLog appends one line and keeps the viewport pinned to the tail.
func (m *Model) addLog(entry string) {
	m.gameLog = append(m.gameLog, entry)
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}
