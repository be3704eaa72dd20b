package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/holdemd/internal/server"
	"github.com/lox/holdemd/internal/tui"
)

var CLI struct {
	Server   string `short:"s" long:"server" default:"http://localhost:8080" help:"Server URL"`
	Game     string `short:"g" long:"game" help:"Game ID to join (defaults to the first listed game)"`
	Name     string `short:"n" long:"name" help:"Display name"`
	Player   string `long:"player" help:"Player ID, for reconnecting to an existing seat"`
	BuyIn    int    `long:"buy-in" help:"Buy-in in chips (defaults to the table minimum)"`
	Observe  bool   `short:"o" long:"observe" help:"Watch without taking a seat"`
	LogFile  string `long:"log-file" default:"holdem-client.log" help:"Log file path"`
	LogLevel string `short:"l" long:"log-level" default:"info" help:"Log level"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("holdem-client"),
		kong.Description("Terminal client for a holdemd table."))

	// The TUI owns the terminal, so logs go to a file.
	logFile, err := os.OpenFile(CLI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Printf("Failed to open log file: %v\n", err)
		kctx.Exit(1)
	}
	defer func() { _ = logFile.Close() }()

	logger := log.New(logFile)
	switch CLI.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	client, err := tui.NewClient(CLI.Server, logger)
	if err != nil {
		fmt.Printf("Bad server URL: %v\n", err)
		kctx.Exit(1)
	}

	gameID := CLI.Game
	if gameID == "" {
		games, err := client.ListGames()
		if err != nil {
			fmt.Printf("Failed to list games: %v\n", err)
			kctx.Exit(1)
		}
		if len(games) == 0 {
			fmt.Println("No games available; create one over the lobby API first.")
			kctx.Exit(1)
		}
		gameID = games[0].ID
		fmt.Printf("Joining %q (%s)\n", games[0].Name, gameID)
	}

	playerID := CLI.Player
	seatID := server.ObserverSeat
	if !CLI.Observe {
		name := CLI.Name
		if name == "" {
			fmt.Print("Enter your player name: ")
			var input string
			_, _ = fmt.Scanln(&input)
			name = strings.TrimSpace(input)
			if name == "" {
				fmt.Println("Player name is required")
				kctx.Exit(1)
			}
		}

		// Join is idempotent: rejoining with the same player ID hands
		// the existing seat back.
		result, err := client.Join(gameID, playerID, name, CLI.BuyIn)
		if err != nil {
			fmt.Printf("Failed to join: %v\n", err)
			kctx.Exit(1)
		}
		playerID = result.PlayerID
		seatID = result.SeatID
		logger.Info("joined game", "game", gameID, "player", playerID, "seat", seatID)
	}

	if err := client.Connect(gameID, playerID); err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
		kctx.Exit(1)
	}
	defer func() { _ = client.Close() }()

	model := tui.NewModel(client, logger, gameID, playerID, seatID)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Printf("TUI error: %v\n", err)
		kctx.Exit(1)
	}

	if playerID != "" {
		fmt.Printf("Disconnected. Reconnect with --game %s --player %s\n", gameID, playerID)
	}
}
