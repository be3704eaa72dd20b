package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/holdemd/internal/ai"
	"github.com/lox/holdemd/internal/game"
)

// Config is the server configuration, declared in HCL. Games and AI
// seats listed here are created at boot; everything else arrives
// through the lobby API.
type Config struct {
	Server  ServerSettings `hcl:"server,block"`
	Games   []GameConfig   `hcl:"game,block"`
	AISeats []AISeatConfig `hcl:"ai_seat,block"`
}

// ServerSettings is the server-level block.
type ServerSettings struct {
	Listen           string `hcl:"listen,optional"`
	DataDir          string `hcl:"data_dir,optional"`
	LogLevel         string `hcl:"log_level,optional"`
	AIOracleURL      string `hcl:"ai_oracle_url,optional"`
	SnapshotInterval string `hcl:"snapshot_interval,optional"`
}

// SnapshotEvery returns the parsed snapshot interval. Validate has
// already rejected unparseable values.
func (s ServerSettings) SnapshotEvery() time.Duration {
	d, err := time.ParseDuration(s.SnapshotInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GameConfig declares one table to create at boot. The label is the
// game's stable ID, so clients can connect to well-known tables.
type GameConfig struct {
	ID            string  `hcl:"id,label"`
	Name          string  `hcl:"name,optional"`
	Mode          string  `hcl:"mode,optional"`
	Structure     string  `hcl:"structure,optional"`
	SmallBlind    int     `hcl:"small_blind,optional"`
	BigBlind      int     `hcl:"big_blind"`
	Ante          int     `hcl:"ante,optional"`
	MaxSeats      int     `hcl:"max_seats,optional"`
	MinBuyIn      int     `hcl:"min_buy_in,optional"`
	MaxBuyIn      int     `hcl:"max_buy_in,optional"`
	StartingChips int     `hcl:"starting_chips,optional"`
	RakePercent   float64 `hcl:"rake_percentage,optional"`
	RakeCapBB     int     `hcl:"rake_cap_bb,optional"`
	AutoStart     bool    `hcl:"auto_start,optional"`
}

// Build converts the block into the game package's config.
func (gc GameConfig) Build() (game.Config, error) {
	mode, err := game.ParseMode(gc.Mode)
	if err != nil {
		return game.Config{}, fmt.Errorf("game %q: %w", gc.ID, err)
	}
	structure, err := game.ParseStructure(gc.Structure)
	if err != nil {
		return game.Config{}, fmt.Errorf("game %q: %w", gc.ID, err)
	}
	name := gc.Name
	if name == "" {
		name = gc.ID
	}
	return game.Config{
		Name:          name,
		Mode:          mode,
		Structure:     structure,
		SmallBlind:    gc.SmallBlind,
		BigBlind:      gc.BigBlind,
		Ante:          gc.Ante,
		MaxSeats:      gc.MaxSeats,
		MinBuyIn:      gc.MinBuyIn,
		MaxBuyIn:      gc.MaxBuyIn,
		StartingChips: gc.StartingChips,
		Rake: game.RakeConfig{
			Percentage: gc.RakePercent,
			CapBB:      gc.RakeCapBB,
		},
	}, nil
}

// AISeatConfig seats one or more AI players at a declared game.
// Strategy names a built-in policy; when empty the seat uses the
// server's oracle.
type AISeatConfig struct {
	Name     string `hcl:"name,label"`
	Game     string `hcl:"game"`
	BuyIn    int    `hcl:"buy_in,optional"`
	Count    int    `hcl:"count,optional"`
	Strategy string `hcl:"strategy,optional"`
}

// DefaultConfig is what the server runs with when no file exists: one
// no-limit cash table with two AI seats, playable out of the box.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Listen:           ":8080",
			DataDir:          "data",
			LogLevel:         "info",
			SnapshotInterval: "30s",
		},
		Games: []GameConfig{
			{
				ID:         "main",
				Name:       "Main Table",
				SmallBlind: 10,
				BigBlind:   20,
				MaxSeats:   6,
				AutoStart:  true,
			},
		},
		AISeats: []AISeatConfig{
			{Name: "Bot Vermeer", Game: "main", BuyIn: 1000},
			{Name: "Bot Okada", Game: "main", BuyIn: 1000},
		},
	}
}

// LoadConfig reads an HCL configuration file, falling back to the
// defaults when the file does not exist. The environment variables
// DEBUG, DATA_DIR and AI_ORACLE_URL override the file.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(filename); err == nil {
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCLFile(filename)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parse %s: %s", filename, diags.Error())
		}
		cfg = &Config{}
		if diags := gohcl.DecodeBody(file.Body, nil, cfg); diags.HasErrors() {
			return nil, fmt.Errorf("decode %s: %s", filename, diags.Error())
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat %s: %w", filename, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.DataDir == "" {
		c.Server.DataDir = "data"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.SnapshotInterval == "" {
		c.Server.SnapshotInterval = "30s"
	}
	for i := range c.AISeats {
		if c.AISeats[i].Count == 0 {
			c.AISeats[i].Count = 1
		}
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Server.DataDir = v
	}
	if v := os.Getenv("AI_ORACLE_URL"); v != "" {
		c.Server.AIOracleURL = v
	}
	if v := os.Getenv("DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil && debug {
			c.Server.LogLevel = "debug"
		}
	}
}

// Validate rejects configurations the server could not boot with.
func (c *Config) Validate() error {
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Server.LogLevel)
	}
	if _, err := time.ParseDuration(c.Server.SnapshotInterval); err != nil {
		return fmt.Errorf("snapshot_interval: %w", err)
	}

	ids := make(map[string]bool, len(c.Games))
	for _, gc := range c.Games {
		if gc.ID == "" {
			return fmt.Errorf("game block needs a label")
		}
		if ids[gc.ID] {
			return fmt.Errorf("duplicate game %q", gc.ID)
		}
		ids[gc.ID] = true
		if gc.BigBlind <= 0 {
			return fmt.Errorf("game %q: big blind must be positive", gc.ID)
		}
		if _, err := gc.Build(); err != nil {
			return err
		}
	}
	for _, seat := range c.AISeats {
		if seat.Game == "" || !ids[seat.Game] {
			return fmt.Errorf("ai_seat %q references unknown game %q", seat.Name, seat.Game)
		}
		if seat.Count < 1 {
			return fmt.Errorf("ai_seat %q: count must be at least 1", seat.Name)
		}
		if _, ok := ai.PolicyByName(seat.Strategy); !ok {
			return fmt.Errorf("ai_seat %q: unknown strategy %q, have %s",
				seat.Name, seat.Strategy, strings.Join(ai.PolicyNames(), ", "))
		}
	}
	return nil
}
