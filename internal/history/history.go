// Package history keeps an in-memory archive of completed hands,
// capped to the most recent records across all games.
package history

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/game"
)

// DefaultLimit bounds the archive when no limit is configured.
const DefaultLimit = 1000

// Record is the archived outcome of one completed hand.
type Record struct {
	GameID  string      `json:"game_id"`
	HandID  string      `json:"hand_id"`
	Number  int         `json:"hand_number"`
	Board   []deck.Card `json:"board"`
	FoldWin bool        `json:"fold_win"`

	Table      string         `json:"table,omitempty"`
	Structure  game.Structure `json:"structure"`
	SmallBlind int            `json:"small_blind"`
	BigBlind   int            `json:"big_blind"`
	Ante       int            `json:"ante,omitempty"`

	Seats   []SeatSummary    `json:"seats,omitempty"`
	Actions []game.LogEntry  `json:"actions,omitempty"`
	Results []game.PotResult `json:"results"`
	Payouts map[int]int      `json:"payouts"`

	RakeTotal int       `json:"rake_total"`
	LogLines  []string  `json:"log_lines"`
	EndedAt   time.Time `json:"ended_at"`
}

// SeatSummary bookends one seat across an archived hand. HoleCards are
// present only when the seat showed them.
type SeatSummary struct {
	ID        int         `json:"seat_id"`
	Name      string      `json:"name"`
	Starting  int         `json:"starting_stack"`
	Finishing int         `json:"finishing_stack"`
	HoleCards []deck.Card `json:"hole_cards,omitempty"`
}

// Repository holds recent hand records, oldest evicted first.
type Repository struct {
	mu      sync.Mutex
	limit   int
	records []Record
}

// NewRepository creates an archive keeping at most limit records.
func NewRepository(limit int) *Repository {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Repository{limit: limit}
}

// Append archives a completed hand.
func (r *Repository) Append(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	if len(r.records) > r.limit {
		r.records = r.records[len(r.records)-r.limit:]
	}
}

// Recent returns up to n records for a game, newest first.
func (r *Repository) Recent(gameID string, n int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Record
	for i := len(r.records) - 1; i >= 0 && len(out) < n; i-- {
		if r.records[i].GameID == gameID {
			out = append(out, r.records[i])
		}
	}
	return out
}

// Len reports how many records are held.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Name identifies the repository's persistence snapshot.
func (r *Repository) Name() string {
	return "hand_history"
}

// Snapshot serialises the archive for persistence.
func (r *Repository) Snapshot() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return json.Marshal(r.records)
}

// Restore replaces the archive with a persisted snapshot.
func (r *Repository) Restore(data []byte) error {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	if len(records) > r.limit {
		records = records[len(records)-r.limit:]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = records
	return nil
}
