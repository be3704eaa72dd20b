// Package store persists server state as JSON snapshots under the
// data directory. Each repository owns one file; writes go through an
// atomic rename so a crash mid-save never leaves a torn snapshot.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdemd/internal/fileutil"
)

// DefaultInterval is the save cadence when none is configured.
const DefaultInterval = 30 * time.Second

// Repository is a snapshot-able piece of server state.
type Repository interface {
	// Name is the snapshot's file stem under the data directory.
	Name() string
	Snapshot() ([]byte, error)
	Restore([]byte) error
}

// Store saves and restores a fixed set of repositories.
type Store struct {
	dir    string
	logger *log.Logger
	clock  quartz.Clock
	repos  []Repository
}

// New creates a store rooted at dir.
func New(dir string, logger *log.Logger, clock quartz.Clock, repos ...Repository) *Store {
	return &Store{
		dir:    dir,
		logger: logger.WithPrefix("store"),
		clock:  clock,
		repos:  repos,
	}
}

// LoadAll restores every repository that has a snapshot on disk. A
// missing file is a fresh start; a malformed one is logged and skipped
// so a single bad snapshot cannot keep the server down.
func (s *Store) LoadAll() {
	for _, repo := range s.repos {
		path := s.path(repo)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot", "repo", repo.Name(), "error", err)
			continue
		}
		if err := repo.Restore(data); err != nil {
			s.logger.Warn("skipping malformed snapshot", "repo", repo.Name(), "error", err)
			continue
		}
		s.logger.Info("restored snapshot", "repo", repo.Name(), "bytes", len(data))
	}
}

// SaveAll snapshots every repository and writes the files atomically,
// one goroutine per repository.
func (s *Store) SaveAll() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	var g errgroup.Group
	for _, repo := range s.repos {
		g.Go(func() error {
			data, err := repo.Snapshot()
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", repo.Name(), err)
			}
			if err := fileutil.WriteFileAtomic(s.path(repo), data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", repo.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Run saves on a fixed interval until ctx is done, then saves once
// more so a clean shutdown never loses state. Tick failures are logged
// and the ticker keeps going.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := s.clock.TickerFunc(ctx, interval, func() error {
		if err := s.SaveAll(); err != nil {
			s.logger.Error("periodic save failed", "error", err)
		}
		return nil
	}, "store")

	// Wait returns once ctx is cancelled.
	_ = ticker.Wait()

	if err := s.SaveAll(); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	s.logger.Info("state saved", "dir", s.dir)
	return nil
}

func (s *Store) path(repo Repository) string {
	return filepath.Join(s.dir, repo.Name()+".json")
}
