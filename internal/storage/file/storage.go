package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mcoot/discordgate/internal/model"
	"github.com/mcoot/discordgate/internal/storage"
)

// Storage is a file-backed implementation of the link store. The whole
// link table is held in memory and rewritten to disk on every mutation.
// Write volume is bounded by the human verification rate, so whole-file
// snapshots are cheap enough and keep the on-disk format trivial: a
// single JSON object of player ID to Discord ID.
type Storage struct {
	path   string
	logger *slog.Logger

	mu           sync.RWMutex
	links        map[model.PlayerID]model.DiscordID
	discordIndex map[model.DiscordID]model.PlayerID
}

// New creates a file storage instance, loading any existing snapshot.
// A missing file starts empty; a malformed file is a hard error so a
// corrupt snapshot never silently drops verified players.
func New(path string, logger *slog.Logger) (*Storage, error) {
	s := &Storage{
		path:         path,
		logger:       logger,
		links:        make(map[model.PlayerID]model.DiscordID),
		discordIndex: make(map[model.DiscordID]model.PlayerID),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Ensure Storage implements the interface
var _ storage.LinkStore = (*Storage)(nil)

func (s *Storage) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading link file %s: %w", s.path, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing link file %s: %w", s.path, err)
	}

	for playerID, discordID := range raw {
		id := model.PlayerID(playerID)
		if err := id.Validate(); err != nil {
			return fmt.Errorf("link file %s: invalid player id %q: %w", s.path, playerID, err)
		}
		s.links[id] = model.DiscordID(discordID)
		s.discordIndex[model.DiscordID(discordID)] = id
	}

	s.logger.Info("loaded verified links",
		slog.String("path", s.path),
		slog.Int("count", len(s.links)))
	return nil
}

// snapshot marshals the current link table. Called with at least a read
// lock held; the disk write itself happens outside the lock so a slow
// filesystem cannot stall concurrent lookups.
func (s *Storage) snapshot() ([]byte, error) {
	raw := make(map[string]string, len(s.links))
	for id, discordID := range s.links {
		raw[string(id)] = string(discordID)
	}
	return json.MarshalIndent(raw, "", "  ")
}

func (s *Storage) persist(data []byte) error {
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating link file directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing link file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing link file: %w", err)
	}
	return nil
}

func (s *Storage) IsLinked(ctx context.Context, id model.PlayerID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.links[id]
	return ok, nil
}

func (s *Storage) Link(ctx context.Context, id model.PlayerID, discordID model.DiscordID) error {
	s.mu.Lock()
	if old, ok := s.links[id]; ok {
		delete(s.discordIndex, old)
	}
	s.links[id] = discordID
	s.discordIndex[discordID] = id
	data, err := s.snapshot()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return s.persist(data)
}

func (s *Storage) Unlink(ctx context.Context, id model.PlayerID) error {
	s.mu.Lock()
	discordID, ok := s.links[id]
	if ok {
		delete(s.links, id)
		delete(s.discordIndex, discordID)
	}
	data, err := s.snapshot()
	s.mu.Unlock()

	if !ok {
		return nil
	}
	if err != nil {
		return err
	}
	return s.persist(data)
}

func (s *Storage) DiscordID(ctx context.Context, id model.PlayerID) (model.DiscordID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	discordID, ok := s.links[id]
	if !ok {
		return "", model.ErrLinkNotFound
	}
	return discordID, nil
}

func (s *Storage) PlayerByDiscordID(ctx context.Context, discordID model.DiscordID) (model.PlayerID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.discordIndex[discordID]
	if !ok {
		return "", model.ErrLinkNotFound
	}
	return id, nil
}

func (s *Storage) Links(ctx context.Context) ([]model.VerifiedLink, error) {
	s.mu.RLock()
	links := make([]model.VerifiedLink, 0, len(s.links))
	for id, discordID := range s.links {
		links = append(links, model.VerifiedLink{PlayerID: id, DiscordID: discordID})
	}
	s.mu.RUnlock()

	sort.Slice(links, func(i, j int) bool {
		return links[i].PlayerID < links[j].PlayerID
	})
	return links, nil
}

// Close is a no-op; every mutation is already flushed to disk
func (s *Storage) Close() error {
	return nil
}
