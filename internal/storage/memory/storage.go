package memory

import (
	"context"
	"sync"

	"github.com/mcoot/discordgate/internal/model"
	"github.com/mcoot/discordgate/internal/storage"
)

// Storage is an in-memory implementation of the link store. Links do not
// survive a restart; it is intended for tests and throwaway setups.
type Storage struct {
	mu sync.RWMutex

	links        map[model.PlayerID]model.DiscordID
	discordIndex map[model.DiscordID]model.PlayerID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		links:        make(map[model.PlayerID]model.DiscordID),
		discordIndex: make(map[model.DiscordID]model.PlayerID),
	}
}

// Ensure Storage implements the interface
var _ storage.LinkStore = (*Storage)(nil)

func (s *Storage) IsLinked(ctx context.Context, id model.PlayerID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.links[id]
	return ok, nil
}

func (s *Storage) Link(ctx context.Context, id model.PlayerID, discordID model.DiscordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.links[id]; ok {
		delete(s.discordIndex, old)
	}
	s.links[id] = discordID
	s.discordIndex[discordID] = id
	return nil
}

func (s *Storage) Unlink(ctx context.Context, id model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if discordID, ok := s.links[id]; ok {
		delete(s.links, id)
		delete(s.discordIndex, discordID)
	}
	return nil
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
	defer s.mu.RUnlock()
	links := make([]model.VerifiedLink, 0, len(s.links))
	for id, discordID := range s.links {
		links = append(links, model.VerifiedLink{PlayerID: id, DiscordID: discordID})
	}
	return links, nil
}

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}
