// Package session keeps short-lived per-user conversation state, such as the
// first half of a swap selection, on top of any scs session backend.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
)

// Entries written without a TTL still need an expiry for the scs backends.
const noExpiry = 100 * 365 * 24 * time.Hour

var ErrNoSelection = errors.New("no swap selection in progress")

// SwapSelection is the participant chosen first in a swap.
type SwapSelection struct {
	ParticipantID int64     `json:"participant_id"`
	Label         string    `json:"label"`
	SelectedAt    time.Time `json:"selected_at"`
}

type Store struct {
	backend scs.Store
	ttl     time.Duration
}

// NewStore wraps backend; ttl <= 0 keeps selections until they are cleared.
func NewStore(backend scs.Store, ttl time.Duration) *Store {
	return &Store{backend: backend, ttl: ttl}
}

func SwapKey(userID int64, tournamentID uuid.UUID) string {
	return fmt.Sprintf("swap:%d:%s", userID, tournamentID)
}

func (s *Store) GetSwap(ctx context.Context, userID int64, tournamentID uuid.UUID) (*SwapSelection, error) {
	b, found, err := s.find(ctx, SwapKey(userID, tournamentID))
	if err != nil {
		return nil, fmt.Errorf("load swap selection: %w", err)
	}
	if !found {
		return nil, ErrNoSelection
	}

	var sel SwapSelection
	if err := json.Unmarshal(b, &sel); err != nil {
		// Unreadable entries are dropped rather than blocking the user forever.
		_ = s.delete(ctx, SwapKey(userID, tournamentID))
		return nil, ErrNoSelection
	}
	return &sel, nil
}

func (s *Store) PutSwap(ctx context.Context, userID int64, tournamentID uuid.UUID, sel SwapSelection) error {
	if sel.SelectedAt.IsZero() {
		sel.SelectedAt = time.Now().UTC()
	}
	b, err := json.Marshal(sel)
	if err != nil {
		return err
	}

	ttl := s.ttl
	if ttl <= 0 {
		ttl = noExpiry
	}
	if err := s.commit(ctx, SwapKey(userID, tournamentID), b, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("save swap selection: %w", err)
	}
	return nil
}

// ClearSwap is a no-op when nothing is stored.
func (s *Store) ClearSwap(ctx context.Context, userID int64, tournamentID uuid.UUID) error {
	if err := s.delete(ctx, SwapKey(userID, tournamentID)); err != nil {
		return fmt.Errorf("clear swap selection: %w", err)
	}
	return nil
}

func (s *Store) find(ctx context.Context, key string) ([]byte, bool, error) {
	if cs, ok := s.backend.(scs.CtxStore); ok {
		return cs.FindCtx(ctx, key)
	}
	return s.backend.Find(key)
}

func (s *Store) commit(ctx context.Context, key string, b []byte, expiry time.Time) error {
	if cs, ok := s.backend.(scs.CtxStore); ok {
		return cs.CommitCtx(ctx, key, b, expiry)
	}
	return s.backend.Commit(key, b, expiry)
}

func (s *Store) delete(ctx context.Context, key string) error {
	if cs, ok := s.backend.(scs.CtxStore); ok {
		return cs.DeleteCtx(ctx, key)
	}
	return s.backend.Delete(key)
}
