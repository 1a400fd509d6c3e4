// Package memory implements the challenge store on an in-process map
// with per-pair mutexes. It satisfies the same atomicity contracts as the
// PostgreSQL store and backs tests and single-node deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sendratama/otpgate/internal/challenge/entity"
	"github.com/sendratama/otpgate/internal/pkg/goerror"
)

type pairKey struct {
	subjectID string
	purpose   entity.Purpose
}

type Store struct {
	mu         sync.RWMutex
	challenges map[int64]*entity.Challenge

	pairMu sync.Mutex
	pairs  map[pairKey]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		challenges: make(map[int64]*entity.Challenge),
		pairs:      make(map[pairKey]*sync.Mutex),
	}
}

// lockPair serializes all writers for one (subject, purpose) pair, the
// in-memory equivalent of the advisory lock in the SQL store.
func (s *Store) lockPair(key pairKey) *sync.Mutex {
	s.pairMu.Lock()
	defer s.pairMu.Unlock()

	mu, ok := s.pairs[key]
	if !ok {
		mu = &sync.Mutex{}
		s.pairs[key] = mu
	}
	return mu
}

func (s *Store) CreateAndSupersede(ctx context.Context, ch entity.Challenge, cooldown time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := pairKey{subjectID: ch.SubjectID, purpose: ch.Purpose}
	mu := s.lockPair(key)
	mu.Lock()
	defer mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cooldown > 0 {
		if last, ok := s.lastCreatedLocked(key); ok {
			if elapsed := ch.CreatedAt.Sub(last); elapsed < cooldown {
				return &entity.ThrottledError{RetryAfter: cooldown - elapsed}
			}
		}
	}

	for _, existing := range s.challenges {
		if existing.SubjectID == ch.SubjectID && existing.Purpose == ch.Purpose && !existing.Consumed {
			existing.Consumed = true
		}
	}

	stored := ch
	s.challenges[ch.ID] = &stored
	return nil
}

func (s *Store) FetchActive(ctx context.Context, subjectID string, purpose entity.Purpose) (*entity.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *entity.Challenge
	for _, ch := range s.challenges {
		if ch.SubjectID != subjectID || ch.Purpose != purpose || ch.Consumed {
			continue
		}
		if latest == nil || ch.CreatedAt.After(latest.CreatedAt) {
			latest = ch
		}
	}

	if latest == nil {
		return nil, goerror.ErrNotFound
	}

	cp := *latest
	return &cp, nil
}

func (s *Store) IncrementAttemptsAndFetch(ctx context.Context, id int64) (*entity.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}

	ch.Attempts++
	cp := *ch
	return &cp, nil
}

func (s *Store) MarkConsumed(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.challenges[id]; ok {
		ch.Consumed = true
	}
	return nil
}

func (s *Store) LastCreatedAt(ctx context.Context, subjectID string, purpose entity.Purpose) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	last, ok := s.lastCreatedLocked(pairKey{subjectID: subjectID, purpose: purpose})
	if !ok {
		return time.Time{}, goerror.ErrNotFound
	}
	return last, nil
}

func (s *Store) lastCreatedLocked(key pairKey) (time.Time, bool) {
	var last time.Time
	found := false
	for _, ch := range s.challenges {
		if ch.SubjectID != key.subjectID || ch.Purpose != key.purpose {
			continue
		}
		if !found || ch.CreatedAt.After(last) {
			last = ch.CreatedAt
			found = true
		}
	}
	return last, found
}

func (s *Store) PurgeExpired(ctx context.Context, olderThan time.Time, limit int32) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	victims := make([]int64, 0)
	for id, ch := range s.challenges {
		if ch.ExpiresAt.Before(olderThan) || (ch.Consumed && ch.CreatedAt.Before(olderThan)) {
			victims = append(victims, id)
		}
	}
	sort.Slice(victims, func(i, j int) bool { return victims[i] < victims[j] })

	if limit > 0 && int32(len(victims)) > limit {
		victims = victims[:limit]
	}

	for _, id := range victims {
		delete(s.challenges, id)
	}
	return int64(len(victims)), nil
}
