// Package users persists per-user preferences in the users collection and
// keeps an in-process cache in front of it.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/studio/i18n"
	"github.com/m3rciful/studiobot/studio/records"
)

// TouchInterval throttles last_activity writes per user.
const TouchInterval = 10 * time.Minute

// Store is the part of records.Store the service needs.
type Store interface {
	ListRecords(ctx context.Context, name string) ([]records.Record, error)
	FindRowByValue(ctx context.Context, name string, col int, value string) (int, error)
	UpdateCell(ctx context.Context, name string, row, col int, value string) error
	AppendRecord(ctx context.Context, name string, values []string) error
}

type entry struct {
	lang    i18n.Lang
	chosen  bool
	touched time.Time
}

// Service resolves and stores user language and activity.
type Service struct {
	store Store
	def   i18n.Lang
	now   func() time.Time

	mu    sync.RWMutex
	cache map[int64]entry

	// writes to the users collection are serialized so an upsert never
	// appends the same user twice
	writeMu sync.Mutex
}

// New constructs a Service. def is returned for users without a stored language.
func New(store Store, def i18n.Lang) *Service {
	return &Service{
		store: store,
		def:   def,
		now:   time.Now,
		cache: make(map[int64]entry),
	}
}

// Load warms the cache from the users collection.
func (s *Service) Load(ctx context.Context) error {
	recs, err := s.store.ListRecords(ctx, records.Users.Name)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		id, err := strconv.ParseInt(r["user_id"], 10, 64)
		if err != nil || id == 0 {
			continue
		}
		lang, ok := i18n.Parse(r["language"])
		if !ok {
			lang = s.def
		}
		e := entry{lang: lang, chosen: ok}
		if t, err := time.Parse(time.RFC3339, r["last_activity"]); err == nil {
			e.touched = t
		}
		s.cache[id] = e
	}
	logger.LogEvent(ctx, logger.Users, slog.LevelInfo, "users.loaded", slog.Int("rows", len(recs)))
	return nil
}

// Language returns the stored language of the user and whether one was set.
func (s *Service) Language(userID int64) (i18n.Lang, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.cache[userID]; ok && e.chosen {
		return e.lang, true
	}
	return s.def, false
}

// SetLanguage stores lang for the user, creating the row on first use.
func (s *Service) SetLanguage(ctx context.Context, userID int64, lang i18n.Lang) error {
	l, ok := i18n.Parse(string(lang))
	if !ok {
		return fmt.Errorf("unsupported language %q", lang)
	}
	now := s.now().UTC()
	if err := s.upsert(ctx, userID, l, now); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[userID] = entry{lang: l, chosen: true, touched: now}
	s.mu.Unlock()
	logger.LogEvent(ctx, logger.Users, slog.LevelInfo, "users.language.set",
		slog.Int64("user_id", userID),
		slog.String("lang", string(l)),
	)
	return nil
}

// Touch records activity, at most once per TouchInterval. The first touch of
// an unknown user creates the row with hint (the client language) or the
// default; that language does not count as chosen.
func (s *Service) Touch(ctx context.Context, userID int64, hint i18n.Lang) error {
	now := s.now().UTC()
	s.mu.Lock()
	e, ok := s.cache[userID]
	if ok && now.Sub(e.touched) < TouchInterval {
		s.mu.Unlock()
		return nil
	}
	if !ok {
		l, supported := i18n.Parse(string(hint))
		if !supported {
			l = s.def
		}
		e = entry{lang: l}
	}
	e.touched = now
	s.cache[userID] = e
	s.mu.Unlock()

	if err := s.upsert(ctx, userID, e.lang, now); err != nil {
		if !ok {
			// retry on the next update
			s.mu.Lock()
			if cur, still := s.cache[userID]; still && !cur.chosen {
				delete(s.cache, userID)
			}
			s.mu.Unlock()
		}
		return err
	}
	if !ok {
		logger.LogEvent(ctx, logger.Users, slog.LevelInfo, "users.created",
			slog.Int64("user_id", userID),
			slog.String("lang", string(e.lang)),
		)
	}
	return nil
}

func (s *Service) upsert(ctx context.Context, userID int64, lang i18n.Lang, at time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id := strconv.FormatInt(userID, 10)
	ts := at.Format(time.RFC3339)
	row, err := s.store.FindRowByValue(ctx, records.Users.Name, records.Users.Column("user_id"), id)
	switch {
	case err == nil:
		if err := s.store.UpdateCell(ctx, records.Users.Name, row, records.Users.Column("language"), string(lang)); err != nil {
			return fmt.Errorf("update user %d: %w", userID, err)
		}
		if err := s.store.UpdateCell(ctx, records.Users.Name, row, records.Users.Column("last_activity"), ts); err != nil {
			return fmt.Errorf("update user %d: %w", userID, err)
		}
		return nil
	case errors.Is(err, records.ErrNotFound):
		if err := s.store.AppendRecord(ctx, records.Users.Name, []string{id, string(lang), ts}); err != nil {
			return fmt.Errorf("add user %d: %w", userID, err)
		}
		return nil
	default:
		return fmt.Errorf("find user %d: %w", userID, err)
	}
}

// KnownUsers lists every user id present in the users collection, in row order.
func (s *Service) KnownUsers(ctx context.Context) ([]int64, error) {
	recs, err := s.store.ListRecords(ctx, records.Users.Name)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	seen := make(map[int64]struct{}, len(recs))
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		id, err := strconv.ParseInt(r["user_id"], 10, 64)
		if err != nil || id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
