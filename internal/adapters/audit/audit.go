// Package audit keeps the append-only interaction log and the
// (user, opportunity) index behind the novelty feature.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/okian/flok/internal/domain/model"
)

// Key prefixes for BadgerDB storage.
const (
	interactionKeyPrefix = "ix:"
	seenKeyPrefix        = "seen:"
	sep                  = "\x00"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("interaction log closed")

// Log records interactions and answers whether a user has touched an
// opportunity before.
type Log interface {
	// Append stores in; an id already present is left unchanged.
	Append(ctx context.Context, in model.Interaction) error
	// Seen reports whether userID has any interaction with opportunityID.
	Seen(ctx context.Context, userID, opportunityID string) (bool, error)
	// SeenBy returns every opportunity userID has interacted with.
	SeenBy(ctx context.Context, userID string) (map[string]bool, error)
	// Count returns the number of stored interactions.
	Count(ctx context.Context) (int, error)
	Close() error
}

// BadgerLog implements Log on BadgerDB.
type BadgerLog struct {
	db *badger.DB
}

var _ Log = (*BadgerLog)(nil)

// Open opens a log under dir, or an in-memory log when dir is empty.
func Open(dir string) (*BadgerLog, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open interaction log: %w", err)
	}
	return &BadgerLog{db: db}, nil
}

func seenKey(userID, opportunityID string) []byte {
	return []byte(seenKeyPrefix + userID + sep + opportunityID)
}

func (l *BadgerLog) Append(ctx context.Context, in model.Interaction) error {
	if in.ID == "" {
		return model.InvalidField("id", "must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal interaction: %w", err)
	}
	err = l.db.Update(func(txn *badger.Txn) error {
		key := []byte(interactionKeyPrefix + in.ID)
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get interaction: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set interaction: %w", err)
		}
		if in.UserID == "" {
			return nil
		}
		if err := txn.Set(seenKey(in.UserID, in.OpportunityID), []byte(in.ID)); err != nil {
			return fmt.Errorf("set seen index: %w", err)
		}
		return nil
	})
	return l.wrap(err)
}

func (l *BadgerLog) Seen(ctx context.Context, userID, opportunityID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var seen bool
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(seenKey(userID, opportunityID))
		switch {
		case err == nil:
			seen = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return fmt.Errorf("get seen index: %w", err)
		}
	})
	return seen, l.wrap(err)
}

func (l *BadgerLog) SeenBy(ctx context.Context, userID string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(seenKeyPrefix + userID + sep)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			out[strings.TrimPrefix(string(it.Item().Key()), string(prefix))] = true
		}
		return nil
	})
	return out, l.wrap(err)
}

func (l *BadgerLog) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(interactionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, l.wrap(err)
}

// Get returns one stored interaction.
func (l *BadgerLog) Get(_ context.Context, id string) (model.Interaction, error) {
	var in model.Interaction
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(interactionKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return model.NotFound("interaction", id)
		}
		if err != nil {
			return fmt.Errorf("get interaction: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &in)
		})
	})
	return in, l.wrap(err)
}

func (l *BadgerLog) Close() error {
	return l.db.Close()
}

func (l *BadgerLog) wrap(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}
