package userstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/example/media-platform/internal/platform/metrics"
)

const badgerKeyPrefix = "userstate:"

// BadgerStore is an embedded, single-node store for deployments without
// Redis or Postgres.
type BadgerStore struct {
	db *badger.DB
}

func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("userstate: open badger at %s: %w", path, err)
	}
	return &BadgerStore{db: bdb}, nil
}

func (b *BadgerStore) Load(_ context.Context, userID string) (State, error) {
	var s State
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var derr error
			s, derr = decode(val)
			return derr
		})
	})
	if errors.Is(err, ErrNotFound) {
		metrics.RecordStoreOp("badger", "load", nil)
		return State{}, ErrNotFound
	}
	metrics.RecordStoreOp("badger", "load", err)
	return s, err
}

// Update relies on badger's serializable transactions: a commit that raced
// another writer of the same key fails with ErrConflict and is retried.
func (b *BadgerStore) Update(_ context.Context, userID string, fn UpdateFunc) (State, error) {
	key := []byte(badgerKeyPrefix + userID)
	var out State
	txf := func(txn *badger.Txn) error {
		var s State
		found := true
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			found = false
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				var derr error
				s, derr = decode(val)
				return derr
			}); err != nil {
				return err
			}
		}
		changed := fn(&s, found)
		out = s
		if !changed {
			return nil
		}
		data, err := encode(s)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	}

	err := ErrContention
	for i := 0; i < maxUpdateRetries; i++ {
		err = b.db.Update(txf)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if errors.Is(err, badger.ErrConflict) {
		err = ErrContention
	}
	metrics.RecordStoreOp("badger", "update", err)
	if err != nil {
		return State{}, err
	}
	return out, nil
}

func (b *BadgerStore) Delete(_ context.Context, userID string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerKeyPrefix + userID))
	})
	metrics.RecordStoreOp("badger", "delete", err)
	return err
}

func (b *BadgerStore) Ping(context.Context) error {
	if b.db.IsClosed() {
		return errors.New("userstate: badger closed")
	}
	return nil
}

func (b *BadgerStore) Close() error { return b.db.Close() }
