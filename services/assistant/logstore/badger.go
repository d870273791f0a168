// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerLogger persists interaction entries in an embedded BadgerDB, keyed
// log/<session>/<seq> so one session's turns scan in order.
type BadgerLogger struct {
	db  *badger.DB
	seq atomic.Uint64
}

// NewBadgerLogger opens (or creates) the store at dir.
func NewBadgerLogger(dir string) (*BadgerLogger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger log store: %w", err)
	}
	return &BadgerLogger{db: db}, nil
}

// Log implements Logger.
func (l *BadgerLogger) Log(_ context.Context, entry Entry) error {
	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	key := fmt.Sprintf("log/%s/%016d", entry.SessionID, l.seq.Add(1))
	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
	if err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	return nil
}

// Session returns a session's entries in insertion order.
func (l *BadgerLogger) Session(sessionID string) ([]Entry, error) {
	prefix := []byte("log/" + sessionID + "/")
	var entries []Entry
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan session log: %w", err)
	}
	return entries, nil
}

// Close implements Logger.
func (l *BadgerLogger) Close() error {
	return l.db.Close()
}
