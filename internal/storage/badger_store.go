package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/dgraph-io/badger/v3"
)

const (
	worldKeyPrefix   = "world:"
	worldIDKeyPrefix = "world_id:"
	worldIDSequence  = "seq:world_id"
	sequenceBandwidth = 64
)

// BadgerStore хранит миры в BadgerDB: world:NAME -> запись,
// world_id:ID -> NAME. ID выдаются badger-последовательностью.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// NewBadgerStore открывает базу в каталоге dataPath/worlds
func NewBadgerStore(dataPath string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Join(dataPath, "worlds"))
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	seq, err := db.GetSequence([]byte(worldIDSequence), sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось получить последовательность ID: %w", err)
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func (s *BadgerStore) Get(ctx context.Context, name string) (Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(worldKeyPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var derr error
			rec, derr = decodeRecord(val)
			return derr
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, ErrWorldNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("ошибка чтения мира %s: %w", name, err)
	}
	return rec, nil
}

func (s *BadgerStore) GetByID(ctx context.Context, id uint32) (Record, error) {
	var name string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(worldIDKeyPrefix + strconv.FormatUint(uint64(id), 10)))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		name = string(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, ErrWorldNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("ошибка чтения мира %d: %w", id, err)
	}
	return s.Get(ctx, name)
}

func (s *BadgerStore) Put(ctx context.Context, rec Record) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(worldKeyPrefix+rec.Name), encodeRecord(rec)); err != nil {
			return err
		}
		return txn.Set([]byte(worldIDKeyPrefix+strconv.FormatUint(uint64(rec.ID), 10)), []byte(rec.Name))
	})
	if err != nil {
		return fmt.Errorf("ошибка записи мира %s: %w", rec.Name, err)
	}
	return nil
}

func (s *BadgerStore) NextID(ctx context.Context) (uint32, error) {
	n, err := s.seq.Next()
	if err != nil {
		return 0, err
	}
	// Последовательность badger начинается с 0
	return uint32(n + 1), nil
}

// Close освобождает последовательность и закрывает базу
func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}
