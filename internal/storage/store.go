// Package storage сохраняет и загружает миры. Цикл шарда никогда не
// обращается к хранилищу напрямую: снимки мира передаются отдельному
// воркеру в виде готовых байтов.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/tileworld/internal/protocol"
)

// ErrWorldNotFound мир с таким именем или ID не сохранён
var ErrWorldNotFound = errors.New("world not found")

// Record сохранённая запись мира. Data хранит сжатый блоб мира.
type Record struct {
	ID        uint32
	Name      string
	Data      []byte
	UpdatedAt time.Time
}

// Store низкоуровневое хранилище записей миров
type Store interface {
	// Get загружает запись по имени мира, ErrWorldNotFound если её нет
	Get(ctx context.Context, name string) (Record, error)
	// GetByID загружает запись по ID мира
	GetByID(ctx context.Context, id uint32) (Record, error)
	// Put создаёт или перезаписывает запись
	Put(ctx context.Context, rec Record) error
	// NextID выдаёт новый уникальный ID мира (начиная с 1)
	NextID(ctx context.Context) (uint32, error)
	Close() error
}

// recordVersion версия упаковки записи в key-value хранилищах
const recordVersion uint16 = 1

// encodeRecord упаковывает запись в значение для key-value хранилища
func encodeRecord(rec Record) []byte {
	b := protocol.NewBuffer(len(rec.Data) + len(rec.Name) + 24)
	b.WriteU16(recordVersion)
	b.WriteU32(rec.ID)
	b.WriteString(rec.Name)
	b.WriteI64(rec.UpdatedAt.UnixNano())
	b.WriteU32(uint32(len(rec.Data)))
	b.WriteBytes(rec.Data)
	return b.Bytes()
}

func decodeRecord(data []byte) (Record, error) {
	r := protocol.NewReader(data)
	if v := r.U16(); r.Err() == nil && v != recordVersion {
		return Record{}, fmt.Errorf("record version %d", v)
	}
	rec := Record{ID: r.U32(), Name: r.String()}
	rec.UpdatedAt = time.Unix(0, r.I64())
	rec.Data = r.Bytes(r.Count(1))
	if err := r.Err(); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*BadgerStore)(nil)
	_ Store = (*MariaStore)(nil)
	_ Store = (*MongoStore)(nil)
)
