package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/world"
)

// Snapshot несжатый снимок мира, снятый в цикле шарда
type Snapshot struct {
	ID        uint32
	Name      string
	Blob      []byte // world.Marshal
	UpdatedAt time.Time
}

// TakeSnapshot упаковывает мир. Вызывается только из владеющего миром цикла.
func TakeSnapshot(w *world.World) Snapshot {
	return Snapshot{ID: w.ID, Name: w.Name, Blob: w.Marshal(), UpdatedAt: w.UpdatedAt}
}

// WorldRepo загружает и сохраняет миры поверх Store: сжимает блобы и
// восстанавливает миры с каталогом предметов.
type WorldRepo struct {
	store   Store
	catalog *items.Catalog
	codec   *blobCodec
	logger  *logging.Logger
}

// NewWorldRepo создаёт репозиторий миров
func NewWorldRepo(store Store, catalog *items.Catalog) (*WorldRepo, error) {
	codec, err := newBlobCodec()
	if err != nil {
		return nil, err
	}
	return &WorldRepo{
		store:   store,
		catalog: catalog,
		codec:   codec,
		logger:  logging.GetStorageLogger(),
	}, nil
}

// LoadByName загружает мир по имени. Повреждённые данные возвращают
// ошибку, совместимую с world.ErrCorrupt.
func (r *WorldRepo) LoadByName(ctx context.Context, name string) (*world.World, error) {
	norm, err := world.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	rec, err := r.store.Get(ctx, norm)
	if err != nil {
		return nil, err
	}
	return r.restore(rec)
}

// LoadByID загружает мир по ID
func (r *WorldRepo) LoadByID(ctx context.Context, id uint32) (*world.World, error) {
	rec, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.restore(rec)
}

func (r *WorldRepo) restore(rec Record) (*world.World, error) {
	raw, err := r.codec.decompress(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: world %s: %v", world.ErrCorrupt, rec.Name, err)
	}
	w, err := world.Unmarshal(raw, r.catalog)
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", rec.Name, err)
	}
	if w.Name != rec.Name {
		return nil, fmt.Errorf("%w: record %s holds world %s", world.ErrCorrupt, rec.Name, w.Name)
	}
	return w, nil
}

// Save упаковывает и сохраняет мир. Только для вызова вне цикла шарда
// (тесты, утилиты); шард использует SaveSnapshot.
func (r *WorldRepo) Save(ctx context.Context, w *world.World) error {
	return r.SaveSnapshot(ctx, TakeSnapshot(w))
}

// SaveSnapshot сохраняет готовый снимок
func (r *WorldRepo) SaveSnapshot(ctx context.Context, s Snapshot) error {
	if s.ID == 0 {
		return fmt.Errorf("world %s has no id", s.Name)
	}
	data := r.codec.compress(s.Blob)
	err := r.store.Put(ctx, Record{ID: s.ID, Name: s.Name, Data: data, UpdatedAt: s.UpdatedAt})
	if err != nil {
		return fmt.Errorf("save world %s: %w", s.Name, err)
	}
	r.logger.Debug("Мир %s (%d) сохранён: %d -> %d байт", s.Name, s.ID, len(s.Blob), len(data))
	return nil
}

// AssignID выдаёт новому миру ID из хранилища
func (r *WorldRepo) AssignID(ctx context.Context, w *world.World) error {
	if w.ID != 0 {
		return nil
	}
	id, err := r.store.NextID(ctx)
	if err != nil {
		return fmt.Errorf("assign world id: %w", err)
	}
	w.ID = id
	return nil
}

// IsNotFound сообщает, что мира нет в хранилище
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorldNotFound)
}

// Close закрывает хранилище
func (r *WorldRepo) Close() error {
	r.codec.close()
	return r.store.Close()
}
