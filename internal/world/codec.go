package world

import (
	"fmt"
	"time"

	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/vec"
)

// CodecMode определяет, для кого упаковывается тайл
type CodecMode uint8

const (
	ModeNetwork CodecMode = iota // Только то, что нужно клиенту
	ModePersist                  // Всё для полного восстановления
)

// WorldFormatVersion версия формата упакованного мира
const WorldFormatVersion uint16 = 1

const signEndMarker int32 = -1

// minTileSize минимальный размер упакованного тайла
const minTileSize = 9

// minObjectSize размер записи объекта
const minObjectSize = 16

func corrupt(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

// Pack пишет тайл в буфер
func (t *Tile) Pack(b *protocol.Buffer, mode CodecMode) {
	b.WriteU16(t.Foreground)
	b.WriteU16(t.Background)
	b.WriteU16(t.Parent)
	flags := t.Flags &^ FlagTileExtra
	if t.Extra != nil {
		flags |= FlagTileExtra
	}
	b.WriteU16(uint16(flags))
	b.WriteU8(t.HitCount)

	if t.Extra == nil {
		return
	}
	b.WriteU8(uint8(t.Extra.Type()))
	packExtra(b, t.Extra, mode, time.Now())
}

func packExtra(b *protocol.Buffer, extra TileExtra, mode CodecMode, now time.Time) {
	switch e := extra.(type) {
	case *DoorExtra:
		b.WriteString(e.Label)
		b.WriteBool(e.Locked)
		if mode == ModePersist {
			b.WriteString(e.Destination)
			b.WriteString(e.DoorID)
			b.WriteString(e.PasswordHash)
		}
	case *SignExtra:
		b.WriteString(e.Label)
		b.WriteI32(signEndMarker)
	case *LockExtra:
		b.WriteU8(uint8(e.Flags))
		b.WriteI32(e.OwnerID)
		b.WriteU32(uint32(len(e.Access)))
		for _, id := range e.Access {
			b.WriteI32(id)
		}
	case *SeedExtra:
		if mode == ModePersist {
			b.WriteI64(e.Planted.UnixNano())
			b.WriteU8(e.Fruit)
			b.WriteBool(e.Spliced)
		} else {
			b.WriteU32(uint32(e.Elapsed(now) / time.Second))
			b.WriteU8(e.Fruit)
		}
	case *FlagsExtra:
		b.WriteU32(e.Value)
	case *WeatherExtra:
		b.WriteU32(e.Flags)
		b.WriteU32(e.Color)
		if mode == ModePersist {
			b.WriteU32(uint32(len(e.Subscribers)))
			for _, id := range e.Subscribers {
				b.WriteI32(id)
			}
		}
	case *MannequinExtra:
		b.WriteString(e.Label)
		b.WriteU32(e.Color1)
		b.WriteU32(e.Color2)
		for _, c := range e.Clothing {
			b.WriteU16(c)
		}
	}
}

// Unpack читает тайл из r. Координаты и каталог тайла не меняются.
// Несоответствие доп. данных категории предмета считается повреждением.
func (t *Tile) Unpack(r *protocol.Reader, mode CodecMode) error {
	t.Foreground = r.U16()
	t.Background = r.U16()
	t.Parent = r.U16()
	t.Flags = TileFlag(r.U16())
	t.HitCount = r.U8()
	t.LastHit = time.Time{}
	t.Extra = nil
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: tile %d,%d: %v", ErrCorrupt, t.X, t.Y, err)
	}

	want := items.ExtraNone
	if t.Foreground != items.BlankID {
		it, ok := t.catalog.Get(t.Foreground)
		if !ok {
			return corrupt("tile %d,%d: unknown foreground %d", t.X, t.Y, t.Foreground)
		}
		want = it.Category.ExtraType()
	}
	if t.Background != items.BlankID && !t.catalog.Has(t.Background) {
		return corrupt("tile %d,%d: unknown background %d", t.X, t.Y, t.Background)
	}

	if t.Flags&FlagTileExtra == 0 {
		if want != items.ExtraNone {
			t.Extra = NewExtra(want, time.Now())
			t.Flags |= FlagTileExtra
		}
		return nil
	}

	got := ExtraType(r.U8())
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: tile %d,%d extra: %v", ErrCorrupt, t.X, t.Y, err)
	}
	if got != want {
		return corrupt("tile %d,%d: extra type %d, foreground %d requires %d", t.X, t.Y, got, t.Foreground, want)
	}

	extra, err := unpackExtra(r, got, mode, time.Now())
	if err != nil {
		return fmt.Errorf("tile %d,%d: %w", t.X, t.Y, err)
	}
	t.Extra = extra
	return nil
}

func unpackExtra(r *protocol.Reader, typ ExtraType, mode CodecMode, now time.Time) (TileExtra, error) {
	var extra TileExtra
	switch typ {
	case items.ExtraDoor:
		e := &DoorExtra{Label: r.String(), Locked: r.Bool()}
		if mode == ModePersist {
			e.Destination = r.String()
			e.DoorID = r.String()
			e.PasswordHash = r.String()
		}
		extra = e
	case items.ExtraSign:
		e := &SignExtra{Label: r.String()}
		if marker := r.I32(); r.Err() == nil && marker != signEndMarker {
			return nil, corrupt("sign end marker %d", marker)
		}
		extra = e
	case items.ExtraLock:
		e := &LockExtra{Flags: LockFlag(r.U8()), OwnerID: r.I32()}
		n := r.Count(4)
		if n > 0 {
			e.Access = make([]int32, n)
			for i := range e.Access {
				e.Access[i] = r.I32()
			}
		}
		extra = e
	case items.ExtraSeed:
		e := &SeedExtra{}
		if mode == ModePersist {
			e.Planted = time.Unix(0, r.I64())
			e.Fruit = r.U8()
			e.Spliced = r.Bool()
		} else {
			e.Planted = now.Add(-time.Duration(r.U32()) * time.Second)
			e.Fruit = r.U8()
		}
		extra = e
	case items.ExtraDice:
		extra = &FlagsExtra{Value: r.U32()}
	case items.ExtraWeather:
		e := &WeatherExtra{Flags: r.U32(), Color: r.U32()}
		if mode == ModePersist {
			n := r.Count(4)
			if n > 0 {
				e.Subscribers = make([]int32, n)
				for i := range e.Subscribers {
					e.Subscribers[i] = r.I32()
				}
			}
		}
		extra = e
	case items.ExtraMannequin:
		e := &MannequinExtra{Label: r.String(), Color1: r.U32(), Color2: r.U32()}
		for i := range e.Clothing {
			e.Clothing[i] = r.U16()
		}
		extra = e
	default:
		return nil, corrupt("unknown extra type %d", typ)
	}

	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: extra %d: %v", ErrCorrupt, typ, err)
	}
	return extra, nil
}

// PackGrid пишет сетку тайлов: tile_count u32 + тайлы построчно
func (w *World) PackGrid(b *protocol.Buffer, mode CodecMode) {
	b.WriteU32(uint32(len(w.tiles)))
	for i := range w.tiles {
		w.tiles[i].Pack(b, mode)
	}
}

// UnpackGrid читает сетку. Количество тайлов должно совпадать с размером мира.
func (w *World) UnpackGrid(r *protocol.Reader, mode CodecMode) error {
	n := r.Count(minTileSize)
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: grid: %v", ErrCorrupt, err)
	}
	if n != len(w.tiles) {
		return corrupt("grid has %d tiles, world %dx%d needs %d", n, w.Width, w.Height, len(w.tiles))
	}
	for i := range w.tiles {
		if err := w.tiles[i].Unpack(r, mode); err != nil {
			return err
		}
	}
	return nil
}

// PackObjects пишет таблицу объектов
func (w *World) PackObjects(b *protocol.Buffer) {
	objs := w.Objects()
	b.WriteU32(uint32(len(objs)))
	b.WriteU32(w.nextObjectID)
	for _, o := range objs {
		b.WriteU16(o.ItemID)
		b.WriteF32(o.Pos.X)
		b.WriteF32(o.Pos.Y)
		b.WriteU8(o.Amount)
		b.WriteU8(o.Flags)
		b.WriteU32(o.ID)
	}
}

// UnpackObjects читает таблицу объектов, заменяя текущую
func (w *World) UnpackObjects(r *protocol.Reader) error {
	n := r.Count(minObjectSize)
	next := r.U32()
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: objects: %v", ErrCorrupt, err)
	}

	objects := make(map[uint32]*WorldObject, n)
	for i := 0; i < n; i++ {
		o := &WorldObject{ItemID: r.U16()}
		o.Pos = vec.Vec2Float{X: r.F32(), Y: r.F32()}
		o.Amount = r.U8()
		o.Flags = r.U8()
		o.ID = r.U32()
		if err := r.Err(); err != nil {
			return fmt.Errorf("%w: object %d: %v", ErrCorrupt, i, err)
		}
		if !w.posInBounds(o.Pos) {
			return corrupt("object %d outside world at %.1f,%.1f", o.ID, o.Pos.X, o.Pos.Y)
		}
		if _, dup := objects[o.ID]; dup || o.ID > next {
			return corrupt("object id %d (next %d)", o.ID, next)
		}
		objects[o.ID] = o
	}

	w.objects = objects
	w.nextObjectID = next
	return nil
}

// Marshal упаковывает мир для хранения
func (w *World) Marshal() []byte {
	b := protocol.NewBuffer(64 + len(w.tiles)*minTileSize)
	b.WriteU16(WorldFormatVersion)
	b.WriteU32(w.ID)
	b.WriteString(w.Name)
	b.WriteU32(uint32(w.Width))
	b.WriteU32(uint32(w.Height))
	b.WriteI32(w.OwnerID)
	b.WriteI32(w.MainLockID)
	b.WriteU16(w.WeatherID)
	b.WriteU16(w.BaseWeatherID)
	b.WriteU32(uint32(w.Flags))
	b.WriteI64(w.CreatedAt.UnixNano())
	b.WriteI64(w.UpdatedAt.UnixNano())

	bans := w.Bans()
	b.WriteU32(uint32(len(bans)))
	for _, ban := range bans {
		b.WriteI32(ban.UserID)
		b.WriteI64(ban.At.UnixNano())
	}

	w.PackGrid(b, ModePersist)
	w.PackObjects(b)
	return b.Bytes()
}

// Unmarshal восстанавливает мир из Marshal. Любая ошибка оборачивает ErrCorrupt:
// вызывающий должен сгенерировать новый мир вместо падения.
func Unmarshal(data []byte, catalog *items.Catalog) (*World, error) {
	r := protocol.NewReader(data)
	version := r.U16()
	id := r.U32()
	name := r.String()
	width := int(r.U32())
	height := int(r.U32())
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if version != WorldFormatVersion {
		return nil, corrupt("unsupported version %d", version)
	}

	w, err := New(name, width, height, catalog)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	w.ID = id
	w.OwnerID = r.I32()
	w.MainLockID = r.I32()
	w.WeatherID = r.U16()
	w.BaseWeatherID = r.U16()
	w.Flags = WorldFlag(r.U32())
	w.CreatedAt = time.Unix(0, r.I64())
	w.UpdatedAt = time.Unix(0, r.I64())

	nbans := r.Count(12)
	for i := 0; i < nbans; i++ {
		userID := r.I32()
		w.bans[userID] = time.Unix(0, r.I64())
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrCorrupt, err)
	}

	if err := w.UnpackGrid(r, ModePersist); err != nil {
		return nil, err
	}
	if err := w.UnpackObjects(r); err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, corrupt("%d trailing bytes", r.Remaining())
	}
	return w, nil
}

// PackNetwork упаковывает мир для отправки клиенту при входе
func (w *World) PackNetwork() []byte {
	b := protocol.NewBuffer(32 + len(w.tiles)*minTileSize)
	b.WriteU16(WorldFormatVersion)
	b.WriteU32(uint32(w.Flags))
	b.WriteString(w.Name)
	b.WriteU32(uint32(w.Width))
	b.WriteU32(uint32(w.Height))
	w.PackGrid(b, ModeNetwork)
	w.PackObjects(b)
	b.WriteU16(w.WeatherID)
	b.WriteU16(w.BaseWeatherID)
	return b.Bytes()
}

// PackTile упаковывает один тайл для сетевого обновления
func (w *World) PackTile(t *Tile) []byte {
	b := protocol.NewBuffer(minTileSize + 16)
	t.Pack(b, ModeNetwork)
	return b.Bytes()
}
