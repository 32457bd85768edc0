package world

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/annel0/tileworld/internal/items"
)

// ExtraType дискриминант варианта TileExtra
type ExtraType = items.ExtraType

// TileExtra дополнительные данные тайла. Конкретный вариант определяется
// категорией предмета переднего слоя; одновременно активен ровно один.
type TileExtra interface {
	Type() ExtraType
}

// DoorExtra дверь: подпись, назначение, пароль
type DoorExtra struct {
	Label        string // Текст над дверью
	Destination  string // Мир или мир:id двери назначения
	DoorID       string // Уникальный id двери внутри мира
	PasswordHash string // bcrypt-хэш пароля, пусто если пароля нет
	Locked       bool   // Дверь открыта только для имеющих доступ
}

func (*DoorExtra) Type() ExtraType { return items.ExtraDoor }

// SetPassword сохраняет bcrypt-хэш пароля. Пустой пароль снимает защиту.
func (d *DoorExtra) SetPassword(password string) error {
	if password == "" {
		d.PasswordHash = ""
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	d.PasswordHash = string(hash)
	return nil
}

// HasPassword сообщает, защищена ли дверь паролем
func (d *DoorExtra) HasPassword() bool {
	return d.PasswordHash != ""
}

// CheckPassword сверяет пароль с сохранённым хэшем
func (d *DoorExtra) CheckPassword(password string) bool {
	if d.PasswordHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)) == nil
}

// SignExtra табличка
type SignExtra struct {
	Label string
}

func (*SignExtra) Type() ExtraType { return items.ExtraSign }

// LockFlag флаги замка
type LockFlag uint8

const (
	LockPublic    LockFlag = 0x1 // Строить могут все
	LockIgnoreAir LockFlag = 0x2 // Область распространяется через пустые тайлы
)

// LockExtra замок: владелец и список доступа
type LockExtra struct {
	Flags   LockFlag
	OwnerID int32
	Access  []int32
}

func (*LockExtra) Type() ExtraType { return items.ExtraLock }

// Allows сообщает, может ли пользователь строить в области замка
func (l *LockExtra) Allows(userID int32) bool {
	if l.OwnerID == userID || l.Flags&LockPublic != 0 {
		return true
	}
	for _, id := range l.Access {
		if id == userID {
			return true
		}
	}
	return false
}

// AddAccess добавляет пользователя в список доступа
func (l *LockExtra) AddAccess(userID int32) bool {
	if userID == l.OwnerID {
		return false
	}
	for _, id := range l.Access {
		if id == userID {
			return false
		}
	}
	l.Access = append(l.Access, userID)
	return true
}

// RemoveAccess убирает пользователя из списка доступа
func (l *LockExtra) RemoveAccess(userID int32) bool {
	for i, id := range l.Access {
		if id == userID {
			l.Access = append(l.Access[:i], l.Access[i+1:]...)
			return true
		}
	}
	return false
}

// SeedExtra растущее семя
type SeedExtra struct {
	Planted time.Time
	Fruit   uint8
	Spliced bool
}

func (*SeedExtra) Type() ExtraType { return items.ExtraSeed }

// Elapsed время с момента посадки
func (s *SeedExtra) Elapsed(now time.Time) time.Duration {
	if now.Before(s.Planted) {
		return 0
	}
	return now.Sub(s.Planted)
}

// Ready сообщает, созрело ли семя
func (s *SeedExtra) Ready(now time.Time, growTime time.Duration) bool {
	return s.Elapsed(now) >= growTime
}

// FlagsExtra небольшое значение: результат кубика и т.п.
type FlagsExtra struct {
	Value uint32
}

func (*FlagsExtra) Type() ExtraType { return items.ExtraDice }

// WeatherExtra погодная машина
type WeatherExtra struct {
	Flags       uint32
	Color       uint32
	Subscribers []int32
}

func (*WeatherExtra) Type() ExtraType { return items.ExtraWeather }

// MannequinSlots количество слотов одежды манекена
const MannequinSlots = 9

// MannequinExtra манекен с одеждой
type MannequinExtra struct {
	Label    string
	Color1   uint32
	Color2   uint32
	Clothing [MannequinSlots]uint16
}

func (*MannequinExtra) Type() ExtraType { return items.ExtraMannequin }

// NewExtra создаёт пустой вариант доп. данных указанного типа
func NewExtra(t ExtraType, now time.Time) TileExtra {
	switch t {
	case items.ExtraDoor:
		return &DoorExtra{}
	case items.ExtraSign:
		return &SignExtra{}
	case items.ExtraLock:
		return &LockExtra{OwnerID: -1}
	case items.ExtraSeed:
		return &SeedExtra{Planted: now}
	case items.ExtraDice:
		return &FlagsExtra{}
	case items.ExtraWeather:
		return &WeatherExtra{}
	case items.ExtraMannequin:
		return &MannequinExtra{}
	default:
		return nil
	}
}
