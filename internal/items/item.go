package items

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ID идентификатор предмета
type ID = uint16

// Базовые идентификаторы предметов стартового каталога
const (
	BlankID         ID = 0
	DirtID          ID = 2
	DirtSeedID      ID = 3
	LavaID          ID = 4
	MainDoorID      ID = 6
	BedrockID       ID = 8
	RockID          ID = 10
	DoorID          ID = 12
	CaveBackID      ID = 14
	FistID          ID = 18
	SignID          ID = 20
	WrenchID        ID = 32
	PlatformID      ID = 102
	GemsID          ID = 112
	SmallLockID     ID = 202
	BigLockID       ID = 204
	HugeLockID      ID = 206
	WorldLockID     ID = 242
	DiceID          ID = 456
	WeatherSunID    ID = 932
	MannequinID     ID = 1420
	VIPEntranceID   ID = 1422
	SwitchBlockID   ID = 3562
	SteamLockID     ID = 3600
	SteamPipeID     ID = 3618
	SteamVentID     ID = 3620
	SteamDoorID     ID = 3622
	SteamLauncherID ID = 3624
	SteamEngineID   ID = 3626
	SteamLampID     ID = 3628
	SteamSpikesID   ID = 3630
)

// Category категория предмета (action type)
type Category uint8

const (
	CategoryFist Category = iota
	CategoryWrench
	CategoryForeground
	CategoryBackground
	CategorySeed
	CategoryClothes
	CategoryDoor
	CategoryMainDoor
	CategorySign
	CategoryLock
	CategoryWorldLock
	CategoryBedrock
	CategoryPlatform
	CategoryGems
	CategoryMannequin
	CategoryDice
	CategoryWeatherMachine
	CategorySteamPipe
	CategorySteamVent
	CategorySteamDoor
	CategorySteamLauncher
	CategorySteamEngine
	CategorySteamLamp
	CategorySteamSpike
	CategoryGateway
	CategorySwitch
	CategoryLava

	categoryCount // всегда последний
)

var categoryNames = [...]string{
	CategoryFist:           "fist",
	CategoryWrench:         "wrench",
	CategoryForeground:     "foreground",
	CategoryBackground:     "background",
	CategorySeed:           "seed",
	CategoryClothes:        "clothes",
	CategoryDoor:           "door",
	CategoryMainDoor:       "main_door",
	CategorySign:           "sign",
	CategoryLock:           "lock",
	CategoryWorldLock:      "world_lock",
	CategoryBedrock:        "bedrock",
	CategoryPlatform:       "platform",
	CategoryGems:           "gems",
	CategoryMannequin:      "mannequin",
	CategoryDice:           "dice",
	CategoryWeatherMachine: "weather_machine",
	CategorySteamPipe:      "steam_pipe",
	CategorySteamVent:      "steam_vent",
	CategorySteamDoor:      "steam_door",
	CategorySteamLauncher:  "steam_launcher",
	CategorySteamEngine:    "steam_engine",
	CategorySteamLamp:      "steam_lamp",
	CategorySteamSpike:     "steam_spike",
	CategoryGateway:        "gateway",
	CategorySwitch:         "switch",
	CategoryLava:           "lava",
}

// String возвращает имя категории
func (c Category) String() string {
	if c < categoryCount {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// ParseCategory разбирает имя категории
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("неизвестная категория предмета %q", s)
}

// UnmarshalYAML позволяет писать категорию строкой в YAML-каталоге
func (c *Category) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// IsBackground сообщает, ставится ли предмет в фоновый слой
func (c Category) IsBackground() bool {
	return c == CategoryBackground
}

// IsLock сообщает, является ли предмет замком (включая мировой)
func (c Category) IsLock() bool {
	return c == CategoryLock || c == CategoryWorldLock
}

// IsSteam сообщает, участвует ли категория в паровой сети
func (c Category) IsSteam() bool {
	return c >= CategorySteamPipe && c <= CategorySteamSpike
}

// IsDoor сообщает, является ли предмет проходимой дверью
func (c Category) IsDoor() bool {
	return c == CategoryDoor || c == CategoryMainDoor || c == CategorySteamDoor
}

// Collision класс коллизии предмета
type Collision uint8

const (
	CollisionNone Collision = iota
	CollisionFull
	CollisionJumpThrough
	CollisionGateway
	CollisionIfOff
	CollisionIfOn
)

var collisionNames = [...]string{"none", "full", "jump_through", "gateway", "if_off", "if_on"}

// String возвращает имя класса коллизии
func (c Collision) String() string {
	if int(c) < len(collisionNames) {
		return collisionNames[c]
	}
	return fmt.Sprintf("collision(%d)", uint8(c))
}

// UnmarshalYAML разбирает класс коллизии из строки
func (c *Collision) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	for i, name := range collisionNames {
		if name == strings.ToLower(s) {
			*c = Collision(i)
			return nil
		}
	}
	return fmt.Errorf("неизвестный класс коллизии %q", s)
}

// LockClass класс замка, определяющий размер захватываемой области
type LockClass uint8

const (
	LockNone LockClass = iota
	LockSmall
	LockBig
	LockHuge
	LockSteam
)

// UnmarshalYAML разбирает класс замка из строки
func (l *LockClass) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "", "none":
		*l = LockNone
	case "small":
		*l = LockSmall
	case "big":
		*l = LockBig
	case "huge":
		*l = LockHuge
	case "steam":
		*l = LockSteam
	default:
		return fmt.Errorf("неизвестный класс замка %q", s)
	}
	return nil
}

// Item метаданные предмета каталога
type Item struct {
	ID           ID            `yaml:"id"`
	Name         string        `yaml:"name"`
	Category     Category      `yaml:"category"`
	Collision    Collision     `yaml:"collision"`
	BreakHits    uint8         `yaml:"break_hits"`
	GrowTime     time.Duration `yaml:"grow_time"`
	MaxStack     uint8         `yaml:"max_stack"`
	Rarity       uint16        `yaml:"rarity"`
	DefaultFlags uint16        `yaml:"default_flags"`
	LockClass    LockClass     `yaml:"lock_class"`
}

// SeedID возвращает идентификатор семени предмета
func (it *Item) SeedID() ID {
	return it.ID + 1
}

// IsSeed сообщает, является ли предмет семенем
func (it *Item) IsSeed() bool {
	return it.Category == CategorySeed
}

// Unbreakable сообщает, что предмет нельзя сломать ударами
func (it *Item) Unbreakable() bool {
	return it.BreakHits == 0 || it.Category == CategoryBedrock || it.Category == CategoryMainDoor
}

// ExtraType дискриминант дополнительных данных тайла
type ExtraType uint8

const (
	ExtraNone      ExtraType = 0
	ExtraDoor      ExtraType = 1
	ExtraSign      ExtraType = 2
	ExtraLock      ExtraType = 3
	ExtraSeed      ExtraType = 4
	ExtraDice      ExtraType = 8
	ExtraMannequin ExtraType = 14
	ExtraWeather   ExtraType = 40
)

// ExtraType возвращает тип доп. данных, которые требуются тайлу с предметом этой категории
func (c Category) ExtraType() ExtraType {
	switch c {
	case CategoryDoor, CategoryMainDoor:
		return ExtraDoor
	case CategorySign:
		return ExtraSign
	case CategoryLock, CategoryWorldLock:
		return ExtraLock
	case CategorySeed:
		return ExtraSeed
	case CategoryDice:
		return ExtraDice
	case CategoryMannequin:
		return ExtraMannequin
	case CategoryWeatherMachine:
		return ExtraWeather
	default:
		return ExtraNone
	}
}
