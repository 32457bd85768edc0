package items

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/annel0/tileworld/internal/protocol"
)

// CatalogVersion версия формата упакованного каталога
const CatalogVersion uint16 = 1

var (
	// ErrDuplicateItem в каталоге два предмета с одинаковым ID
	ErrDuplicateItem = errors.New("items: duplicate item id")
	// ErrEmptyName у предмета нет имени
	ErrEmptyName = errors.New("items: empty item name")
)

// Catalog неизменяемый каталог предметов. После создания безопасен для
// чтения из любых горутин; передаётся явно в мир, алгоритмы и шарды.
type Catalog struct {
	byID   map[ID]*Item
	byName map[string]*Item
	sorted []*Item

	blob []byte
	hash uint64
}

// New строит каталог из списка предметов
func New(list []Item) (*Catalog, error) {
	c := &Catalog{
		byID:   make(map[ID]*Item, len(list)),
		byName: make(map[string]*Item, len(list)),
		sorted: make([]*Item, 0, len(list)),
	}

	for i := range list {
		it := list[i]
		if strings.TrimSpace(it.Name) == "" {
			return nil, fmt.Errorf("%w: id %d", ErrEmptyName, it.ID)
		}
		if _, exists := c.byID[it.ID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateItem, it.ID)
		}
		c.byID[it.ID] = &it
		c.byName[strings.ToLower(it.Name)] = &it
		c.sorted = append(c.sorted, &it)
	}

	sort.Slice(c.sorted, func(i, j int) bool { return c.sorted[i].ID < c.sorted[j].ID })

	c.blob = c.pack()
	c.hash = xxhash.Sum64(c.blob)
	return c, nil
}

// Get возвращает предмет по ID
func (c *Catalog) Get(id ID) (*Item, bool) {
	it, ok := c.byID[id]
	return it, ok
}

// Has сообщает, известен ли предмет каталогу
func (c *Catalog) Has(id ID) bool {
	_, ok := c.byID[id]
	return ok
}

// ByName ищет предмет по имени без учёта регистра
func (c *Catalog) ByName(name string) (*Item, bool) {
	it, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return it, ok
}

// Len количество предметов
func (c *Catalog) Len() int {
	return len(c.sorted)
}

// All возвращает предметы, отсортированные по ID. Срез нельзя изменять.
func (c *Catalog) All() []*Item {
	return c.sorted
}

// Pack возвращает упакованный каталог для рассылки клиентам
func (c *Catalog) Pack() []byte {
	return c.blob
}

// Hash xxhash64 от упакованного каталога; клиент сверяет его с кэшем
func (c *Catalog) Hash() uint64 {
	return c.hash
}

func (c *Catalog) pack() []byte {
	b := protocol.NewBuffer(6 + len(c.sorted)*32)
	b.WriteU16(CatalogVersion)
	b.WriteU32(uint32(len(c.sorted)))
	for _, it := range c.sorted {
		b.WriteU16(it.ID)
		b.WriteString(it.Name)
		b.WriteU8(uint8(it.Category))
		b.WriteU8(uint8(it.Collision))
		b.WriteU8(it.BreakHits)
		b.WriteU32(uint32(it.GrowTime.Seconds()))
		b.WriteU8(it.MaxStack)
		b.WriteU16(it.Rarity)
		b.WriteU16(it.DefaultFlags)
		b.WriteU8(uint8(it.LockClass))
	}
	return b.Bytes()
}
