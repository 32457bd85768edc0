package world

// TileFlag битовые флаги тайла
type TileFlag uint16

const (
	FlagTileExtra      TileFlag = 0x0001
	FlagLocked         TileFlag = 0x0002
	FlagSpliced        TileFlag = 0x0004
	FlagWillSpawnSeeds TileFlag = 0x0008
	FlagSeeded         TileFlag = 0x0010
	FlagFlipped        TileFlag = 0x0020
	FlagOpen           TileFlag = 0x0040
	FlagPublic         TileFlag = 0x0080
	FlagSilenced       TileFlag = 0x0200
	FlagWater          TileFlag = 0x0400
	FlagGlue           TileFlag = 0x0800
	FlagOnFire         TileFlag = 0x1000
	FlagRed            TileFlag = 0x2000
	FlagGreen          TileFlag = 0x4000
	FlagBlue           TileFlag = 0x8000
)

// itemStateFlags флаги, принадлежащие предмету переднего слоя.
// Сбрасываются при смене foreground; вода, клей, огонь и краска остаются.
const itemStateFlags = FlagTileExtra | FlagSpliced | FlagWillSpawnSeeds | FlagSeeded |
	FlagOpen | FlagPublic | FlagSilenced

// Has проверяет наличие всех битов mask
func (f TileFlag) Has(mask TileFlag) bool {
	return f&mask == mask
}

// WorldFlag флаги мира
type WorldFlag uint32

const (
	WorldNuked       WorldFlag = 0x1
	WorldPublic      WorldFlag = 0x2
	WorldJammed      WorldFlag = 0x4
	WorldPunchJammed WorldFlag = 0x8
)

// Has проверяет наличие флага мира
func (f WorldFlag) Has(mask WorldFlag) bool {
	return f&mask == mask
}
