package protocol

import "time"

// TileUpdate строит пакет обновления одного тайла. tileData уже упакованный
// тайл в сетевом режиме; delay > 0 позволяет клиенту анимировать изменение.
func TileUpdate(x, y int, tileData []byte, delay time.Duration) *GamePacket {
	p := &GamePacket{
		Type:  PacketSendTileUpdateData,
		NetID: -1,
		TileX: int32(x),
		TileY: int32(y),
		Value: uint32(delay / time.Millisecond),
	}
	p.SetPayload(tileData)
	return p
}

// TileDamage строит пакет удара по тайлу
func TileDamage(netID int32, x, y int, hits uint8) *GamePacket {
	return &GamePacket{
		Type:  PacketTileApplyDamage,
		NetID: netID,
		TileX: int32(x),
		TileY: int32(y),
		Value: uint32(hits),
	}
}

// TileChange строит пакет установки/снятия предмета игроком
func TileChange(netID int32, x, y int, itemID uint16) *GamePacket {
	return &GamePacket{
		Type:  PacketTileChangeRequest,
		NetID: netID,
		TileX: int32(x),
		TileY: int32(y),
		Value: uint32(itemID),
	}
}

// LockApplied строит пакет SEND_LOCK: список индексов тайлов, отошедших замку
func LockApplied(ownerID int32, lockItem uint16, x, y int, indexes []int) *GamePacket {
	b := NewBuffer(len(indexes) * 2)
	for _, idx := range indexes {
		b.WriteU16(uint16(idx))
	}
	p := &GamePacket{
		Type:        PacketSendLock,
		NetID:       ownerID,
		TargetNetID: int32(len(indexes)),
		Value:       uint32(lockItem),
		TileX:       int32(x),
		TileY:       int32(y),
	}
	p.SetPayload(b.Bytes())
	return p
}

// ObjectChangeKind вид изменения объекта мира
type ObjectChangeKind uint8

const (
	ObjectAdded    ObjectChangeKind = 0xff // -1 в ObjectType клиента
	ObjectModified ObjectChangeKind = 0xfe
	ObjectRemoved  ObjectChangeKind = 0xfd
)

// ObjectChange строит пакет ITEM_CHANGE_OBJECT
func ObjectChange(kind ObjectChangeKind, collectorNetID int32, objectID uint32, itemID uint16, amount uint8, x, y float32) *GamePacket {
	return &GamePacket{
		Type:        PacketItemChangeObject,
		ObjectType:  uint8(kind),
		NetID:       collectorNetID,
		TargetNetID: int32(objectID),
		Value:       uint32(itemID),
		FloatVar:    float32(amount),
		PosX:        x,
		PosY:        y,
	}
}

// ItemDatabase строит пакет с полным каталогом предметов
func ItemDatabase(blob []byte, hash uint64) *GamePacket {
	p := &GamePacket{
		Type:  PacketSendItemDatabaseData,
		NetID: -1,
		Value: uint32(hash),
	}
	p.SetPayload(blob)
	return p
}

// MapData строит пакет с сетевым представлением мира
func MapData(worldBlob []byte) *GamePacket {
	p := &GamePacket{
		Type:  PacketSendMapData,
		NetID: -1,
	}
	p.SetPayload(worldBlob)
	return p
}

// SteamEffect строит пакет визуального эффекта паровой сети
func SteamEffect(x, y int, effect uint8, delay time.Duration) *GamePacket {
	return &GamePacket{
		Type:       PacketSteamPulse,
		ObjectType: effect,
		NetID:      -1,
		TileX:      int32(x),
		TileY:      int32(y),
		Value:      uint32(delay / time.Millisecond),
	}
}

// PositionCorrection строит пакет состояния, возвращающий игрока на позицию
func PositionCorrection(netID int32, x, y float32) *GamePacket {
	return &GamePacket{
		Type:  PacketState,
		NetID: netID,
		PosX:  x,
		PosY:  y,
	}
}

// PlayerMoved строит пакет состояния игрока для остальных в мире
func PlayerMoved(netID int32, x, y float32, flags uint32) *GamePacket {
	p := PositionCorrection(netID, x, y)
	p.Flags = flags
	return p
}

// CallFunction строит CALL_FUNCTION: имя функции клиента и строковые аргументы
func CallFunction(netID int32, name string, args ...string) *GamePacket {
	b := NewBuffer(len(name) + 16*len(args) + 3)
	b.WriteU8(uint8(len(args)))
	b.WriteString(name)
	for _, a := range args {
		b.WriteString(a)
	}
	p := &GamePacket{
		Type:  PacketCallFunction,
		NetID: netID,
	}
	p.SetPayload(b.Bytes())
	return p
}

// Notice текстовое уведомление игроку (OnTextOverlay)
func Notice(netID int32, text string) *GamePacket {
	return CallFunction(netID, "OnTextOverlay", text)
}

// Spawn сообщает о появлении игрока в мире
func Spawn(netID int32, name string, x, y float32) *GamePacket {
	p := CallFunction(netID, "OnSpawn", name)
	p.PosX, p.PosY = x, y
	return p
}

// Remove сообщает об уходе игрока из мира
func Remove(netID int32) *GamePacket {
	return CallFunction(netID, "OnRemove")
}
