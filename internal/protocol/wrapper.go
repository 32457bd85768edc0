package protocol

import (
	"errors"
	"fmt"
)

// MessageType тип внешнего сообщения (u32-префикс кадра)
type MessageType uint32

const (
	MessageUnknown     MessageType = 0
	MessageServerHello MessageType = 1
	MessageText        MessageType = 2
	MessageAction      MessageType = 3
	MessageGamePacket  MessageType = 4
)

// PacketType тег типа игрового пакета
type PacketType uint8

const (
	PacketState                      PacketType = 0
	PacketCallFunction               PacketType = 1
	PacketUpdateStatus               PacketType = 2
	PacketTileChangeRequest          PacketType = 3
	PacketSendMapData                PacketType = 4
	PacketSendTileUpdateData         PacketType = 5
	PacketSendTileUpdateDataMultiple PacketType = 6
	PacketTileActivateRequest        PacketType = 7
	PacketTileApplyDamage            PacketType = 8
	PacketItemActivateObjectRequest  PacketType = 11
	PacketItemChangeObject           PacketType = 14
	PacketSendLock                   PacketType = 15
	PacketSendItemDatabaseData       PacketType = 16
	PacketSendParticleEffect         PacketType = 17
	PacketSteamPulse                 PacketType = 36
)

// Флаги пакета
const (
	FlagNone       uint32 = 0
	FlagExtended   uint32 = 0x8
	FlagFacingLeft uint32 = 0x10
	FlagPunch      uint32 = 0x20
	FlagPlace      uint32 = 0x40
)

// HeaderSize фиксированный размер заголовка игрового пакета
const HeaderSize = 56

// MaxExtendedSize верхняя граница payload расширенного пакета
const MaxExtendedSize = 16 << 20

var (
	// ErrBadMessageType кадр не является игровым пакетом
	ErrBadMessageType = errors.New("protocol: unexpected message type")
	// ErrPayloadTooLarge заявленная длина payload превышает лимит
	ErrPayloadTooLarge = errors.New("protocol: extended payload too large")
)

// GamePacket представляет игровой пакет: заголовок + опциональный payload.
type GamePacket struct {
	Type             PacketType
	ObjectType       uint8
	Count1           uint8
	Count2           uint8
	NetID            int32
	TargetNetID      int32
	Flags            uint32
	FloatVar         float32
	Value            uint32 // для обновлений тайлов: задержка в миллисекундах
	PosX, PosY       float32
	SpeedX, SpeedY   float32
	ParticleRotation float32
	TileX, TileY     int32
	Payload          []byte
}

// Extended сообщает, есть ли у пакета payload переменной длины
func (p *GamePacket) Extended() bool {
	return p.Flags&FlagExtended != 0
}

// SetPayload прикрепляет payload и выставляет флаг EXTENDED
func (p *GamePacket) SetPayload(payload []byte) {
	p.Payload = payload
	if len(payload) > 0 {
		p.Flags |= FlagExtended
	} else {
		p.Flags &^= FlagExtended
	}
}

// WriteTo пишет заголовок и payload в буфер
func (p *GamePacket) WriteTo(b *Buffer) {
	b.WriteU8(uint8(p.Type))
	b.WriteU8(p.ObjectType)
	b.WriteU8(p.Count1)
	b.WriteU8(p.Count2)
	b.WriteI32(p.NetID)
	b.WriteI32(p.TargetNetID)
	b.WriteU32(p.Flags)
	b.WriteF32(p.FloatVar)
	b.WriteU32(p.Value)
	b.WriteF32(p.PosX)
	b.WriteF32(p.PosY)
	b.WriteF32(p.SpeedX)
	b.WriteF32(p.SpeedY)
	b.WriteF32(p.ParticleRotation)
	b.WriteI32(p.TileX)
	b.WriteI32(p.TileY)
	if p.Extended() {
		b.WriteU32(uint32(len(p.Payload)))
		b.WriteBytes(p.Payload)
	} else {
		b.WriteU32(0)
	}
}

// Marshal сериализует пакет без кадра
func (p *GamePacket) Marshal() []byte {
	b := NewBuffer(HeaderSize + len(p.Payload))
	p.WriteTo(b)
	return b.Bytes()
}

// UnmarshalPacket разбирает пакет (без кадра)
func UnmarshalPacket(data []byte) (*GamePacket, error) {
	r := NewReader(data)
	p := &GamePacket{
		Type:             PacketType(r.U8()),
		ObjectType:       r.U8(),
		Count1:           r.U8(),
		Count2:           r.U8(),
		NetID:            r.I32(),
		TargetNetID:      r.I32(),
		Flags:            r.U32(),
		FloatVar:         r.F32(),
		Value:            r.U32(),
		PosX:             r.F32(),
		PosY:             r.F32(),
		SpeedX:           r.F32(),
		SpeedY:           r.F32(),
		ParticleRotation: r.F32(),
		TileX:            r.I32(),
		TileY:            r.I32(),
	}
	extSize := r.U32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("заголовок пакета: %w", err)
	}

	if p.Extended() {
		if extSize > MaxExtendedSize {
			return nil, fmt.Errorf("%w: %d", ErrPayloadTooLarge, extSize)
		}
		p.Payload = r.Bytes(int(extSize))
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("payload пакета: %w", err)
		}
	}
	return p, nil
}

// Frame оборачивает пакет в кадр: u32 message type (=4) + пакет
func Frame(p *GamePacket) []byte {
	b := NewBuffer(4 + HeaderSize + len(p.Payload))
	b.WriteU32(uint32(MessageGamePacket))
	p.WriteTo(b)
	return b.Bytes()
}

// Unframe разбирает кадр игрового пакета
func Unframe(data []byte) (*GamePacket, error) {
	r := NewReader(data)
	mt := MessageType(r.U32())
	if err := r.Err(); err != nil {
		return nil, err
	}
	if mt != MessageGamePacket {
		return nil, fmt.Errorf("%w: %d", ErrBadMessageType, mt)
	}
	return UnmarshalPacket(data[4:])
}
