package network

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/annel0/tileworld/internal/algorithm"
	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/shard"
	"github.com/annel0/tileworld/internal/vec"
)

var (
	// ErrUnsupported пакет или действие, которые сервер не принимает от клиента
	ErrUnsupported = errors.New("network: unsupported message")
	// ErrMalformed сообщение не удалось разобрать
	ErrMalformed = errors.New("network: malformed message")
)

// DecodePacket переводит игровой пакет клиента в событие шарда
func DecodePacket(connID uint64, p *protocol.GamePacket) (shard.Event, error) {
	pos := vec.Vec2{X: int(p.TileX), Y: int(p.TileY)}

	switch p.Type {
	case protocol.PacketState:
		return shard.MoveEvent{
			ConnID: connID,
			Pos:    vec.Vec2Float{X: p.PosX, Y: p.PosY},
			Flags:  p.Flags &^ protocol.FlagExtended,
		}, nil

	case protocol.PacketTileChangeRequest:
		switch items.ID(p.Value) {
		case items.FistID:
			return shard.PunchEvent{ConnID: connID, Pos: pos}, nil
		case items.WrenchID:
			return decodeWrench(connID, pos, p.Payload)
		default:
			if p.Value > 0xffff {
				return nil, fmt.Errorf("%w: item %d", ErrMalformed, p.Value)
			}
			return shard.PlaceEvent{ConnID: connID, Pos: pos, Item: items.ID(p.Value)}, nil
		}

	case protocol.PacketTileActivateRequest:
		ev := shard.ActivateEvent{ConnID: connID, Pos: pos}
		if p.Extended() {
			ev.Password = ParseFields(string(p.Payload))["password"]
		}
		return ev, nil

	case protocol.PacketItemActivateObjectRequest:
		return shard.CollectEvent{ConnID: connID, ObjectID: p.Value}, nil

	case protocol.PacketSteamPulse:
		dir := algorithm.Direction(p.ObjectType)
		if dir > algorithm.DirDown {
			return nil, fmt.Errorf("%w: steam direction %d", ErrMalformed, p.ObjectType)
		}
		return shard.SteamActivateEvent{ConnID: connID, Pos: pos, Dir: dir}, nil
	}
	return nil, fmt.Errorf("%w: packet type %d", ErrUnsupported, p.Type)
}

// decodeWrench настройки тайла: label, password, access (id через запятую), public
func decodeWrench(connID uint64, pos vec.Vec2, payload []byte) (shard.Event, error) {
	fields := ParseFields(string(payload))
	ev := shard.WrenchEvent{
		ConnID:   connID,
		Pos:      pos,
		Label:    fields["label"],
		Password: fields["password"],
		Public:   fields["public"] == "1",
	}
	if raw := strings.TrimSpace(fields["access"]); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: access id %q", ErrMalformed, part)
			}
			ev.Access = append(ev.Access, int32(id))
		}
	}
	return ev, nil
}

// DecodeAction переводит текстовое действие клиента ("action|...") в событие.
// id пользователя и имя берутся из сессии, клиент их не передаёт.
func DecodeAction(connID uint64, fields map[string]string) (shard.Event, error) {
	switch fields["action"] {
	case "join_request":
		name := strings.TrimSpace(fields["name"])
		if name == "" {
			return nil, fmt.Errorf("%w: join_request without name", ErrMalformed)
		}
		return shard.JoinEvent{ConnID: connID, World: name}, nil

	case "drop":
		item, err := strconv.ParseUint(fields["itemID"], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: drop itemID %q", ErrMalformed, fields["itemID"])
		}
		count, err := strconv.ParseUint(fields["count"], 10, 8)
		if err != nil || count == 0 {
			return nil, fmt.Errorf("%w: drop count %q", ErrMalformed, fields["count"])
		}
		return shard.DropEvent{ConnID: connID, Item: items.ID(item), Amount: uint8(count)}, nil

	case "quit_to_exit":
		return shard.LeaveEvent{ConnID: connID}, nil
	}
	return nil, fmt.Errorf("%w: action %q", ErrUnsupported, fields["action"])
}
