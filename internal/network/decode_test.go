package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/algorithm"
	"github.com/annel0/tileworld/internal/items"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/shard"
	"github.com/annel0/tileworld/internal/vec"
)

func TestDecodePacket(t *testing.T) {
	pos := vec.Vec2{X: 4, Y: 7}
	tile := func(pt protocol.PacketType, value uint32) *protocol.GamePacket {
		return &protocol.GamePacket{Type: pt, Value: value, TileX: 4, TileY: 7}
	}
	withPayload := func(p *protocol.GamePacket, text string) *protocol.GamePacket {
		p.SetPayload([]byte(text))
		return p
	}

	tests := []struct {
		name string
		in   *protocol.GamePacket
		want shard.Event
	}{
		{
			name: "move",
			in:   &protocol.GamePacket{Type: protocol.PacketState, PosX: 64, PosY: 96, Flags: protocol.FlagFacingLeft | protocol.FlagExtended},
			want: shard.MoveEvent{ConnID: 1, Pos: vec.Vec2Float{X: 64, Y: 96}, Flags: protocol.FlagFacingLeft},
		},
		{
			name: "punch",
			in:   tile(protocol.PacketTileChangeRequest, uint32(items.FistID)),
			want: shard.PunchEvent{ConnID: 1, Pos: pos},
		},
		{
			name: "place",
			in:   tile(protocol.PacketTileChangeRequest, uint32(items.DirtID)),
			want: shard.PlaceEvent{ConnID: 1, Pos: pos, Item: items.DirtID},
		},
		{
			name: "wrench",
			in:   withPayload(tile(protocol.PacketTileChangeRequest, uint32(items.WrenchID)), "label|HOME\npassword|pw\naccess|5, 9\npublic|1\n"),
			want: shard.WrenchEvent{ConnID: 1, Pos: pos, Label: "HOME", Password: "pw", Access: []int32{5, 9}, Public: true},
		},
		{
			name: "activate with password",
			in:   withPayload(tile(protocol.PacketTileActivateRequest, 0), "password|pw\n"),
			want: shard.ActivateEvent{ConnID: 1, Pos: pos, Password: "pw"},
		},
		{
			name: "collect",
			in:   &protocol.GamePacket{Type: protocol.PacketItemActivateObjectRequest, Value: 12},
			want: shard.CollectEvent{ConnID: 1, ObjectID: 12},
		},
		{
			name: "steam",
			in:   &protocol.GamePacket{Type: protocol.PacketSteamPulse, ObjectType: uint8(algorithm.DirRight), TileX: 4, TileY: 7},
			want: shard.SteamActivateEvent{ConnID: 1, Pos: pos, Dir: algorithm.DirRight},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodePacket(1, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestDecodePacketErrors(t *testing.T) {
	_, err := DecodePacket(1, &protocol.GamePacket{Type: protocol.PacketSendMapData})
	assert.ErrorIs(t, err, ErrUnsupported, "серверные пакеты от клиента не принимаются")

	_, err = DecodePacket(1, &protocol.GamePacket{Type: protocol.PacketSteamPulse, ObjectType: 9})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodePacket(1, &protocol.GamePacket{Type: protocol.PacketTileChangeRequest, Value: 1 << 20})
	assert.ErrorIs(t, err, ErrMalformed)

	p := &protocol.GamePacket{Type: protocol.PacketTileChangeRequest, Value: uint32(items.WrenchID)}
	p.SetPayload([]byte("access|1,x\n"))
	_, err = DecodePacket(1, p)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeAction(t *testing.T) {
	ev, err := DecodeAction(3, ParseFields("action|join_request\nname| start \n"))
	require.NoError(t, err)
	assert.Equal(t, shard.JoinEvent{ConnID: 3, World: "start"}, ev)

	ev, err = DecodeAction(3, ParseFields("action|drop\nitemID|2\ncount|5\n"))
	require.NoError(t, err)
	assert.Equal(t, shard.DropEvent{ConnID: 3, Item: items.ID(2), Amount: 5}, ev)

	ev, err = DecodeAction(3, ParseFields("action|quit_to_exit\n"))
	require.NoError(t, err)
	assert.Equal(t, shard.LeaveEvent{ConnID: 3}, ev)

	_, err = DecodeAction(3, ParseFields("action|drop\nitemID|2\ncount|0\n"))
	assert.ErrorIs(t, err, ErrMalformed, "нулевое количество")

	_, err = DecodeAction(3, ParseFields("action|join_request\n"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeAction(3, ParseFields("action|dance\n"))
	assert.ErrorIs(t, err, ErrUnsupported)
}
