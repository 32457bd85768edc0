package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/annel0/tileworld/internal/protocol"
)

const (
	// MaxFrameSize предел размера кадра на проводе
	MaxFrameSize = 4 << 20
	// compressThreshold сообщения короче этого не сжимаются
	compressThreshold = 512

	codecRaw  byte = 0
	codecZstd byte = 1
)

var (
	// ErrFrameTooLarge заявленная длина кадра больше MaxFrameSize
	ErrFrameTooLarge = errors.New("network: frame too large")
	// ErrBadCodec неизвестный признак сжатия кадра
	ErrBadCodec = errors.New("network: unknown frame codec")
)

// FrameCodec кадрирование сообщений: u32 длина (LE), u8 признак сжатия,
// тело. Тело сообщения: u32 тип сообщения и данные. Кодек общий для всех
// соединений, zstd-кодировщик и декодировщик потокобезопасны в режиме *All.
type FrameCodec struct {
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// NewFrameCodec создаёт кодек. compress включает сжатие исходящих сообщений;
// входящие сжатые кадры принимаются всегда.
func NewFrameCodec(compress bool) (*FrameCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxFrameSize*4))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &FrameCodec{compress: compress, enc: enc, dec: dec}, nil
}

// Close освобождает zstd-ресурсы
func (c *FrameCodec) Close() {
	c.enc.Close()
	c.dec.Close()
}

// Encode упаковывает сообщение в кадр
func (c *FrameCodec) Encode(msg []byte) []byte {
	codec := codecRaw
	body := msg
	if c.compress && len(msg) >= compressThreshold {
		body = c.enc.EncodeAll(msg, make([]byte, 0, len(msg)/2))
		codec = codecZstd
	}
	frame := make([]byte, 5, 5+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)+1))
	frame[4] = codec
	return append(frame, body...)
}

// EncodePacket кадр игрового пакета
func (c *FrameCodec) EncodePacket(p *protocol.GamePacket) []byte {
	return c.Encode(protocol.Frame(p))
}

// EncodeText кадр текстового сообщения
func (c *FrameCodec) EncodeText(mt protocol.MessageType, text string) []byte {
	msg := make([]byte, 4, 4+len(text))
	binary.LittleEndian.PutUint32(msg, uint32(mt))
	return c.Encode(append(msg, text...))
}

// ReadMessage читает один кадр и возвращает распакованное сообщение
func (c *FrameCodec) ReadMessage(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(hdr[:])
	if size == 0 || size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d", ErrFrameTooLarge, size)
	}
	frame := make([]byte, size)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}

	switch frame[0] {
	case codecRaw:
		return frame[1:], nil
	case codecZstd:
		msg, err := c.dec.DecodeAll(frame[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("zstd frame: %w", err)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadCodec, frame[0])
	}
}

// messageType тип сообщения и его тело
func messageType(msg []byte) (protocol.MessageType, []byte, error) {
	if len(msg) < 4 {
		return protocol.MessageUnknown, nil, fmt.Errorf("%w: message of %d bytes", protocol.ErrShortBuffer, len(msg))
	}
	return protocol.MessageType(binary.LittleEndian.Uint32(msg)), msg[4:], nil
}
