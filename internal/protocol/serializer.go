package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer возвращается при чтении за пределами буфера
var ErrShortBuffer = errors.New("protocol: short buffer")

// MaxStringLen максимальная длина строки с u16-префиксом
const MaxStringLen = math.MaxUint16

// Buffer растущий little-endian буфер записи с явным курсором.
type Buffer struct {
	data []byte
}

// NewBuffer создает буфер с заданной начальной ёмкостью
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Len возвращает позицию курсора записи (количество записанных байт)
func (b *Buffer) Len() int { return len(b.data) }

// Bytes возвращает записанные данные
func (b *Buffer) Bytes() []byte { return b.data }

// Reset сбрасывает курсор, сохраняя ёмкость
func (b *Buffer) Reset() { b.data = b.data[:0] }

func (b *Buffer) WriteU8(v uint8) { b.data = append(b.data, v) }

func (b *Buffer) WriteBool(v bool) {
	if v {
		b.WriteU8(1)
		return
	}
	b.WriteU8(0)
}

func (b *Buffer) WriteU16(v uint16) { b.data = binary.LittleEndian.AppendUint16(b.data, v) }

func (b *Buffer) WriteU32(v uint32) { b.data = binary.LittleEndian.AppendUint32(b.data, v) }

func (b *Buffer) WriteI32(v int32) { b.WriteU32(uint32(v)) }

func (b *Buffer) WriteU64(v uint64) { b.data = binary.LittleEndian.AppendUint64(b.data, v) }

func (b *Buffer) WriteI64(v int64) { b.WriteU64(uint64(v)) }

func (b *Buffer) WriteF32(v float32) { b.WriteU32(math.Float32bits(v)) }

// WriteString пишет строку с u16-префиксом длины. Строки длиннее
// MaxStringLen обрезаются.
func (b *Buffer) WriteString(s string) {
	if len(s) > MaxStringLen {
		s = s[:MaxStringLen]
	}
	b.WriteU16(uint16(len(s)))
	b.data = append(b.data, s...)
}

// WriteBytes пишет сырые байты без префикса
func (b *Buffer) WriteBytes(p []byte) { b.data = append(b.data, p...) }

// PutU32At перезаписывает u32 по смещению offset (для отложенных длин).
func (b *Buffer) PutU32At(offset int, v uint32) error {
	if offset < 0 || offset+4 > len(b.data) {
		return fmt.Errorf("%w: put u32 at %d (len %d)", ErrShortBuffer, offset, len(b.data))
	}
	binary.LittleEndian.PutUint32(b.data[offset:], v)
	return nil
}

// Reader читает little-endian данные с проверкой границ.
// Первая ошибка запоминается, последующие чтения возвращают нули;
// проверять Err() достаточно один раз в конце разбора.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader создает Reader поверх data
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err возвращает первую ошибку чтения
func (r *Reader) Err() error { return r.err }

// Offset текущая позиция чтения
func (r *Reader) Offset() int { return r.off }

// Remaining количество непрочитанных байт
func (r *Reader) Remaining() int { return len(r.data) - r.off }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, r.off, len(r.data)-r.off)
		return nil
	}
	p := r.data[r.off : r.off+n]
	r.off += n
	return p
}

func (r *Reader) U8() uint8 {
	p := r.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

func (r *Reader) Bool() bool { return r.U8() != 0 }

func (r *Reader) U16() uint16 {
	p := r.take(2)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(p)
}

func (r *Reader) U32() uint32 {
	p := r.take(4)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(p)
}

func (r *Reader) I32() int32 { return int32(r.U32()) }

func (r *Reader) U64() uint64 {
	p := r.take(8)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(p)
}

func (r *Reader) I64() int64 { return int64(r.U64()) }

func (r *Reader) F32() float32 { return math.Float32frombits(r.U32()) }

// String читает строку с u16-префиксом длины
func (r *Reader) String() string {
	n := r.U16()
	p := r.take(int(n))
	if p == nil {
		return ""
	}
	return string(p)
}

// Bytes читает n сырых байт (копия)
func (r *Reader) Bytes(n int) []byte {
	p := r.take(n)
	if p == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, p)
	return out
}

// Count читает u32-счётчик элементов и проверяет, что в буфере хватит
// места хотя бы на count*minSize байт. Защищает от огромных аллокаций
// на повреждённых данных.
func (r *Reader) Count(minSize int) int {
	n := r.U32()
	if r.err != nil {
		return 0
	}
	if minSize > 0 && uint64(n)*uint64(minSize) > uint64(r.Remaining()) {
		r.err = fmt.Errorf("%w: count %d × %d bytes exceeds remaining %d", ErrShortBuffer, n, minSize, r.Remaining())
		return 0
	}
	return int(n)
}
