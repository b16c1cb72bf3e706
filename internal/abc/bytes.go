package abc

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// byteReader is a small cursor over ABC's little-endian, variable-length-
// integer-heavy encoding; kept unexported since only this package's codec
// needs it.
type byteReader struct {
	b *bytes.Reader
}

func (r *byteReader) u8() (uint8, error) { return r.b.ReadByte() }

func (r *byteReader) u16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r.b, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (r *byteReader) u30() (uint32, error) {
	var result uint32
	for shift := 0; shift < 35; shift += 7 {
		b, err := r.b.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return result, nil
}

func (r *byteReader) s32() (int32, error) {
	v, err := r.u30()
	return int32(v), err
}

func (r *byteReader) f64() (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r.b, buf[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}

func (r *byteReader) utf8() (string, error) {
	n, err := r.u30()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.b, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// byteWriter is byteReader's write-side counterpart.
type byteWriter struct {
	buf bytes.Buffer
}

func (w *byteWriter) u8(v uint8) { w.buf.WriteByte(v) }

func (w *byteWriter) u16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	w.buf.Write(buf[:])
}

func (w *byteWriter) u30(v uint32) {
	for v >= 0x80 {
		w.buf.WriteByte(byte(v&0x7f) | 0x80)
		v >>= 7
	}
	w.buf.WriteByte(byte(v))
}

func (w *byteWriter) s32(v int32) { w.u30(uint32(v)) }

func (w *byteWriter) f64(v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	w.buf.Write(buf[:])
}

func (w *byteWriter) utf8(s string) {
	w.u30(uint32(len(s)))
	w.buf.WriteString(s)
}
