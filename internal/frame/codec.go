package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Binary layout: magic "EFRM", version byte, uint16 width, uint16 height,
// then width*height float64 little-endian cells.
var frameMagic = [4]byte{'E', 'F', 'R', 'M'}

const codecVersion = 1

// Encode writes the frame in its binary form.
func (f *Frame) Encode(w io.Writer) error {
	if _, err := w.Write(frameMagic[:]); err != nil {
		return err
	}
	hdr := []byte{codecVersion, 0, 0, 0, 0}
	binary.LittleEndian.PutUint16(hdr[1:3], uint16(f.Width))
	binary.LittleEndian.PutUint16(hdr[3:5], uint16(f.Height))
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	buf := make([]byte, 8*len(f.Cells))
	for i, v := range f.Cells {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	_, err := w.Write(buf)
	return err
}

// Marshal returns the binary form as a byte slice.
func (f *Frame) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(9 + 8*len(f.Cells))
	if err := f.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a frame from its binary form.
func Decode(r io.Reader) (*Frame, error) {
	var head [9]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	if !bytes.Equal(head[:4], frameMagic[:]) {
		return nil, fmt.Errorf("bad frame magic %q", head[:4])
	}
	if head[4] != codecVersion {
		return nil, fmt.Errorf("unsupported frame version %d", head[4])
	}
	w := int(binary.LittleEndian.Uint16(head[5:7]))
	h := int(binary.LittleEndian.Uint16(head[7:9]))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d", w, h)
	}
	cells := make([]float64, w*h)
	buf := make([]byte, 8*len(cells))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read frame cells: %w", err)
	}
	for i := range cells {
		cells[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return &Frame{Width: w, Height: h, Cells: cells}, nil
}

// Unmarshal decodes a frame from a byte slice.
func Unmarshal(data []byte) (*Frame, error) {
	return Decode(bytes.NewReader(data))
}
