package brick

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/rcliao/engram/internal/dynamics"
	"github.com/rcliao/engram/internal/frame"
)

// Compressed layout: gzip around magic "EBRK", version byte, uint32 JSON
// header length, the header, then every history frame's cells as float64
// little-endian in tick order. The attractor is the last history frame.
var brickMagic = [4]byte{'E', 'B', 'R', 'K'}

const codecVersion = 1

const (
	maxHeaderBytes = 1 << 20
	maxFrames      = 1 << 20
	maxSide        = 1 << 16
)

type header struct {
	State  dynamics.State `json:"state"`
	Ticks  int            `json:"ticks"`
	Meta   Meta           `json:"meta"`
	Frames int            `json:"frames"`
	Width  int            `json:"width"`
	Height int            `json:"height"`
}

// Encode writes the brick as a gzip stream.
func (b *Brick) Encode(w io.Writer) error {
	if len(b.History) == 0 {
		return fmt.Errorf("brick has no history")
	}
	width, height := b.History[0].Width, b.History[0].Height

	hdr, err := json.Marshal(header{
		State:  b.State,
		Ticks:  b.Ticks,
		Meta:   b.Meta,
		Frames: len(b.History),
		Width:  width,
		Height: height,
	})
	if err != nil {
		return fmt.Errorf("marshal brick header: %w", err)
	}

	zw := gzip.NewWriter(w)
	if _, err := zw.Write(brickMagic[:]); err != nil {
		return err
	}
	lead := make([]byte, 5)
	lead[0] = codecVersion
	binary.LittleEndian.PutUint32(lead[1:], uint32(len(hdr)))
	if _, err := zw.Write(lead); err != nil {
		return err
	}
	if _, err := zw.Write(hdr); err != nil {
		return err
	}

	buf := make([]byte, 8*width*height)
	for _, f := range b.History {
		if f.Width != width || f.Height != height {
			zw.Close()
			return fmt.Errorf("history frame is %dx%d, want %dx%d", f.Width, f.Height, width, height)
		}
		for i, v := range f.Cells {
			binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
		}
		if _, err := zw.Write(buf); err != nil {
			return err
		}
	}
	return zw.Close()
}

// Marshal returns the compressed brick as a byte slice.
func (b *Brick) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a brick from its compressed form.
func Decode(r io.Reader) (*Brick, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open brick stream: %w", err)
	}
	defer zr.Close()

	var head [9]byte
	if _, err := io.ReadFull(zr, head[:]); err != nil {
		return nil, fmt.Errorf("read brick header: %w", err)
	}
	if !bytes.Equal(head[:4], brickMagic[:]) {
		return nil, fmt.Errorf("bad brick magic %q", head[:4])
	}
	if head[4] != codecVersion {
		return nil, fmt.Errorf("unsupported brick version %d", head[4])
	}
	hdrLen := binary.LittleEndian.Uint32(head[5:9])
	if hdrLen == 0 || hdrLen > maxHeaderBytes {
		return nil, fmt.Errorf("implausible brick header size %d", hdrLen)
	}
	raw := make([]byte, hdrLen)
	if _, err := io.ReadFull(zr, raw); err != nil {
		return nil, fmt.Errorf("read brick header: %w", err)
	}
	var hdr header
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, fmt.Errorf("parse brick header: %w", err)
	}
	if hdr.Frames < 1 || hdr.Frames > maxFrames ||
		hdr.Width <= 0 || hdr.Width > maxSide ||
		hdr.Height <= 0 || hdr.Height > maxSide {
		return nil, fmt.Errorf("invalid brick geometry: %d frames of %dx%d",
			hdr.Frames, hdr.Width, hdr.Height)
	}

	history := make([]*frame.Frame, hdr.Frames)
	buf := make([]byte, 8*hdr.Width*hdr.Height)
	for i := range history {
		if _, err := io.ReadFull(zr, buf); err != nil {
			return nil, fmt.Errorf("read brick frame %d: %w", i, err)
		}
		f := frame.New(hdr.Width, hdr.Height)
		for j := range f.Cells {
			f.Cells[j] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*j:]))
		}
		history[i] = f
	}

	return &Brick{
		History:   history,
		Attractor: history[len(history)-1],
		Ticks:     hdr.Ticks,
		State:     hdr.State,
		Meta:      hdr.Meta,
	}, nil
}

// Unmarshal decodes a brick from a byte slice.
func Unmarshal(data []byte) (*Brick, error) {
	return Decode(bytes.NewReader(data))
}
