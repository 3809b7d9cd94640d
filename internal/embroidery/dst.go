package embroidery

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	dstHeaderSize = 512
	// dstMaxStep is the largest per-axis move one record can carry, in
	// 0.1 mm units.
	dstMaxStep = 121
)

var ErrInvalidDST = errors.New("invalid DST data")

var (
	dstColorChange = [3]byte{0x00, 0x00, 0xC3}
	dstEnd         = [3]byte{0x00, 0x00, 0xF3}
)

// trit is one balanced-ternary digit of a DST displacement.
type trit struct {
	weight   int
	idx      int
	pos, neg byte
}

var (
	dstX = []trit{{81, 2, 0x04, 0x08}, {27, 1, 0x04, 0x08}, {9, 0, 0x04, 0x08}, {3, 1, 0x01, 0x02}, {1, 0, 0x01, 0x02}}
	dstY = []trit{{81, 2, 0x20, 0x10}, {27, 1, 0x20, 0x10}, {9, 0, 0x20, 0x10}, {3, 1, 0x80, 0x40}, {1, 0, 0x80, 0x40}}
)

// encodeMove packs a move of at most dstMaxStep per axis. DST's y axis
// points up, so dy is negated.
func encodeMove(dx, dy int, jump bool) [3]byte {
	b := [3]byte{0, 0, 0x03}
	if jump {
		b[2] |= 0x80
	}
	encodeAxis(&b, dx, dstX)
	encodeAxis(&b, -dy, dstY)
	return b
}

func encodeAxis(b *[3]byte, v int, digits []trit) {
	for _, d := range digits {
		half := d.weight / 2
		switch {
		case v > half:
			b[d.idx] |= d.pos
			v -= d.weight
		case v < -half:
			b[d.idx] |= d.neg
			v += d.weight
		}
	}
}

func decodeAxis(b [3]byte, digits []trit) int {
	v := 0
	for _, d := range digits {
		if b[d.idx]&d.pos != 0 {
			v += d.weight
		}
		if b[d.idx]&d.neg != 0 {
			v -= d.weight
		}
	}
	return v
}

func decodeRecord(b [3]byte) (dx, dy int, kind Kind) {
	switch {
	case b[2]&0xF3 == 0xF3:
		return 0, 0, End
	case b[2]&0xC3 == 0xC3:
		return 0, 0, ColorChange
	case b[2]&0x80 != 0:
		kind = Jump
	default:
		kind = Stitch
	}
	return decodeAxis(b, dstX), -decodeAxis(b, dstY), kind
}

// dstEncoder accumulates records and the header statistics.
type dstEncoder struct {
	records    bytes.Buffer
	count      int
	colors     int
	x, y       int
	minX, minY int
	maxX, maxY int
	sewn       bool
}

func (e *dstEncoder) record(b [3]byte) {
	e.records.Write(b[:])
	e.count++
}

// moveTo splits the move into equal steps that each fit one record.
func (e *dstEncoder) moveTo(x, y int, jump bool) {
	dx, dy := x-e.x, y-e.y
	steps := max(1, (max(abs(dx), abs(dy))+dstMaxStep-1)/dstMaxStep)
	px, py := e.x, e.y
	for k := 1; k <= steps; k++ {
		nx := e.x + dx*k/steps
		ny := e.y + dy*k/steps
		e.record(encodeMove(nx-px, ny-py, jump))
		px, py = nx, ny
	}
	e.x, e.y = x, y
	e.minX, e.maxX = min(e.minX, x), max(e.maxX, x)
	e.minY, e.maxY = min(e.minY, y), max(e.maxY, y)
}

// WriteDST encodes pts as a Tajima DST file. Positions are converted from
// pixels to 0.1 mm units with mmPerPx and made relative to the first point.
// Color changes before the first stitch are dropped since the first thread
// is implicit.
func WriteDST(w io.Writer, name string, pts []Point, mmPerPx float64) error {
	if !(mmPerPx > 0) {
		return fmt.Errorf("%w: mm_per_px must be positive, got %g", ErrInvalidParams, mmPerPx)
	}

	var e dstEncoder
	if len(pts) > 0 {
		ox, oy := pts[0].X, pts[0].Y
		unit := func(v, o float64) int { return int(math.Round((v - o) * mmPerPx * 10)) }
		for _, p := range pts {
			x, y := unit(p.X, ox), unit(p.Y, oy)
			switch p.Kind {
			case Stitch:
				e.moveTo(x, y, false)
				e.sewn = true
			case Jump:
				e.moveTo(x, y, true)
			case ColorChange:
				if e.sewn {
					e.moveTo(x, y, true)
					e.record(dstColorChange)
					e.colors++
				}
			}
			if p.Kind == End {
				break
			}
		}
	}
	e.record(dstEnd)

	bw := bufio.NewWriter(w)
	if err := writeDSTHeader(bw, name, &e); err != nil {
		return err
	}
	if _, err := bw.Write(e.records.Bytes()); err != nil {
		return fmt.Errorf("failed to write stitches: %w", err)
	}
	return bw.Flush()
}

func writeDSTHeader(w io.Writer, name string, e *dstEncoder) error {
	if len(name) > 16 {
		name = name[:16]
	}
	var h bytes.Buffer
	fmt.Fprintf(&h, "LA:%-16s\r", name)
	fmt.Fprintf(&h, "ST:%7d\r", e.count)
	fmt.Fprintf(&h, "CO:%3d\r", e.colors)
	fmt.Fprintf(&h, "+X:%5d\r", abs(e.maxX))
	fmt.Fprintf(&h, "-X:%5d\r", abs(e.minX))
	fmt.Fprintf(&h, "+Y:%5d\r", abs(e.maxY))
	fmt.Fprintf(&h, "-Y:%5d\r", abs(e.minY))
	fmt.Fprintf(&h, "AX:%s%5d\r", sign(e.x), abs(e.x))
	fmt.Fprintf(&h, "AY:%s%5d\r", sign(-e.y), abs(e.y))
	fmt.Fprintf(&h, "MX:+%5d\r", 0)
	fmt.Fprintf(&h, "MY:+%5d\r", 0)
	fmt.Fprintf(&h, "PD:%6s\r", "******")
	h.WriteByte(0x1A)
	for h.Len() < dstHeaderSize {
		h.WriteByte(' ')
	}
	if _, err := w.Write(h.Bytes()[:dstHeaderSize]); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// ReadDST decodes a DST file into plan points in pixels relative to the
// design origin. Reading stops at the end record.
func ReadDST(r io.Reader, mmPerPx float64) ([]Point, error) {
	if !(mmPerPx > 0) {
		return nil, fmt.Errorf("%w: mm_per_px must be positive, got %g", ErrInvalidParams, mmPerPx)
	}
	br := bufio.NewReader(r)
	if _, err := io.CopyN(io.Discard, br, dstHeaderSize); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrInvalidDST)
	}

	px := func(v int) float64 { return float64(v) / (mmPerPx * 10) }
	var out []Point
	x, y := 0, 0
	for {
		var rec [3]byte
		if _, err := io.ReadFull(br, rec[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("%w: truncated record", ErrInvalidDST)
		}
		dx, dy, kind := decodeRecord(rec)
		if kind == End {
			return out, nil
		}
		x, y = x+dx, y+dy
		out = append(out, Point{X: px(x), Y: px(y), Kind: kind})
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) string {
	if v < 0 {
		return "-"
	}
	return "+"
}
