package packet

import (
	"errors"
	"sync/atomic"
)

// ErrBufferUnderrun is returned when a remove/peek operation asks for
// more bytes than the packet currently holds.
var ErrBufferUnderrun = errors.New("packet: buffer underrun")

// ErrNoSuchHeader is returned by RemoveHeader/PeekHeader when the
// packet carries no header at all.
var ErrNoSuchHeader = errors.New("packet: no header present")

// ErrNoSuchTrailer is returned by RemoveTrailer/PeekTrailer when the
// packet carries no trailer at all.
var ErrNoSuchTrailer = errors.New("packet: no trailer present")

// packetIDCounter is process-wide and monotonic; packet uids are NOT
// random identifiers (no google/uuid here) because §4.2 requires a
// dense, comparable, orderable id a trace can sort on, and the wire
// format devotes a fixed 8 bytes to it.
var packetIDCounter uint64

// systemID optionally tags every packet minted by this process in the
// upper 32 bits of its id, for multi-process/distributed traces (§3
// "systems"). It defaults to 0 and is set once at startup.
var systemID uint32

// SetSystemID sets the system id stamped into the upper 32 bits of
// every subsequently minted packet id. Call once, before scheduling
// traffic.
func SetSystemID(id uint32) {
	systemID = id
}

func nextPacketID() uint64 {
	n := atomic.AddUint64(&packetIDCounter, 1)
	return uint64(systemID)<<32 | (n & 0xFFFFFFFF)
}

// Packet is the unit ns-3-style headers and trailers attach to: a
// growable byte buffer plus the tags and metadata that travel with it
// (§4.2). The zero value is not usable; construct with New,
// NewWithSize, or NewFromBytes.
type Packet struct {
	id  uint64
	buf []byte

	byteTags   []ByteTag
	packetTags []PacketTag

	headerMeta  []metaFragment // front-most (most recently added) first
	trailerMeta []metaFragment // most recently added last
}

// New returns an empty packet with a fresh id.
func New() *Packet {
	return &Packet{id: nextPacketID()}
}

// NewWithSize returns a packet whose buffer is n zero bytes, as if
// that many bytes of payload had already been received.
func NewWithSize(n int) *Packet {
	return &Packet{id: nextPacketID(), buf: make([]byte, n)}
}

// NewFromBytes copies data into a new packet's buffer.
func NewFromBytes(data []byte) *Packet {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Packet{id: nextPacketID(), buf: buf}
}

// ID returns the packet's unique id. IDs are unique within a process
// (and, with SetSystemID, across a fleet of them) but are not UUIDs:
// they are dense small integers a trace can sort and diff on.
func (p *Packet) ID() uint64 { return p.id }

// Size returns the current buffer length in bytes.
func (p *Packet) Size() int { return len(p.buf) }

// CopyData copies up to len(dst) bytes from the packet's buffer into
// dst and returns the number of bytes copied.
func (p *Packet) CopyData(dst []byte) int {
	return copy(dst, p.buf)
}

// Bytes returns the packet's buffer. Callers must not mutate it
// in place; use the Add/Remove operations instead.
func (p *Packet) Bytes() []byte {
	return p.buf
}

// Clone returns a fully independent deep copy, including tags and
// metadata, but with a fresh id (cloning a packet produces a distinct
// packet, per §4.2's identity semantics for Copy).
func (p *Packet) Clone() *Packet {
	c := &Packet{id: nextPacketID()}
	c.buf = append([]byte(nil), p.buf...)
	for _, t := range p.byteTags {
		c.byteTags = append(c.byteTags, t.clone())
	}
	for _, t := range p.packetTags {
		c.packetTags = append(c.packetTags, t.clone())
	}
	c.headerMeta = append([]metaFragment(nil), p.headerMeta...)
	c.trailerMeta = append([]metaFragment(nil), p.trailerMeta...)
	return c
}

// AddHeader serializes h and prepends it to the buffer. Existing byte
// tags are shifted to keep pointing at the same logical bytes.
func (p *Packet) AddHeader(h Header) {
	n := h.SerializedSize()
	out := make([]byte, n)
	h.Serialize(out)
	p.buf = append(out, p.buf...)
	for i := range p.byteTags {
		p.byteTags[i].Start += n
		p.byteTags[i].End += n
	}
	meta := metaFragment{TypeID: h.TypeID(), Size: n, Text: h.Print()}
	p.headerMeta = append([]metaFragment{meta}, p.headerMeta...)
}

// PeekHeader deserializes the outermost header into h without
// removing it from the buffer.
func (p *Packet) PeekHeader(h Header) (int, error) {
	if len(p.headerMeta) == 0 {
		return 0, ErrNoSuchHeader
	}
	return h.Deserialize(p.buf)
}

// RemoveHeader deserializes the outermost header into h and strips it
// from the buffer (LIFO: the most recently added header is always the
// one at the front).
func (p *Packet) RemoveHeader(h Header) (int, error) {
	if len(p.headerMeta) == 0 {
		return 0, ErrNoSuchHeader
	}
	n, err := h.Deserialize(p.buf)
	if err != nil {
		return 0, err
	}
	if err := p.removeAtStart(n); err != nil {
		return 0, err
	}
	p.headerMeta = p.headerMeta[1:]
	return n, nil
}

// AddTrailer serializes t and appends it to the buffer.
func (p *Packet) AddTrailer(t Trailer) {
	n := t.SerializedSize()
	out := make([]byte, n)
	t.Serialize(out)
	p.buf = append(p.buf, out...)
	meta := metaFragment{TypeID: t.TypeID(), Size: n, Text: t.Print()}
	p.trailerMeta = append(p.trailerMeta, meta)
}

// PeekTrailer deserializes the outermost trailer into t without
// removing it.
func (p *Packet) PeekTrailer(t Trailer) (int, error) {
	if len(p.trailerMeta) == 0 {
		return 0, ErrNoSuchTrailer
	}
	n := t.SerializedSize()
	if n > len(p.buf) {
		return 0, ErrBufferUnderrun
	}
	return t.Deserialize(p.buf[len(p.buf)-n:])
}

// RemoveTrailer deserializes the outermost trailer into t and strips
// it from the buffer (LIFO: the most recently added trailer sits at
// the very end).
func (p *Packet) RemoveTrailer(t Trailer) (int, error) {
	if len(p.trailerMeta) == 0 {
		return 0, ErrNoSuchTrailer
	}
	n := t.SerializedSize()
	if n > len(p.buf) {
		return 0, ErrBufferUnderrun
	}
	read, err := t.Deserialize(p.buf[len(p.buf)-n:])
	if err != nil {
		return 0, err
	}
	if err := p.removeAtEnd(read); err != nil {
		return 0, err
	}
	p.trailerMeta = p.trailerMeta[:len(p.trailerMeta)-1]
	return read, nil
}

// AddAtEnd appends other's buffer to the end of p, merging in its
// byte tags shifted to the new offsets (§4.2 "concatenation").
// Metadata is not merged: the result is raw payload from p's point of
// view, not a chunk p understands how to print.
func (p *Packet) AddAtEnd(other *Packet) {
	base := p.Size()
	p.buf = append(p.buf, other.buf...)
	for _, t := range other.byteTags {
		p.byteTags = append(p.byteTags, ByteTag{
			TypeID:  t.TypeID,
			Start:   t.Start + base,
			End:     t.End + base,
			Payload: append([]byte(nil), t.Payload...),
		})
	}
}

// AddPaddingAtEnd appends n zero bytes, uncovered by any tag.
func (p *Packet) AddPaddingAtEnd(n int) {
	p.buf = append(p.buf, make([]byte, n)...)
}

// RemoveAtStart trims n bytes from the front, shifting remaining byte
// tags and clipping any that overlap the removed region.
func (p *Packet) RemoveAtStart(n int) error {
	if err := p.removeAtStart(n); err != nil {
		return err
	}
	p.headerMeta = nil
	return nil
}

func (p *Packet) removeAtStart(n int) error {
	if n < 0 || n > len(p.buf) {
		return ErrBufferUnderrun
	}
	p.buf = p.buf[n:]
	kept := p.byteTags[:0]
	for _, t := range p.byteTags {
		t.Start -= n
		t.End -= n
		if t.End <= 0 {
			continue
		}
		if t.Start < 0 {
			t.Start = 0
		}
		kept = append(kept, t)
	}
	p.byteTags = kept
	return nil
}

// RemoveAtEnd trims n bytes from the back, clipping overlapping byte
// tags.
func (p *Packet) RemoveAtEnd(n int) error {
	if err := p.removeAtEnd(n); err != nil {
		return err
	}
	p.trailerMeta = nil
	return nil
}

func (p *Packet) removeAtEnd(n int) error {
	if n < 0 || n > len(p.buf) {
		return ErrBufferUnderrun
	}
	newSize := len(p.buf) - n
	p.buf = p.buf[:newSize]
	kept := p.byteTags[:0]
	for _, t := range p.byteTags {
		if t.Start >= newSize {
			continue
		}
		if t.End > newSize {
			t.End = newSize
		}
		kept = append(kept, t)
	}
	p.byteTags = kept
	return nil
}

// Fragment returns a new packet holding a copy of buf[start:start+length]
// and the byte tags that intersect it, rewritten relative to the
// fragment's own start. Fragment(0, Size()) reproduces the original
// buffer, byte tags and header/trailer metadata exactly; any smaller
// fragment carries no header/trailer metadata, since it is raw bytes,
// not necessarily chunk-aligned.
func (p *Packet) Fragment(start, length int) (*Packet, error) {
	if start < 0 || length < 0 || start+length > len(p.buf) {
		return nil, ErrBufferUnderrun
	}
	out := NewFromBytes(p.buf[start : start+length])
	for _, t := range p.byteTags {
		s, e := t.Start, t.End
		if e <= start || s >= start+length {
			continue
		}
		if s < start {
			s = start
		}
		if e > start+length {
			e = start + length
		}
		out.byteTags = append(out.byteTags, ByteTag{
			TypeID:  t.TypeID,
			Start:   s - start,
			End:     e - start,
			Payload: append([]byte(nil), t.Payload...),
		})
	}
	for _, t := range p.packetTags {
		out.packetTags = append(out.packetTags, t.clone())
	}
	if start == 0 && length == len(p.buf) {
		out.headerMeta = append([]metaFragment(nil), p.headerMeta...)
		out.trailerMeta = append([]metaFragment(nil), p.trailerMeta...)
	}
	return out, nil
}
