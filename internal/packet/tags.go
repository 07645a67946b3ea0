package packet

// ByteTag attaches metadata to a byte range of the packet's buffer
// (§4.2 "byte tags"). Tags survive fragmentation: Fragment keeps only
// the tags whose range intersects the fragment, rewritten relative to
// the new buffer.
type ByteTag struct {
	TypeID  string
	Start   int
	End     int
	Payload []byte
}

func (t ByteTag) clone() ByteTag {
	p := make([]byte, len(t.Payload))
	copy(p, t.Payload)
	return ByteTag{TypeID: t.TypeID, Start: t.Start, End: t.End, Payload: p}
}

// PacketTag attaches metadata to the whole packet rather than a byte
// range (§4.2 "packet tags"). A packet holds at most one tag per
// TypeID; adding a second of the same TypeID replaces the first.
type PacketTag struct {
	TypeID  string
	Payload []byte
}

func (t PacketTag) clone() PacketTag {
	p := make([]byte, len(t.Payload))
	copy(p, t.Payload)
	return PacketTag{TypeID: t.TypeID, Payload: p}
}

// AddByteTag attaches tag to the packet's full current range.
func (p *Packet) AddByteTag(typeID string, payload []byte) {
	p.AddByteTagRange(typeID, 0, p.Size(), payload)
}

// AddByteTagRange attaches tag to [start, end) of the current buffer.
func (p *Packet) AddByteTagRange(typeID string, start, end int, payload []byte) {
	pl := make([]byte, len(payload))
	copy(pl, payload)
	p.byteTags = append(p.byteTags, ByteTag{TypeID: typeID, Start: start, End: end, Payload: pl})
}

// ByteTags returns a copy of every byte tag currently attached.
func (p *Packet) ByteTags() []ByteTag {
	out := make([]ByteTag, len(p.byteTags))
	for i, t := range p.byteTags {
		out[i] = t.clone()
	}
	return out
}

// AddPacketTag attaches tag to the whole packet, replacing any
// existing tag of the same TypeID (§4.2).
func (p *Packet) AddPacketTag(typeID string, payload []byte) {
	pl := make([]byte, len(payload))
	copy(pl, payload)
	for i, t := range p.packetTags {
		if t.TypeID == typeID {
			p.packetTags[i].Payload = pl
			return
		}
	}
	p.packetTags = append(p.packetTags, PacketTag{TypeID: typeID, Payload: pl})
}

// PeekPacketTag returns the tag with the given TypeID without removing
// it.
func (p *Packet) PeekPacketTag(typeID string) (PacketTag, bool) {
	for _, t := range p.packetTags {
		if t.TypeID == typeID {
			return t.clone(), true
		}
	}
	return PacketTag{}, false
}

// RemovePacketTag removes and returns the tag with the given TypeID.
func (p *Packet) RemovePacketTag(typeID string) (PacketTag, bool) {
	for i, t := range p.packetTags {
		if t.TypeID == typeID {
			p.packetTags = append(p.packetTags[:i], p.packetTags[i+1:]...)
			return t, true
		}
	}
	return PacketTag{}, false
}

// ReplacePacketTag updates the payload of an existing tag, returning
// false if no tag with that TypeID is present (unlike AddPacketTag,
// this does not create one).
func (p *Packet) ReplacePacketTag(typeID string, payload []byte) bool {
	for i, t := range p.packetTags {
		if t.TypeID == typeID {
			pl := make([]byte, len(payload))
			copy(pl, payload)
			p.packetTags[i].Payload = pl
			return true
		}
	}
	return false
}

// RemoveAllPacketTags discards every packet tag.
func (p *Packet) RemoveAllPacketTags() {
	p.packetTags = nil
}

// PacketTags returns a copy of every packet tag currently attached.
func (p *Packet) PacketTags() []PacketTag {
	out := make([]PacketTag, len(p.packetTags))
	for i, t := range p.packetTags {
		out[i] = t.clone()
	}
	return out
}
