package packet

// metaFragment records that a header or trailer of TypeID and Size
// bytes was added, so PrintMetadata can reconstruct a human-readable
// trace of every chunk the packet has carried without re-parsing the
// buffer (§4.2 "metadata").
type metaFragment struct {
	TypeID string
	Size   int
	Text   string
}

// PrintMetadata renders, outermost first, every header this packet
// currently carries, followed by the raw payload size, followed by
// every trailer innermost first — the same order the bytes appear on
// the wire.
func (p *Packet) PrintMetadata() string {
	s := ""
	for _, m := range p.headerMeta {
		s += m.TypeID + "(" + m.Text + ") "
	}
	s += payloadLabel(p.payloadSize())
	for _, m := range p.trailerMeta {
		s += " " + m.TypeID + "(" + m.Text + ")"
	}
	return s
}

func payloadLabel(n int) string {
	if n == 0 {
		return "Payload (size=0)"
	}
	return "Payload"
}

func (p *Packet) payloadSize() int {
	n := p.Size()
	for _, m := range p.headerMeta {
		n -= m.Size
	}
	for _, m := range p.trailerMeta {
		n -= m.Size
	}
	return n
}
