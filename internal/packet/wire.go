package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedWire is returned by Deserialize when the wire bytes
// don't decode into a well-formed packet.
var ErrMalformedWire = errors.New("packet: malformed wire data")

// Serialize renders the packet to its on-wire form (§4.2): five
// back-to-back sections — nix-vector, byte tags, packet tags,
// metadata, and the raw buffer — each framed by a 4-byte length field
// that includes itself and pads its payload up to a 4-byte boundary.
// This module carries no nix-vector (routing-cache replay is out of
// scope); the section is still emitted, empty, so the format stays
// compatible with a full ns-3-style decoder.
func (p *Packet) Serialize() []byte {
	var out []byte
	out = appendSection(out, nil) // nix-vector: always empty

	var byteTagsPayload []byte
	byteTagsPayload = appendUint32(byteTagsPayload, uint32(len(p.byteTags)))
	for _, t := range p.byteTags {
		byteTagsPayload = appendString(byteTagsPayload, t.TypeID)
		byteTagsPayload = appendUint32(byteTagsPayload, uint32(t.Start))
		byteTagsPayload = appendUint32(byteTagsPayload, uint32(t.End))
		byteTagsPayload = appendBytes(byteTagsPayload, t.Payload)
	}
	out = appendSection(out, byteTagsPayload)

	var packetTagsPayload []byte
	packetTagsPayload = appendUint32(packetTagsPayload, uint32(len(p.packetTags)))
	for _, t := range p.packetTags {
		packetTagsPayload = appendString(packetTagsPayload, t.TypeID)
		packetTagsPayload = appendBytes(packetTagsPayload, t.Payload)
	}
	out = appendSection(out, packetTagsPayload)

	var metaPayload []byte
	metaPayload = appendUint32(metaPayload, uint32(len(p.headerMeta)))
	for _, m := range p.headerMeta {
		metaPayload = appendUint32(metaPayload, uint32(m.Size))
		metaPayload = appendString(metaPayload, m.TypeID)
		metaPayload = appendString(metaPayload, m.Text)
	}
	metaPayload = appendUint32(metaPayload, uint32(len(p.trailerMeta)))
	for _, m := range p.trailerMeta {
		metaPayload = appendUint32(metaPayload, uint32(m.Size))
		metaPayload = appendString(metaPayload, m.TypeID)
		metaPayload = appendString(metaPayload, m.Text)
	}
	out = appendSection(out, metaPayload)

	var bufPayload []byte
	bufPayload = appendBytes(bufPayload, p.buf)
	out = appendSection(out, bufPayload)

	return out
}

// Deserialize reconstructs a packet from Serialize's wire form. The
// returned packet gets a fresh id: ids are a process-local runtime
// concept, not part of the wire contract.
func Deserialize(data []byte) (*Packet, error) {
	r := wireReader{buf: data}

	if _, err := r.section(); err != nil { // nix-vector, discarded
		return nil, fmt.Errorf("packet: nix-vector section: %w", err)
	}

	byteTagsPayload, err := r.section()
	if err != nil {
		return nil, fmt.Errorf("packet: byte-tags section: %w", err)
	}
	br := wireReader{buf: byteTagsPayload}
	count, err := br.uint32()
	if err != nil {
		return nil, fmt.Errorf("packet: byte-tags count: %w", err)
	}
	byteTags := make([]ByteTag, 0, count)
	for i := uint32(0); i < count; i++ {
		typeID, err := br.string()
		if err != nil {
			return nil, err
		}
		start, err := br.uint32()
		if err != nil {
			return nil, err
		}
		end, err := br.uint32()
		if err != nil {
			return nil, err
		}
		payload, err := br.bytes()
		if err != nil {
			return nil, err
		}
		byteTags = append(byteTags, ByteTag{TypeID: typeID, Start: int(start), End: int(end), Payload: payload})
	}

	packetTagsPayload, err := r.section()
	if err != nil {
		return nil, fmt.Errorf("packet: packet-tags section: %w", err)
	}
	pr := wireReader{buf: packetTagsPayload}
	count, err = pr.uint32()
	if err != nil {
		return nil, fmt.Errorf("packet: packet-tags count: %w", err)
	}
	packetTags := make([]PacketTag, 0, count)
	for i := uint32(0); i < count; i++ {
		typeID, err := pr.string()
		if err != nil {
			return nil, err
		}
		payload, err := pr.bytes()
		if err != nil {
			return nil, err
		}
		packetTags = append(packetTags, PacketTag{TypeID: typeID, Payload: payload})
	}

	metaPayload, err := r.section()
	if err != nil {
		return nil, fmt.Errorf("packet: metadata section: %w", err)
	}
	mr := wireReader{buf: metaPayload}
	headerMeta, err := readMetaList(&mr)
	if err != nil {
		return nil, fmt.Errorf("packet: header metadata: %w", err)
	}
	trailerMeta, err := readMetaList(&mr)
	if err != nil {
		return nil, fmt.Errorf("packet: trailer metadata: %w", err)
	}

	bufPayload, err := r.section()
	if err != nil {
		return nil, fmt.Errorf("packet: buffer section: %w", err)
	}
	fr := wireReader{buf: bufPayload}
	buf, err := fr.bytes()
	if err != nil {
		return nil, fmt.Errorf("packet: buffer data: %w", err)
	}

	return &Packet{
		id:          nextPacketID(),
		buf:         buf,
		byteTags:    byteTags,
		packetTags:  packetTags,
		headerMeta:  headerMeta,
		trailerMeta: trailerMeta,
	}, nil
}

func readMetaList(r *wireReader) ([]metaFragment, error) {
	count, err := r.uint32()
	if err != nil {
		return nil, err
	}
	out := make([]metaFragment, 0, count)
	for i := uint32(0); i < count; i++ {
		size, err := r.uint32()
		if err != nil {
			return nil, err
		}
		typeID, err := r.string()
		if err != nil {
			return nil, err
		}
		text, err := r.string()
		if err != nil {
			return nil, err
		}
		out = append(out, metaFragment{TypeID: typeID, Size: int(size), Text: text})
	}
	return out, nil
}

func align4(n int) int { return (n + 3) &^ 3 }

// appendSection frames payload with a 4-byte length (including
// itself) and pads it to a 4-byte boundary.
func appendSection(dst, payload []byte) []byte {
	total := align4(4 + len(payload))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(total))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, payload...)
	dst = append(dst, make([]byte, total-4-len(payload))...)
	return dst
}

func appendUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendBytes(dst, data []byte) []byte {
	dst = appendUint32(dst, uint32(len(data)))
	dst = append(dst, data...)
	pad := align4(len(data)) - len(data)
	return append(dst, make([]byte, pad)...)
}

func appendString(dst []byte, s string) []byte {
	return appendBytes(dst, []byte(s))
}

// wireReader reads the length-prefixed, 4-byte-aligned primitives
// appendSection/appendUint32/appendBytes/appendString write.
type wireReader struct {
	buf []byte
	pos int
}

func (r *wireReader) section() ([]byte, error) {
	total, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if total < 4 {
		return nil, ErrMalformedWire
	}
	payloadLen := int(total) - 4
	if r.pos+payloadLen > len(r.buf) {
		return nil, ErrMalformedWire
	}
	payload := r.buf[r.pos : r.pos+payloadLen]
	r.pos += payloadLen
	return payload, nil
}

func (r *wireReader) uint32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, ErrMalformedWire
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *wireReader) bytes() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	padded := align4(int(n))
	if r.pos+padded > len(r.buf) {
		return nil, ErrMalformedWire
	}
	out := append([]byte(nil), r.buf[r.pos:r.pos+int(n)]...)
	r.pos += padded
	return out, nil
}

func (r *wireReader) string() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
