// Package packet implements the byte-buffer packet model of §4.2: a
// mutable byte buffer that headers and trailers can be pushed onto and
// popped off of, carrying byte-range tags, whole-packet tags, and
// printable metadata describing what was added, plus a stable wire
// format for serializing all of that onto the network.
package packet

// Chunk is the capability every header and trailer implements: it
// knows its own encoded size, can write itself into a buffer, can
// reconstruct itself from one, and can describe itself for tracing.
// TypeID distinguishes header/trailer kinds in byte tags, packet tags,
// and metadata without reflection.
type Chunk interface {
	TypeID() string
	SerializedSize() int
	Serialize(data []byte)
	Deserialize(data []byte) (int, error)
	Print() string
}

// Header is a Chunk pushed at the front of the packet (§4.2 "headers
// and trailers").
type Header interface {
	Chunk
}

// Trailer is a Chunk pushed at the back of the packet.
type Trailer interface {
	Chunk
}
