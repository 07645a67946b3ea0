// Package nwkwire implements the Zigbee NWK header wire format (§6):
// frame control plus addressing, radius, sequence number, and the
// optional extended-address, multicast-control, and source-route
// subframes it can carry. It satisfies internal/packet's Chunk
// contract so NWK frames are ordinary packet.Header values.
package nwkwire

import (
	"encoding/binary"
	"fmt"

	"github.com/nugget/zigbeesim/internal/packet"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
)

// FrameType is the NWK frame-control frame type (bits 0-1).
type FrameType int

const (
	FrameData FrameType = iota
	FrameCommand
	_reservedFrameType
	FrameInterPan
)

// DiscoverRoute selects route-discovery behaviour for a data request
// (§4.5).
type DiscoverRoute int

const (
	DiscoverSuppress DiscoverRoute = iota
	DiscoverEnable
	DiscoverForce
)

const protocolVersion = 2 // Zigbee Pro

// frame-control bit positions.
const (
	bitMulticast           = 8
	bitSecurity            = 9
	bitSourceRoute         = 10
	bitDestinationIEEE     = 11
	bitSourceIEEE          = 12
)

// Header is the NWK header (§6 "Wire format — NWK header").
type Header struct {
	FrameType      FrameType
	DiscoverRoute  DiscoverRoute
	Multicast      bool
	Security       bool
	SourceRoute    bool
	Destination    nwkaddr.Addr
	Source         nwkaddr.Addr
	Radius         uint8
	SequenceNumber uint8

	DestinationIEEE nwkaddr.ExtAddr
	SourceIEEE      nwkaddr.ExtAddr

	NonMemberRadius    uint8
	MaxNonMemberRadius uint8

	RelayList []nwkaddr.Addr
	RelayIndex uint8
}

func (h *Header) TypeID() string { return "zigbee.nwk.Header" }

func (h *Header) hasDestinationIEEE() bool { return h.DestinationIEEE != 0 }
func (h *Header) hasSourceIEEE() bool      { return h.SourceIEEE != 0 }

func (h *Header) SerializedSize() int {
	n := 2 + 2 + 2 + 1 + 1 // frame control, dst16, src16, radius, seq
	if h.hasDestinationIEEE() {
		n += 8
	}
	if h.hasSourceIEEE() {
		n += 8
	}
	if h.Multicast {
		n += 1
	}
	if h.SourceRoute {
		n += 2 + 2*len(h.RelayList)
	}
	return n
}

func (h *Header) frameControl() uint16 {
	fc := uint16(h.FrameType&0x3) | uint16(protocolVersion&0xF)<<2 | uint16(h.DiscoverRoute&0x3)<<6
	if h.Multicast {
		fc |= 1 << bitMulticast
	}
	if h.Security {
		fc |= 1 << bitSecurity
	}
	if h.SourceRoute {
		fc |= 1 << bitSourceRoute
	}
	if h.hasDestinationIEEE() {
		fc |= 1 << bitDestinationIEEE
	}
	if h.hasSourceIEEE() {
		fc |= 1 << bitSourceIEEE
	}
	return fc
}

func (h *Header) Serialize(data []byte) {
	binary.BigEndian.PutUint16(data[0:2], h.frameControl())
	binary.BigEndian.PutUint16(data[2:4], uint16(h.Destination))
	binary.BigEndian.PutUint16(data[4:6], uint16(h.Source))
	data[6] = h.Radius
	data[7] = h.SequenceNumber
	off := 8
	if h.hasDestinationIEEE() {
		binary.BigEndian.PutUint64(data[off:off+8], uint64(h.DestinationIEEE))
		off += 8
	}
	if h.hasSourceIEEE() {
		binary.BigEndian.PutUint64(data[off:off+8], uint64(h.SourceIEEE))
		off += 8
	}
	if h.Multicast {
		data[off] = h.NonMemberRadius&0x7 | (h.MaxNonMemberRadius&0x7)<<3
		off++
	}
	if h.SourceRoute {
		data[off] = uint8(len(h.RelayList))
		data[off+1] = h.RelayIndex
		off += 2
		for _, r := range h.RelayList {
			binary.BigEndian.PutUint16(data[off:off+2], uint16(r))
			off += 2
		}
	}
}

func (h *Header) Deserialize(data []byte) (int, error) {
	if len(data) < 8 {
		return 0, packet.ErrBufferUnderrun
	}
	fc := binary.BigEndian.Uint16(data[0:2])
	h.FrameType = FrameType(fc & 0x3)
	h.DiscoverRoute = DiscoverRoute((fc >> 6) & 0x3)
	h.Multicast = fc&(1<<bitMulticast) != 0
	h.Security = fc&(1<<bitSecurity) != 0
	h.SourceRoute = fc&(1<<bitSourceRoute) != 0
	hasDstIEEE := fc&(1<<bitDestinationIEEE) != 0
	hasSrcIEEE := fc&(1<<bitSourceIEEE) != 0

	h.Destination = nwkaddr.Addr(binary.BigEndian.Uint16(data[2:4]))
	h.Source = nwkaddr.Addr(binary.BigEndian.Uint16(data[4:6]))
	h.Radius = data[6]
	h.SequenceNumber = data[7]
	off := 8

	if hasDstIEEE {
		if len(data) < off+8 {
			return 0, packet.ErrBufferUnderrun
		}
		h.DestinationIEEE = nwkaddr.ExtAddr(binary.BigEndian.Uint64(data[off : off+8]))
		off += 8
	} else {
		h.DestinationIEEE = 0
	}
	if hasSrcIEEE {
		if len(data) < off+8 {
			return 0, packet.ErrBufferUnderrun
		}
		h.SourceIEEE = nwkaddr.ExtAddr(binary.BigEndian.Uint64(data[off : off+8]))
		off += 8
	} else {
		h.SourceIEEE = 0
	}
	if h.Multicast {
		if len(data) < off+1 {
			return 0, packet.ErrBufferUnderrun
		}
		h.NonMemberRadius = data[off] & 0x7
		h.MaxNonMemberRadius = (data[off] >> 3) & 0x7
		off++
	}
	if h.SourceRoute {
		if len(data) < off+2 {
			return 0, packet.ErrBufferUnderrun
		}
		count := int(data[off])
		h.RelayIndex = data[off+1]
		off += 2
		if len(data) < off+2*count {
			return 0, packet.ErrBufferUnderrun
		}
		h.RelayList = make([]nwkaddr.Addr, count)
		for i := 0; i < count; i++ {
			h.RelayList[i] = nwkaddr.Addr(binary.BigEndian.Uint16(data[off : off+2]))
			off += 2
		}
	}
	return off, nil
}

func (h *Header) Print() string {
	return fmt.Sprintf("src=%v dst=%v radius=%d seq=%d", h.Source, h.Destination, h.Radius, h.SequenceNumber)
}

var _ packet.Header = (*Header)(nil)
