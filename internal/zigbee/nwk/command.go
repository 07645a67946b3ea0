package nwk

import (
	"encoding/binary"

	"github.com/nugget/zigbeesim/internal/packet"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
)

// NWK command identifiers. Route discovery, route record, and link
// status are modeled; the rest of the Zigbee Pro command set (leave,
// rejoin request/response, network report/update, ...) is out of
// scope.
const (
	cmdRREQ        byte = 1
	cmdRREP        byte = 2
	cmdRouteRecord byte = 5
	cmdLinkStatus  byte = 8
)

// rreqCommand is the wire payload of a route request (§4.5, §3
// "carrying (rreq-id, source-16, dest-16, path-cost=0)").
type rreqCommand struct {
	RreqID      uint8
	ManyToOne   bool
	Source      nwkaddr.Addr
	Destination nwkaddr.Addr
	PathCost    uint8
}

func (c rreqCommand) encode() []byte {
	buf := make([]byte, 8)
	buf[0] = cmdRREQ
	buf[1] = c.RreqID
	if c.ManyToOne {
		buf[2] = 1
	}
	binary.BigEndian.PutUint16(buf[3:5], uint16(c.Source))
	binary.BigEndian.PutUint16(buf[5:7], uint16(c.Destination))
	buf[7] = c.PathCost
	return buf
}

func decodeRREQ(payload []byte) (rreqCommand, error) {
	if len(payload) < 8 {
		return rreqCommand{}, packet.ErrBufferUnderrun
	}
	return rreqCommand{
		RreqID:      payload[1],
		ManyToOne:   payload[2] != 0,
		Source:      nwkaddr.Addr(binary.BigEndian.Uint16(payload[3:5])),
		Destination: nwkaddr.Addr(binary.BigEndian.Uint16(payload[5:7])),
		PathCost:    payload[7],
	}, nil
}

// rrepCommand is the wire payload of a route reply. OriginalSource
// carries the RREQ's source-16 so every hop on the way back can look
// up its own reverse-path entry in the route-discovery table by the
// same (rreq-id, source-16) key it used to record the forward pass.
type rrepCommand struct {
	RreqID         uint8
	OriginalSource nwkaddr.Addr
	RouteDest      nwkaddr.Addr
	ResidualCost   uint8
}

func (c rrepCommand) encode() []byte {
	buf := make([]byte, 7)
	buf[0] = cmdRREP
	buf[1] = c.RreqID
	binary.BigEndian.PutUint16(buf[2:4], uint16(c.OriginalSource))
	binary.BigEndian.PutUint16(buf[4:6], uint16(c.RouteDest))
	buf[6] = c.ResidualCost
	return buf
}

func decodeRREP(payload []byte) (rrepCommand, error) {
	if len(payload) < 7 {
		return rrepCommand{}, packet.ErrBufferUnderrun
	}
	return rrepCommand{
		RreqID:         payload[1],
		OriginalSource: nwkaddr.Addr(binary.BigEndian.Uint16(payload[2:4])),
		RouteDest:      nwkaddr.Addr(binary.BigEndian.Uint16(payload[4:6])),
		ResidualCost:   payload[6],
	}, nil
}

// routeRecordCommand carries the list of relays a frame crossed on its
// way from Originator toward Concentrator, so the concentrator can
// build a source route back without running a full route discovery of
// its own (§4.5 "many-to-one").
type routeRecordCommand struct {
	Originator   nwkaddr.Addr
	Concentrator nwkaddr.Addr
	Relays       []nwkaddr.Addr
}

func (c routeRecordCommand) encode() []byte {
	buf := make([]byte, 6+2*len(c.Relays))
	buf[0] = cmdRouteRecord
	binary.BigEndian.PutUint16(buf[1:3], uint16(c.Originator))
	binary.BigEndian.PutUint16(buf[3:5], uint16(c.Concentrator))
	buf[5] = uint8(len(c.Relays))
	for i, r := range c.Relays {
		binary.BigEndian.PutUint16(buf[6+2*i:8+2*i], uint16(r))
	}
	return buf
}

func decodeRouteRecord(payload []byte) (routeRecordCommand, error) {
	if len(payload) < 6 {
		return routeRecordCommand{}, packet.ErrBufferUnderrun
	}
	count := int(payload[5])
	want := 6 + 2*count
	if len(payload) < want {
		return routeRecordCommand{}, packet.ErrBufferUnderrun
	}
	relays := make([]nwkaddr.Addr, count)
	for i := 0; i < count; i++ {
		relays[i] = nwkaddr.Addr(binary.BigEndian.Uint16(payload[6+2*i : 8+2*i]))
	}
	return routeRecordCommand{
		Originator:   nwkaddr.Addr(binary.BigEndian.Uint16(payload[1:3])),
		Concentrator: nwkaddr.Addr(binary.BigEndian.Uint16(payload[3:5])),
		Relays:       relays,
	}, nil
}

// linkStatusCommand is a periodic single-hop beacon a router or
// coordinator sends so its neighbors know it is still alive (§4.5
// "neighbor aging"). Real Zigbee link status also carries incoming and
// outgoing link costs per neighbor; this simulator only needs the
// beacon itself to drive aging, so the payload carries nothing beyond
// the command id and the NWK header's own Source field supplies the
// sender.
type linkStatusCommand struct{}

func (linkStatusCommand) encode() []byte {
	return []byte{cmdLinkStatus}
}
