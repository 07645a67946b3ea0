package nwkwire

import (
	"testing"

	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := &Header{
		FrameType:      FrameData,
		DiscoverRoute:  DiscoverEnable,
		Destination:    nwkaddr.Addr(0x1234),
		Source:         nwkaddr.Addr(0xABCD),
		Radius:         5,
		SequenceNumber: 42,
	}
	buf := make([]byte, h.SerializedSize())
	h.Serialize(buf)

	var got Header
	n, err := got.Deserialize(buf)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("bytes read = %d, want %d", n, len(buf))
	}
	if got.Destination != h.Destination || got.Source != h.Source || got.Radius != h.Radius || got.SequenceNumber != h.SequenceNumber {
		t.Fatalf("got %+v, want %+v", got, h)
	}
	if got.DiscoverRoute != DiscoverEnable {
		t.Fatalf("DiscoverRoute = %v, want DiscoverEnable", got.DiscoverRoute)
	}
}

func TestHeaderWithExtendedAddressesAndMulticast(t *testing.T) {
	h := &Header{
		Multicast:          true,
		Destination:        nwkaddr.Addr(1),
		Source:             nwkaddr.Addr(2),
		DestinationIEEE:    0xAABBCCDDEEFF0011,
		SourceIEEE:         0x1122334455667788,
		NonMemberRadius:    3,
		MaxNonMemberRadius: 6,
	}
	buf := make([]byte, h.SerializedSize())
	h.Serialize(buf)

	var got Header
	got.Multicast = false // deserialize should derive this from the wire, not the caller
	n, err := got.Deserialize(buf)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("bytes read = %d, want %d", n, len(buf))
	}
	if got.DestinationIEEE != h.DestinationIEEE || got.SourceIEEE != h.SourceIEEE {
		t.Fatalf("got %+v, want %+v", got, h)
	}
	if got.NonMemberRadius != 3 || got.MaxNonMemberRadius != 6 {
		t.Fatalf("multicast control = %+v", got)
	}
}
