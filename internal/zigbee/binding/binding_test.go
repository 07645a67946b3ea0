package binding

import (
	"testing"

	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
)

func TestBindThenBindAgainIsEntryExists(t *testing.T) {
	tbl := New()
	src := Source{ExtAddr: 1, Endpoint: 1, ClusterID: 6}
	dst := Destination{Mode: Group, GroupID: 0x1234}

	if r := tbl.Bind(src, dst); r != Bound {
		t.Fatalf("first Bind = %v, want Bound", r)
	}
	if r := tbl.Bind(src, dst); r != EntryExists {
		t.Fatalf("second Bind = %v, want EntryExists", r)
	}
}

func TestUnbindMissingEntry(t *testing.T) {
	tbl := New()
	src := Source{ExtAddr: 1, Endpoint: 1, ClusterID: 6}
	dst := Destination{Mode: IEEEEndpoint, ExtAddr: 2, Endpoint: 4}

	if r := tbl.Unbind(src, dst); r != EntryNotFound {
		t.Fatalf("got %v, want EntryNotFound", r)
	}
}

func TestBindUnbindRoundTrip(t *testing.T) {
	tbl := New()
	src := Source{ExtAddr: 1, Endpoint: 1, ClusterID: 6}
	dst := Destination{Mode: IEEEEndpoint, ExtAddr: 2, Endpoint: 4}

	tbl.Bind(src, dst)
	if r := tbl.Unbind(src, dst); r != Unbound {
		t.Fatalf("got %v, want Unbound", r)
	}
	if _, ok := tbl.LookupEntries(src); ok {
		t.Fatal("expected no destinations after unbinding the only entry")
	}
}

func TestSourceTableFull(t *testing.T) {
	tbl := New()
	for i := 0; i < DefaultMaxSources; i++ {
		src := Source{ExtAddr: nwkaddr.ExtAddr(i), Endpoint: 1, ClusterID: 1}
		if r := tbl.Bind(src, Destination{Mode: Group, GroupID: 1}); r != Bound {
			t.Fatalf("Bind %d = %v, want Bound", i, r)
		}
	}
	overflow := Source{ExtAddr: nwkaddr.ExtAddr(999), Endpoint: 1, ClusterID: 1}
	if r := tbl.Bind(overflow, Destination{Mode: Group, GroupID: 1}); r != TableFull {
		t.Fatalf("got %v, want TableFull", r)
	}
}
