package nwk

import (
	"testing"

	"github.com/nugget/zigbeesim/internal/simcore"
	"github.com/nugget/zigbeesim/internal/simtime"
	"github.com/nugget/zigbeesim/internal/trace"
	"github.com/nugget/zigbeesim/internal/zigbee/mac"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
	"github.com/nugget/zigbeesim/internal/zigbee/tables"
)

func TestStart_SilentNeighborRouteAgesOut(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := NewRegistry()
	tracer := trace.New()
	events := tracer.Subscribe(64)
	defer tracer.Unsubscribe(events)

	zr1 := newTestNode(sim, medium, tracer, registry, "ZR1", 0x1111, nwkaddr.Router)
	zr2 := newTestNode(sim, medium, tracer, registry, "ZR2", 0x2222, nwkaddr.Router)
	chainNeighbors(zr1, zr2)

	const behindZr2 = nwkaddr.Addr(0x9999)
	if err := zr1.stack.RoutingTable().AddEntry(tables.RouteEntry{
		Destination: behindZr2,
		NextHop:     zr2.stack.SelfAddr(),
		Status:      tables.Active,
	}); err != nil {
		t.Fatalf("seed routing entry: %v", err)
	}

	// ZR2 beacons exactly once and falls silent; ZR1 keeps its own
	// periodic tick running and should evict the neighbor once it has
	// gone NeighborAgeLimit periods without hearing from it again.
	zr2.stack.broadcastLinkStatus()
	zr1.stack.Start()

	sim.StopAt(LinkStatusPeriod*NeighborAgeLimit + LinkStatusPeriod + simtime.Time(1))
	sim.Run()

	if _, ok := zr1.stack.RoutingTable().Lookup(behindZr2, sim.Now()); ok {
		t.Error("route via the silent neighbor should have been dropped")
	}

	var aged []trace.Event
drain:
	for {
		select {
		case e := <-events:
			if e.Kind == trace.KindNeighborAged {
				aged = append(aged, e)
			}
		default:
			break drain
		}
	}
	if len(aged) == 0 {
		t.Fatal("expected at least one neighbor_aged event")
	}
	if got := aged[0].Data["neighbor"]; got != zr2.stack.SelfAddr().String() {
		t.Errorf("aged neighbor = %v, want %v", got, zr2.stack.SelfAddr())
	}
}

func TestStart_ActiveNeighborKeepsRouteAlive(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := NewRegistry()
	tracer := trace.New()

	zr1 := newTestNode(sim, medium, tracer, registry, "ZR1", 0x1111, nwkaddr.Router)
	zr2 := newTestNode(sim, medium, tracer, registry, "ZR2", 0x2222, nwkaddr.Router)
	chainNeighbors(zr1, zr2)

	const behindZr2 = nwkaddr.Addr(0x9999)
	if err := zr1.stack.RoutingTable().AddEntry(tables.RouteEntry{
		Destination: behindZr2,
		NextHop:     zr2.stack.SelfAddr(),
		Status:      tables.Active,
	}); err != nil {
		t.Fatalf("seed routing entry: %v", err)
	}

	zr1.stack.Start()
	zr2.stack.Start()

	sim.StopAt(LinkStatusPeriod*NeighborAgeLimit + LinkStatusPeriod + simtime.Time(1))
	sim.Run()

	if _, ok := zr1.stack.RoutingTable().Lookup(behindZr2, sim.Now()); !ok {
		t.Error("route via a neighbor that keeps beaconing should not have been dropped")
	}
}
