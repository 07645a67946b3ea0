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

func TestNetworkFormation_CoordinatorAssignsItselfZero(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := NewRegistry()
	tracer := trace.New()

	zc := newTestNode(sim, medium, tracer, registry, "ZC", 0xFFFF, nwkaddr.Coordinator)

	var confirms []NetworkFormationConfirmParams
	zc.stack.SetNetworkFormationConfirmCallback(func(c NetworkFormationConfirmParams) {
		confirms = append(confirms, c)
	})

	zc.stack.NetworkFormation(NetworkFormationParams{PanID: nwkaddr.PanID(0x1A62)})

	sim.StopAt(simtime.Time(1))
	sim.Run()

	if len(confirms) != 1 {
		t.Fatalf("got %d confirms, want 1", len(confirms))
	}
	if confirms[0].Status != Success {
		t.Fatalf("status = %v, want SUCCESS", confirms[0].Status)
	}
	if zc.stack.SelfAddr() != 0x0000 {
		t.Errorf("self addr = %v, want 0x0000", zc.stack.SelfAddr())
	}
}

func TestNetworkFormation_NonCoordinatorNotPermitted(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := NewRegistry()
	tracer := trace.New()

	zr := newTestNode(sim, medium, tracer, registry, "ZR", 0x1111, nwkaddr.Router)

	var confirms []NetworkFormationConfirmParams
	zr.stack.SetNetworkFormationConfirmCallback(func(c NetworkFormationConfirmParams) {
		confirms = append(confirms, c)
	})

	zr.stack.NetworkFormation(NetworkFormationParams{PanID: nwkaddr.PanID(0x1A62)})

	sim.StopAt(simtime.Time(1))
	sim.Run()

	if len(confirms) != 1 || confirms[0].Status != NotPermitted {
		t.Fatalf("confirms = %+v, want one NOT_PERMITTED", confirms)
	}
}

func TestJoin_SelectsBestParentAndAdoptsAddress(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := NewRegistry()
	tracer := trace.New()

	joiner := newTestNode(sim, medium, tracer, registry, "JOINER", 0xFFFF, nwkaddr.EndDevice)

	const extPanID = nwkaddr.ExtPanID(0xAABBCCDDEEFF0011)
	joiner.stack.NeighborTable().AddOrUpdate(tables.NeighborEntry{
		ExtAddr:         0x1111,
		NwkAddr:         0x1111,
		DeviceType:      nwkaddr.Router,
		Relationship:    tables.RelNone,
		ExtPanID:        extPanID,
		PotentialParent: true,
		LQI:             255,
	})

	var confirms []JoinConfirmParams
	joiner.stack.SetJoinConfirmCallback(func(c JoinConfirmParams) { confirms = append(confirms, c) })

	const allocated = nwkaddr.Addr(0x2222)
	joiner.stack.Join(extPanID, allocated)

	sim.StopAt(simtime.Time(1))
	sim.Run()

	if len(confirms) != 1 {
		t.Fatalf("got %d confirms, want 1", len(confirms))
	}
	if confirms[0].Status != Success || confirms[0].NwkAddr != allocated {
		t.Errorf("confirm = %+v, want SUCCESS/%v", confirms[0], allocated)
	}
	if joiner.stack.SelfAddr() != allocated {
		t.Errorf("self addr = %v, want %v", joiner.stack.SelfAddr(), allocated)
	}
	parent, ok := joiner.stack.NeighborTable().Get(0x1111)
	if !ok || parent.Relationship != tables.RelParent {
		t.Errorf("parent relationship = %+v, want RelParent", parent)
	}
}

func TestJoin_NoPotentialParentNotPermitted(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := NewRegistry()
	tracer := trace.New()

	joiner := newTestNode(sim, medium, tracer, registry, "JOINER", 0xFFFF, nwkaddr.EndDevice)

	var confirms []JoinConfirmParams
	joiner.stack.SetJoinConfirmCallback(func(c JoinConfirmParams) { confirms = append(confirms, c) })

	joiner.stack.Join(nwkaddr.ExtPanID(0x1234), 0x5678)

	sim.StopAt(simtime.Time(1))
	sim.Run()

	if len(confirms) != 1 || confirms[0].Status != NotPermitted {
		t.Fatalf("confirms = %+v, want one NOT_PERMITTED", confirms)
	}
}

func TestDirectJoin_RouterRegistersUnauthChild(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := NewRegistry()
	tracer := trace.New()

	zr := newTestNode(sim, medium, tracer, registry, "ZR", 0x1111, nwkaddr.Router)

	var confirms []DirectJoinConfirmParams
	zr.stack.SetDirectJoinConfirmCallback(func(c DirectJoinConfirmParams) { confirms = append(confirms, c) })

	const childExt = nwkaddr.ExtAddr(0xDEAD)
	const allocated = nwkaddr.Addr(0x3333)
	zr.stack.DirectJoin(childExt, allocated)

	sim.StopAt(simtime.Time(1))
	sim.Run()

	if len(confirms) != 1 || confirms[0].Status != Success {
		t.Fatalf("confirms = %+v, want one SUCCESS", confirms)
	}
	child, ok := zr.stack.NeighborTable().Get(childExt)
	if !ok || child.Relationship != tables.RelUnauthChild || child.NwkAddr != allocated {
		t.Errorf("child entry = %+v, want UNAUTH_CHILD at %v", child, allocated)
	}
}

func TestDirectJoin_EndDeviceNotPermitted(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := NewRegistry()
	tracer := trace.New()

	dev := newTestNode(sim, medium, tracer, registry, "DEV", 0x2222, nwkaddr.EndDevice)

	var confirms []DirectJoinConfirmParams
	dev.stack.SetDirectJoinConfirmCallback(func(c DirectJoinConfirmParams) { confirms = append(confirms, c) })

	dev.stack.DirectJoin(0xBEEF, 0x4444)

	sim.StopAt(simtime.Time(1))
	sim.Run()

	if len(confirms) != 1 || confirms[0].Status != NotPermitted {
		t.Fatalf("confirms = %+v, want one NOT_PERMITTED", confirms)
	}
}

func TestStartRouter_EndDeviceBecomesRouter(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := NewRegistry()
	tracer := trace.New()

	dev := newTestNode(sim, medium, tracer, registry, "DEV", 0x2222, nwkaddr.EndDevice)

	var confirms []StartRouterConfirmParams
	dev.stack.SetStartRouterConfirmCallback(func(c StartRouterConfirmParams) { confirms = append(confirms, c) })

	dev.stack.StartRouter()

	sim.StopAt(simtime.Time(1))
	sim.Run()

	if len(confirms) != 1 || confirms[0].Status != Success {
		t.Fatalf("confirms = %+v, want one SUCCESS", confirms)
	}

	var directConfirms []DirectJoinConfirmParams
	dev.stack.SetDirectJoinConfirmCallback(func(c DirectJoinConfirmParams) { directConfirms = append(directConfirms, c) })
	dev.stack.DirectJoin(0xFEED, 0x5555)

	sim.StopAt(simtime.Time(2))
	sim.Run()

	if len(directConfirms) != 1 || directConfirms[0].Status != Success {
		t.Fatalf("after StartRouter, DirectJoin confirms = %+v, want one SUCCESS", directConfirms)
	}
}
