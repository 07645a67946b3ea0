package aps

import (
	"testing"

	"github.com/nugget/zigbeesim/internal/simcore"
	"github.com/nugget/zigbeesim/internal/simtime"
	"github.com/nugget/zigbeesim/internal/trace"
	"github.com/nugget/zigbeesim/internal/zigbee/binding"
	"github.com/nugget/zigbeesim/internal/zigbee/mac"
	"github.com/nugget/zigbeesim/internal/zigbee/nwk"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
)

func TestAddGroup_SuccessThenDuplicateSuccess(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := nwk.NewRegistry()
	tracer := trace.New()

	zr := newTestNode(sim, medium, tracer, registry, "ZR", 0x1111, nwkaddr.Router)

	var confirms []GroupConfirmParams
	zr.aps.SetGroupConfirmCallback(func(c GroupConfirmParams) { confirms = append(confirms, c) })

	zr.aps.AddGroup(0x0001, 3)
	zr.aps.AddGroup(0x0001, 3)

	sim.StopAt(simtime.Time(1))
	sim.Run()

	if len(confirms) != 2 {
		t.Fatalf("got %d confirms, want 2", len(confirms))
	}
	if confirms[0].Status != Success {
		t.Errorf("first AddGroup status = %v, want SUCCESS", confirms[0].Status)
	}
	if confirms[1].Status != Success {
		t.Errorf("duplicate AddGroup status = %v, want SUCCESS", confirms[1].Status)
	}
}

func TestRemoveGroup_UnknownMembershipIsInvalidGroup(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := nwk.NewRegistry()
	tracer := trace.New()

	zr := newTestNode(sim, medium, tracer, registry, "ZR", 0x1111, nwkaddr.Router)

	var confirms []GroupConfirmParams
	zr.aps.SetGroupConfirmCallback(func(c GroupConfirmParams) { confirms = append(confirms, c) })

	zr.aps.AddGroup(0x0002, 4)
	zr.aps.RemoveGroup(0x0002, 4)
	zr.aps.RemoveGroup(0x0002, 4)

	sim.StopAt(simtime.Time(1))
	sim.Run()

	if len(confirms) != 3 {
		t.Fatalf("got %d confirms, want 3", len(confirms))
	}
	if confirms[1].Status != Success {
		t.Errorf("first RemoveGroup status = %v, want SUCCESS", confirms[1].Status)
	}
	if confirms[2].Status != InvalidGroup {
		t.Errorf("second RemoveGroup status = %v, want INVALID_GROUP", confirms[2].Status)
	}
}

func TestRemoveAllGroups_ZeroEndpointIsInvalidParameter(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := nwk.NewRegistry()
	tracer := trace.New()

	zr := newTestNode(sim, medium, tracer, registry, "ZR", 0x1111, nwkaddr.Router)

	var confirms []GroupConfirmParams
	zr.aps.SetGroupConfirmCallback(func(c GroupConfirmParams) { confirms = append(confirms, c) })

	zr.aps.AddGroup(0x0003, 5)
	zr.aps.RemoveAllGroups(0)
	zr.aps.RemoveAllGroups(5)

	sim.StopAt(simtime.Time(1))
	sim.Run()

	if len(confirms) != 3 {
		t.Fatalf("got %d confirms, want 3", len(confirms))
	}
	if confirms[1].Status != InvalidParameter {
		t.Errorf("RemoveAllGroups(0) status = %v, want INVALID_PARAMETER", confirms[1].Status)
	}
	if confirms[2].Status != Success {
		t.Errorf("RemoveAllGroups(5) status = %v, want SUCCESS", confirms[2].Status)
	}
}

func TestBind_SuccessThenDuplicateIsInvalidBinding(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := nwk.NewRegistry()
	tracer := trace.New()

	zc := newTestNode(sim, medium, tracer, registry, "ZC", 0x0000, nwkaddr.Coordinator)

	src := binding.Source{ExtAddr: 0x1111, Endpoint: 1, ClusterID: 6}
	dst := binding.Destination{Mode: binding.IEEEEndpoint, ExtAddr: 0x2222, Endpoint: 4}

	var confirms []BindConfirmParams
	zc.aps.SetBindConfirmCallback(func(c BindConfirmParams) { confirms = append(confirms, c) })

	zc.aps.Bind(src, dst)
	zc.aps.Bind(src, dst)

	sim.StopAt(simtime.Time(1))
	sim.Run()

	if len(confirms) != 2 {
		t.Fatalf("got %d confirms, want 2", len(confirms))
	}
	if confirms[0].Status != Success {
		t.Errorf("first Bind status = %v, want SUCCESS", confirms[0].Status)
	}
	if confirms[1].Status != InvalidBinding {
		t.Errorf("duplicate Bind status = %v, want INVALID_BINDING", confirms[1].Status)
	}
}

func TestBind_InvalidDstEndpointIsIllegalRequest(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := nwk.NewRegistry()
	tracer := trace.New()

	zc := newTestNode(sim, medium, tracer, registry, "ZC", 0x0000, nwkaddr.Coordinator)

	src := binding.Source{ExtAddr: 0x1111, Endpoint: 1, ClusterID: 6}
	dst := binding.Destination{Mode: binding.IEEEEndpoint, ExtAddr: 0x2222, Endpoint: 0}

	var confirms []BindConfirmParams
	zc.aps.SetBindConfirmCallback(func(c BindConfirmParams) { confirms = append(confirms, c) })

	zc.aps.Bind(src, dst)

	sim.StopAt(simtime.Time(1))
	sim.Run()

	if len(confirms) != 1 || confirms[0].Status != IllegalRequest {
		t.Fatalf("confirms = %+v, want one ILLEGAL_REQUEST", confirms)
	}
}

func TestUnbind_RoundTripThenMissingEntry(t *testing.T) {
	sim := simcore.New(nil)
	medium := mac.NewMedium(sim)
	registry := nwk.NewRegistry()
	tracer := trace.New()

	zc := newTestNode(sim, medium, tracer, registry, "ZC", 0x0000, nwkaddr.Coordinator)

	src := binding.Source{ExtAddr: 0x1111, Endpoint: 1, ClusterID: 6}
	dst := binding.Destination{Mode: binding.Group, GroupID: 0x00AA}

	var confirms []BindConfirmParams
	zc.aps.SetBindConfirmCallback(func(c BindConfirmParams) { confirms = append(confirms, c) })

	zc.aps.Bind(src, dst)
	zc.aps.Unbind(src, dst)
	zc.aps.Unbind(src, dst)

	sim.StopAt(simtime.Time(1))
	sim.Run()

	if len(confirms) != 3 {
		t.Fatalf("got %d confirms, want 3", len(confirms))
	}
	if confirms[1].Status != Success {
		t.Errorf("first Unbind status = %v, want SUCCESS", confirms[1].Status)
	}
	if confirms[2].Status != InvalidBinding {
		t.Errorf("second Unbind status = %v, want INVALID_BINDING", confirms[2].Status)
	}
}
