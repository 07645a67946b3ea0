package simcore

import (
	"testing"

	"github.com/nugget/zigbeesim/internal/simtime"
)

func TestOrderingAtZeroDelayWithCancel(t *testing.T) {
	sim := New(nil)
	var order []string

	sim.Schedule(0, func() { order = append(order, "A") })
	idB := sim.Schedule(0, func() { order = append(order, "B") })
	sim.Schedule(0, func() { order = append(order, "C") })

	sim.Cancel(idB)
	if !sim.IsExpired(idB) {
		t.Error("cancelled event should report expired")
	}

	sim.Run()

	want := []string{"A", "C"}
	if len(order) != len(want) {
		t.Fatalf("got order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got order %v, want %v", order, want)
		}
	}
	if got := sim.GetEventCount(); got != 2 {
		t.Errorf("event count = %d, want 2", got)
	}
}

func TestFIFOAmongEqualTimes(t *testing.T) {
	sim := New(nil)
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		sim.Schedule(5, func() { order = append(order, i) })
	}
	sim.Run()
	for i := 0; i < 10; i++ {
		if order[i] != i {
			t.Fatalf("order[%d] = %d, want %d", i, order[i], i)
		}
	}
}

func TestEarlierExpirationRunsFirst(t *testing.T) {
	sim := New(nil)
	var order []string
	sim.Schedule(10, func() { order = append(order, "late") })
	sim.Schedule(1, func() { order = append(order, "early") })
	sim.Run()
	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Fatalf("got %v", order)
	}
}

func TestCancelIsExpired(t *testing.T) {
	sim := New(nil)
	id := sim.Schedule(5, func() {})
	sim.Cancel(id)
	if !sim.IsExpired(id) {
		t.Error("IsExpired should be true after Cancel")
	}
	// idempotent
	sim.Cancel(id)
}

func TestRemoveReducesQueue(t *testing.T) {
	sim := New(nil)
	id := sim.Schedule(5, func() { t.Fatal("removed event should not run") })
	sim.Schedule(5, func() {})
	sim.Remove(id)
	if sim.queue.Len() != 1 {
		t.Fatalf("queue len = %d, want 1", sim.queue.Len())
	}
	if !sim.IsExpired(id) {
		t.Error("removed event should report expired")
	}
	sim.Run()
}

func TestNowMonotonic(t *testing.T) {
	sim := New(nil)
	var times []simtime.Time
	sim.Schedule(5, func() { times = append(times, sim.Now()) })
	sim.Schedule(1, func() { times = append(times, sim.Now()) })
	sim.Schedule(3, func() { times = append(times, sim.Now()) })
	sim.Run()
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			t.Fatalf("Now went backwards: %v", times)
		}
	}
}

func TestScheduleNegativeDelayPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on negative delay")
		}
	}()
	sim := New(nil)
	sim.Schedule(-1, func() {})
}

func TestDestroyRunsFIFO(t *testing.T) {
	sim := New(nil)
	var order []int
	sim.ScheduleDestroy(func() { order = append(order, 1) })
	sim.ScheduleDestroy(func() { order = append(order, 2) })
	sim.Run() // nothing scheduled on the live queue
	sim.Destroy()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("destroy order = %v", order)
	}
}

func TestCancelDestroyEventPanics(t *testing.T) {
	sim := New(nil)
	id := sim.ScheduleDestroy(func() {})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic cancelling a destroy event")
		}
	}()
	sim.Cancel(id)
}

func TestRemoveDestroyEventPanics(t *testing.T) {
	sim := New(nil)
	id := sim.ScheduleDestroy(func() {})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic removing a destroy event")
		}
	}()
	sim.Remove(id)
}

func TestStopMakesCurrentEventLast(t *testing.T) {
	sim := New(nil)
	var order []string
	sim.Schedule(0, func() {
		order = append(order, "A")
		sim.Stop()
	})
	sim.Schedule(0, func() { order = append(order, "B") })
	sim.Run()
	if len(order) != 1 || order[0] != "A" {
		t.Fatalf("got %v, want [A]", order)
	}
}

func TestStopAtDeadline(t *testing.T) {
	sim := New(nil)
	var order []string
	sim.Schedule(5, func() { order = append(order, "before") })
	sim.Schedule(15, func() { order = append(order, "after") })
	sim.StopAt(10)
	sim.Run()
	if len(order) != 1 || order[0] != "before" {
		t.Fatalf("got %v, want [before]", order)
	}
}

func TestScheduleWithContextInheritance(t *testing.T) {
	sim := New(nil)
	var gotCtx uint32
	sim.ScheduleWithContext(7, 0, func() {
		sim.Schedule(0, func() {
			gotCtx = sim.GetContext()
		})
	})
	sim.Run()
	if gotCtx != 7 {
		t.Errorf("context = %d, want 7", gotCtx)
	}
}

func TestContextDefaultsToNoContext(t *testing.T) {
	sim := New(nil)
	if sim.GetContext() != NoContext {
		t.Errorf("default context = %d, want NoContext", sim.GetContext())
	}
}
