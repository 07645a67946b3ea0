package simtime

import "testing"

func TestAddSaturates(t *testing.T) {
	got := Max.Add(1)
	if got != Max {
		t.Errorf("Max.Add(1) = %v, want %v", got, Max)
	}
}

func TestAddOrdinary(t *testing.T) {
	a := FromTicks(100)
	b := a.Add(50)
	if b != 150 {
		t.Errorf("got %v, want 150", b)
	}
	if !a.Before(b) {
		t.Error("expected a before b")
	}
	if !b.After(a) {
		t.Error("expected b after a")
	}
}

func TestSub(t *testing.T) {
	a := FromTicks(200)
	b := FromTicks(50)
	if d := a.Sub(b); d != 150 {
		t.Errorf("got %v, want 150", d)
	}
}

func TestZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Error("Zero.IsZero() should be true")
	}
	if FromTicks(1).IsZero() {
		t.Error("FromTicks(1).IsZero() should be false")
	}
}

func TestStringSuffix(t *testing.T) {
	s := FromTicks(1500).String()
	if s != "1500ns" {
		t.Errorf("got %q, want %q", s, "1500ns")
	}
}
