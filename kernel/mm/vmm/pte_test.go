package vmm

import (
	"testing"

	"nucleus/kernel/mm/pmm"
)

func TestPTERoundTrip(t *testing.T) {
	p := NewPTE(pmm.Frame(42), FlagPresent|FlagRW)
	if p.Frame() != pmm.Frame(42) {
		t.Fatalf("frame: got %d, want 42", p.Frame())
	}
	if !p.HasFlags(FlagPresent | FlagRW) {
		t.Fatal("expected present+rw flags")
	}
	if p.HasFlags(FlagExec) {
		t.Fatal("did not expect exec flag")
	}
}

func TestWithFramePreservesFlags(t *testing.T) {
	p := NewPTE(pmm.Frame(1), FlagPresent|FlagExec)
	p2 := p.WithFrame(pmm.Frame(99))
	if p2.Frame() != pmm.Frame(99) {
		t.Fatalf("frame: got %d, want 99", p2.Frame())
	}
	if !p2.HasFlags(FlagPresent | FlagExec) {
		t.Fatal("WithFrame must preserve existing flags")
	}
}

func TestSetClearFlags(t *testing.T) {
	p := NewPTE(pmm.Frame(3), FlagPresent)
	p = p.SetFlags(FlagRW)
	if !p.HasFlags(FlagRW) {
		t.Fatal("expected RW flag after SetFlags")
	}
	p = p.ClearFlags(FlagRW)
	if p.HasFlags(FlagRW) {
		t.Fatal("expected RW flag cleared")
	}
	if p.Frame() != pmm.Frame(3) {
		t.Fatal("flag mutation must not disturb the frame field")
	}
}
