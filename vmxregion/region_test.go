package vmxregion

import (
	"testing"

	"example.com/vmcs-architect/internal/msrid"
	"example.com/vmcs-architect/intrinsics"
	"example.com/vmcs-architect/memport"
)

func TestNewRegionStampsRevisionID(t *testing.T) {
	intr := intrinsics.NewFake()
	intr.MSRs[msrid.IA32VMXBasic] = 0x1234

	mem := memport.NewFake()
	mem.DefaultPhys = 0x10000

	region, err := NewRegion(intr, mem)
	if err != nil {
		t.Fatalf("NewRegion: %v", err)
	}
	defer region.Release()

	if region.PhysAddr() != 0x10000 {
		t.Errorf("PhysAddr() = %#x, want %#x", region.PhysAddr(), 0x10000)
	}

	got := uint32(region.mem[0]) | uint32(region.mem[1])<<8 | uint32(region.mem[2])<<16 | uint32(region.mem[3])<<24
	want := msrid.BasicRevisionID(0x1234)
	if got != want {
		t.Errorf("stamped revision id = %#x, want %#x", got, want)
	}
}

func TestNewRegionFailsOnUnresolvableAddress(t *testing.T) {
	intr := intrinsics.NewFake()
	intr.MSRs[msrid.IA32VMXBasic] = 0x1234

	mem := memport.NewFake() // DefaultPhys left at 0: every address "unmappable"

	_, err := NewRegion(intr, mem)
	if err == nil {
		t.Fatal("expected RegionAllocationFailed, got nil")
	}
}

func TestRegionClearAndLoadWrapVMXInstructionFailure(t *testing.T) {
	intr := intrinsics.NewFake()
	intr.MSRs[msrid.IA32VMXBasic] = 0x1234
	mem := memport.NewFake()
	mem.DefaultPhys = 0x20000

	region, err := NewRegion(intr, mem)
	if err != nil {
		t.Fatalf("NewRegion: %v", err)
	}
	defer region.Release()

	if err := region.Clear(intr); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := region.Load(intr); err != nil {
		t.Fatalf("Load: %v", err)
	}

	intr.FailVMClear = true
	if err := region.Clear(intr); err == nil {
		t.Fatal("expected Clear to report VMXInstructionFailed")
	}

	intr.FailVMPtrld = true
	if err := region.Load(intr); err == nil {
		t.Fatal("expected Load to report VMXInstructionFailed")
	}
}

func TestRegionReleaseIsIdempotent(t *testing.T) {
	intr := intrinsics.NewFake()
	intr.MSRs[msrid.IA32VMXBasic] = 0x1234
	mem := memport.NewFake()
	mem.DefaultPhys = 0x30000

	region, err := NewRegion(intr, mem)
	if err != nil {
		t.Fatalf("NewRegion: %v", err)
	}
	if err := region.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := region.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestExitStackTopIsAligned(t *testing.T) {
	stack, err := NewExitStack()
	if err != nil {
		t.Fatalf("NewExitStack: %v", err)
	}
	defer stack.Release()

	top := stack.Top()
	if top%16 != 0 {
		t.Errorf("Top() = %#x, not 16-byte aligned", top)
	}
	if top == 0 {
		t.Error("Top() returned 0")
	}
}
