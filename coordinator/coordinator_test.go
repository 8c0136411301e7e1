package coordinator

import (
	"bytes"
	"errors"
	"testing"

	"example.com/vmcs-architect/control"
	"example.com/vmcs-architect/internal/msrid"
	"example.com/vmcs-architect/intrinsics"
	"example.com/vmcs-architect/memport"
	"example.com/vmcs-architect/state"
	"example.com/vmcs-architect/vmerr"
)

func newTestPorts() (*intrinsics.Fake, *memport.Fake) {
	intr := intrinsics.NewFake()
	intr.MSRs[msrid.IA32VMXBasic] = 0x1234
	mem := memport.NewFake()
	mem.DefaultPhys = 0x40000
	return intr, mem
}

func testSnapshot() state.Snapshot {
	return state.Snapshot{
		Host:  state.NewStaticHostState(),
		Guest: state.NewStaticGuestState(),
	}
}

func TestLaunchHappyPathReachesLaunched(t *testing.T) {
	intr, mem := newTestPorts()
	c := New(intr, mem, false)

	err := c.Launch(testSnapshot(), Desired{}, 0xdeadbeef)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if c.Phase() != Launched {
		t.Errorf("Phase() = %s, want %s", c.Phase(), Launched)
	}
	c.Cleanup()
}

func TestLaunchRollsBackOnClearFailure(t *testing.T) {
	intr, mem := newTestPorts()
	intr.FailVMClear = true
	c := New(intr, mem, false)

	err := c.Launch(testSnapshot(), Desired{}, 0xdeadbeef)
	if err == nil {
		t.Fatal("expected Launch to fail")
	}
	if c.Phase() != Failed {
		t.Errorf("Phase() = %s, want %s", c.Phase(), Failed)
	}
	// Rollback must have run: a second Cleanup call should be harmless.
	c.Cleanup()
}

func TestLaunchRollsBackOnRegionAllocationFailure(t *testing.T) {
	intr, _ := newTestPorts()
	mem := memport.NewFake() // DefaultPhys left 0: unmappable
	c := New(intr, mem, false)

	err := c.Launch(testSnapshot(), Desired{}, 0xdeadbeef)
	if err == nil {
		t.Fatal("expected Launch to fail")
	}
	if c.Phase() != Failed {
		t.Errorf("Phase() = %s, want %s", c.Phase(), Failed)
	}
}

func TestLaunchFailureRunsDiagnostics(t *testing.T) {
	intr, mem := newTestPorts()
	intr.FailVMLaunch = true

	var buf bytes.Buffer
	c := New(intr, mem, false)
	c.Diagnostics = &buf

	err := c.Launch(testSnapshot(), Desired{}, 0xdeadbeef)
	if err == nil {
		t.Fatal("expected Launch to fail")
	}
	if c.Phase() != Failed {
		t.Errorf("Phase() = %s, want %s", c.Phase(), Failed)
	}
	if buf.Len() == 0 {
		t.Error("expected diagnostics to be written on VMLAUNCH failure")
	}
	// On a failed VMLAUNCH the VMCS is left intact for inspection.
	c.Cleanup()
}

func TestLaunchFailureLocalizesCheckEvenWithoutDiagnostics(t *testing.T) {
	intr, mem := newTestPorts()
	intr.FailVMLaunch = true
	// allowed0 = 0, allowed1 = PinVirtualNMIs only: NMI-exiting can
	// never be forced on alongside it, so the synthesized pin-based
	// mask is bound to violate "virtual NMIs implies NMI exiting".
	intr.MSRs[msrid.IA32VMXPinbasedCtls] = uint64(control.PinVirtualNMIs) << 32

	c := New(intr, mem, false)
	// c.Diagnostics left nil: the checker must still localize the
	// failure, only the human-readable dump is allowed to depend on it.

	desired := Desired{{Bits: control.PinVirtualNMIs}}
	err := c.Launch(testSnapshot(), desired, 0xdeadbeef)
	if err == nil {
		t.Fatal("expected Launch to fail")
	}

	var ve *vmerr.Error
	if !errors.As(err, &ve) {
		t.Fatal("expected errors.As to match *vmerr.Error")
	}
	if ve.Check == "" {
		t.Error("expected the checker to localize a violated check even with Diagnostics nil")
	}
}

func TestLaunchCannotBeCalledTwice(t *testing.T) {
	intr, mem := newTestPorts()
	c := New(intr, mem, false)

	if err := c.Launch(testSnapshot(), Desired{}, 0xdeadbeef); err != nil {
		t.Fatalf("first Launch: %v", err)
	}
	if err := c.Launch(testSnapshot(), Desired{}, 0xdeadbeef); err == nil {
		t.Fatal("expected second Launch to be rejected")
	}
	c.Cleanup()
}

func TestSynthesizeAllSucceedsOnFakePorts(t *testing.T) {
	intr, _ := newTestPorts()
	_, err := control.SynthesizeAll(intr, Desired{}, false)
	if err != nil {
		t.Fatalf("SynthesizeAll: %v", err)
	}
}
