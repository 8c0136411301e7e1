package fieldwriter

import (
	"testing"

	"example.com/vmcs-architect/control"
	"example.com/vmcs-architect/intrinsics"
	"example.com/vmcs-architect/state"
	"example.com/vmcs-architect/vmcsfield"
)

func TestWriteHostCopiesSegmentsAndControlRegisters(t *testing.T) {
	intr := intrinsics.NewFake()
	h := state.NewStaticHostState()

	if err := WriteHost(intr, h); err != nil {
		t.Fatalf("WriteHost: %v", err)
	}

	if got, _ := intr.VMRead(vmcsfield.HostCSSelector); got != uint64(h.CS().Selector) {
		t.Errorf("HostCSSelector = %#x, want %#x", got, h.CS().Selector)
	}
	if got, _ := intr.VMRead(vmcsfield.HostCR0); got != h.CR0() {
		t.Errorf("HostCR0 = %#x, want %#x", got, h.CR0())
	}
	if got, _ := intr.VMRead(vmcsfield.HostIA32Efer); got != h.IA32Efer() {
		t.Errorf("HostIA32Efer = %#x, want %#x", got, h.IA32Efer())
	}
}

func TestWriteGuestCopiesSegmentsAndPaging(t *testing.T) {
	intr := intrinsics.NewFake()
	g := state.NewStaticGuestState()

	if err := WriteGuest(intr, g); err != nil {
		t.Fatalf("WriteGuest: %v", err)
	}

	if got, _ := intr.VMRead(vmcsfield.GuestCR3); got != g.CR3() {
		t.Errorf("GuestCR3 = %#x, want %#x", got, g.CR3())
	}
	if got, _ := intr.VMRead(vmcsfield.GuestRIP); got != g.RIP() {
		t.Errorf("GuestRIP = %#x, want %#x", got, g.RIP())
	}
	if got, _ := intr.VMRead(vmcsfield.VMCSLinkPointer); got != ^uint64(0) {
		t.Errorf("VMCSLinkPointer = %#x, want all-ones", got)
	}
}

func TestWriteFailsWhenIntrinsicReportsFailure(t *testing.T) {
	intr := intrinsics.NewFake()
	intr.FailFields[vmcsfield.HostCR0] = true
	h := state.NewStaticHostState()

	err := WriteHost(intr, h)
	if err == nil {
		t.Fatal("expected VMWriteFailed, got nil")
	}
}

func TestWriteControls32WritesAllFiveClasses(t *testing.T) {
	intr := intrinsics.NewFake()
	masks := [5]control.Mask{
		{Class: control.ClassPinBased, Value: 0x1},
		{Class: control.ClassProcBasedPrimary, Value: 0x2},
		{Class: control.ClassProcBasedSecondary, Value: 0x4},
		{Class: control.ClassVMExit, Value: 0x8},
		{Class: control.ClassVMEntry, Value: 0x10},
	}

	if err := WriteControls32(intr, masks); err != nil {
		t.Fatalf("WriteControls32: %v", err)
	}

	checks := map[vmcsfield.FieldID]uint64{
		vmcsfield.PinBasedVMExecControl:  0x1,
		vmcsfield.CPUBasedVMExecControl:  0x2,
		vmcsfield.SecondaryVMExecControl: 0x4,
		vmcsfield.VMExitControls:         0x8,
		vmcsfield.VMEntryControls:        0x10,
	}
	for field, want := range checks {
		if got, _ := intr.VMRead(field); got != want {
			t.Errorf("field %s = %#x, want %#x", field, got, want)
		}
	}
}
