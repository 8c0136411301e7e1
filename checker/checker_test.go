package checker

import (
	"testing"

	"example.com/vmcs-architect/control"
	"example.com/vmcs-architect/internal/msrid"
	"example.com/vmcs-architect/intrinsics"
	"example.com/vmcs-architect/state"
	"example.com/vmcs-architect/vmcsfield"
)

func TestRunPassesOnWellFormedState(t *testing.T) {
	in := Input{
		Masks: [5]control.Mask{
			{Class: control.ClassPinBased, Value: 0},
			{Class: control.ClassProcBasedPrimary, Value: 0},
			{Class: control.ClassProcBasedSecondary, Value: 0},
			{Class: control.ClassVMExit, Value: control.ExitHostAddressSpaceSize}, // host is IA-32e
			{Class: control.ClassVMEntry, Value: 0},
		},
		Snapshot: state.Snapshot{
			Host:  state.NewStaticHostState(),
			Guest: state.NewStaticGuestState(),
		},
	}

	if result := Run(in); !result.OK() {
		t.Fatalf("expected no violation, got %s: %s", result.Name, result.Reason)
	}
}

func TestRunCatchesVirtualNMIsWithoutNMIExiting(t *testing.T) {
	in := Input{
		Masks: [5]control.Mask{
			{Class: control.ClassPinBased, Value: control.PinVirtualNMIs}, // no NMIExiting
		},
		Snapshot: state.Snapshot{
			Host:  state.NewStaticHostState(),
			Guest: state.NewStaticGuestState(),
		},
	}

	result := Run(in)
	if result.OK() {
		t.Fatal("expected a violation, got none")
	}
	if result.Name != "pin-based NMI exiting implies not virtual NMIs without NMI exiting" {
		t.Errorf("unexpected check name: %s", result.Name)
	}
}

func TestRunCatchesSecondaryControlsWithoutActivation(t *testing.T) {
	in := Input{
		Masks: [5]control.Mask{
			{Class: control.ClassProcBasedPrimary, Value: 0}, // activate-secondary NOT set
			{Class: control.ClassProcBasedSecondary, Value: control.Proc2EnableEPT},
		},
		Snapshot: state.Snapshot{
			Host:  state.NewStaticHostState(),
			Guest: state.NewStaticGuestState(),
		},
	}

	result := Run(in)
	if result.OK() {
		t.Fatal("expected a violation, got none")
	}
}

func TestRunStopsAtEarliestFailingCheck(t *testing.T) {
	// Trigger both the pin-based/NMI violation (first registered) and
	// the secondary-controls violation (later); only the first should
	// be reported.
	in := Input{
		Masks: [5]control.Mask{
			{Class: control.ClassPinBased, Value: control.PinVirtualNMIs},
			{Class: control.ClassProcBasedPrimary, Value: 0},
			{Class: control.ClassProcBasedSecondary, Value: control.Proc2EnableEPT},
		},
		Snapshot: state.Snapshot{
			Host:  state.NewStaticHostState(),
			Guest: state.NewStaticGuestState(),
		},
	}

	result := Run(in)
	if result.OK() {
		t.Fatal("expected a violation, got none")
	}
	if result.Name != "pin-based NMI exiting implies not virtual NMIs without NMI exiting" {
		t.Errorf("expected the earliest-registered check to win, got %q", result.Name)
	}
}

func TestRunToleratesNilSnapshot(t *testing.T) {
	result := Run(Input{})
	if !result.OK() {
		t.Fatalf("expected no violation with nil state, got %s", result.Name)
	}
}

// TestRunCatchesHostCR0FixedViolation exercises spec.md §8 scenario 4:
// the checker finds host_cr0 contains a bit cleared in
// IA32_VMX_CR0_FIXED0.
func TestRunCatchesHostCR0FixedViolation(t *testing.T) {
	intr := intrinsics.NewFake()
	host := state.NewStaticHostState()
	intr.MSRs[msrid.IA32VMXCR0Fixed0] = host.CR0() | 1<<2 // require a bit host CR0 doesn't set
	intr.MSRs[msrid.IA32VMXCR0Fixed1] = ^uint64(0)

	in := Input{
		Intr:  intr,
		Masks: [5]control.Mask{{Class: control.ClassVMExit, Value: control.ExitHostAddressSpaceSize}},
		Snapshot: state.Snapshot{
			Host:  host,
			Guest: state.NewStaticGuestState(),
		},
	}

	result := Run(in)
	if result.OK() {
		t.Fatal("expected a violation, got none")
	}
	if result.Name != "host CR0 must satisfy IA32_VMX_CR0_FIXED0/FIXED1" {
		t.Errorf("unexpected check name: %s", result.Name)
	}
}

func TestRunPassesFixedChecksWhenHostCR0WithinBounds(t *testing.T) {
	intr := intrinsics.NewFake()
	host := state.NewStaticHostState()
	intr.MSRs[msrid.IA32VMXCR0Fixed0] = 0
	intr.MSRs[msrid.IA32VMXCR0Fixed1] = ^uint64(0)
	intr.MSRs[msrid.IA32VMXCR4Fixed0] = 0
	intr.MSRs[msrid.IA32VMXCR4Fixed1] = ^uint64(0)

	in := Input{
		Intr:  intr,
		Masks: [5]control.Mask{{Class: control.ClassVMExit, Value: control.ExitHostAddressSpaceSize}},
		Snapshot: state.Snapshot{
			Host:  host,
			Guest: state.NewStaticGuestState(),
		},
	}

	if result := Run(in); !result.OK() {
		t.Fatalf("expected no violation, got %s: %s", result.Name, result.Reason)
	}
}

func TestRunCatchesCR3TargetCountOverflow(t *testing.T) {
	intr := intrinsics.NewFake()
	intr.Fields[vmcsfield.CR3TargetCount] = 5

	in := Input{
		Intr:  intr,
		Masks: [5]control.Mask{{Class: control.ClassVMExit, Value: control.ExitHostAddressSpaceSize}},
		Snapshot: state.Snapshot{
			Host:  state.NewStaticHostState(),
			Guest: state.NewStaticGuestState(),
		},
	}

	result := Run(in)
	if result.OK() {
		t.Fatal("expected a violation, got none")
	}
	if result.Name != "CR3-target count must not exceed 4" {
		t.Errorf("unexpected check name: %s", result.Name)
	}
}

func TestRunCatchesEventInjectionReservedType(t *testing.T) {
	intr := intrinsics.NewFake()
	intr.Fields[vmcsfield.VMEntryIntrInfoField] = 1<<31 | 1<<8 // valid, type 1 (reserved)

	in := Input{
		Intr:  intr,
		Masks: [5]control.Mask{{Class: control.ClassVMExit, Value: control.ExitHostAddressSpaceSize}},
		Snapshot: state.Snapshot{
			Host:  state.NewStaticHostState(),
			Guest: state.NewStaticGuestState(),
		},
	}

	result := Run(in)
	if result.OK() {
		t.Fatal("expected a violation, got none")
	}
	if result.Name != "VM-entry event-injection type and vector must be valid when injection is pending" {
		t.Errorf("unexpected check name: %s", result.Name)
	}
}
