// Package intrinsics defines the hardware capability surface the VMCS
// engine calls into. It is the only place that talks to the actual
// VMX instructions (VMREAD, VMWRITE, VMPTRLD, VMCLEAR, VMLAUNCH) and
// to RDMSR/CPUID; everything above this package works purely in terms
// of the Port interface so it can be driven by a fake in tests.
package intrinsics

import "example.com/vmcs-architect/vmcsfield"

// Port is the capability surface spec.md §6 calls the "intrinsics
// port". Every method is a thin, synchronous wrapper: it either
// completes or reports failure, matching the single-threaded, no-retry
// execution model of VMX root (spec.md §5).
type Port interface {
	// ReadMSR returns the value of the given MSR.
	ReadMSR(msr uint32) (uint64, error)
	// CPUIDEax returns EAX from CPUID for the given leaf.
	CPUIDEax(leaf uint32) (uint32, error)
	// VMRead returns the current value of a VMCS field. ok is false
	// when the intrinsic reports failure.
	VMRead(field vmcsfield.FieldID) (value uint64, ok bool)
	// VMWrite stores value into a VMCS field. ok is false when the
	// intrinsic reports failure.
	VMWrite(field vmcsfield.FieldID, value uint64) (ok bool)
	// VMPtrld loads the VMCS at the given physical address as current.
	VMPtrld(phys uint64) (ok bool)
	// VMClear clears the VMCS at the given physical address.
	VMClear(phys uint64) (ok bool)
	// VMLaunch launches the guest from the current VMCS.
	VMLaunch() (ok bool)
}
