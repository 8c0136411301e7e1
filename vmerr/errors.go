// Package vmerr defines the closed taxonomy of errors the VMCS engine
// raises. Every failure is surfaced as one of these kinds; nothing in
// the engine retries an operation or swallows an error.
package vmerr

import "fmt"

// Kind enumerates the closed set of error kinds from spec.md §7.
type Kind int

const (
	// KindRegionAllocationFailed means the VMCS page or exit stack could
	// not be mapped, IA32_VMX_BASIC could not be read, or the memory
	// port could not resolve a physical address for the VMCS page.
	KindRegionAllocationFailed Kind = iota
	// KindVMXInstructionFailed means VMCLEAR, VMPTRLD, or VMLAUNCH
	// reported failure. See Which for which instruction.
	KindVMXInstructionFailed
	// KindVMReadFailed means the intrinsics port reported a VMREAD
	// failure for a specific field.
	KindVMReadFailed
	// KindVMWriteFailed means the intrinsics port reported a VMWRITE
	// failure for a specific field.
	KindVMWriteFailed
	// KindArchCheckFailed means the checker found a field violating
	// an architectural invariant.
	KindArchCheckFailed
	// KindLaunchFailed means VMLAUNCH failed and the checker/diagnostics
	// pipeline ran to completion without finding (or despite finding) the
	// violating field; it carries the VM_INSTRUCTION_ERROR value.
	KindLaunchFailed
	// KindResumeReturned means the resume trampoline returned, which
	// should never happen.
	KindResumeReturned
	// KindPromoteReturned means the promote trampoline returned, which
	// should never happen.
	KindPromoteReturned
)

func (k Kind) String() string {
	switch k {
	case KindRegionAllocationFailed:
		return "RegionAllocationFailed"
	case KindVMXInstructionFailed:
		return "VmxInstructionFailed"
	case KindVMReadFailed:
		return "VmreadFailed"
	case KindVMWriteFailed:
		return "VmwriteFailed"
	case KindArchCheckFailed:
		return "ArchCheckFailed"
	case KindLaunchFailed:
		return "LaunchFailed"
	case KindResumeReturned:
		return "ResumeReturned"
	case KindPromoteReturned:
		return "PromoteReturned"
	default:
		return "UnknownKind"
	}
}

// Which names the VMX instruction a KindVMXInstructionFailed error
// refers to.
type Which int

const (
	WhichClear Which = iota
	WhichLoad
	WhichLaunch
)

func (w Which) String() string {
	switch w {
	case WhichClear:
		return "Clear"
	case WhichLoad:
		return "Load"
	case WhichLaunch:
		return "Launch"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type raised by every package in this
// module. Callers distinguish kinds with errors.As and inspect Kind,
// not by string-matching Error().
type Error struct {
	Kind  Kind
	Which Which  // valid when Kind == KindVMXInstructionFailed
	Field string // valid when Kind == KindVMReadFailed/KindVMWriteFailed
	Check string // valid when Kind == KindArchCheckFailed or KindLaunchFailed (empty if no check failed)
	Code  uint64 // valid when Kind == KindLaunchFailed (VM_INSTRUCTION_ERROR)
	Err   error  // optional wrapped cause
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindVMXInstructionFailed:
		return fmt.Sprintf("vmx instruction failed: %s", e.Which)
	case KindVMReadFailed:
		return fmt.Sprintf("vmread failed: field %s", e.Field)
	case KindVMWriteFailed:
		return fmt.Sprintf("vmwrite failed: field %s", e.Field)
	case KindArchCheckFailed:
		return fmt.Sprintf("architectural check failed: %s", e.Check)
	case KindLaunchFailed:
		if e.Check != "" {
			return fmt.Sprintf("vmlaunch failed: VM_INSTRUCTION_ERROR=%d (check: %s)", e.Code, e.Check)
		}
		return fmt.Sprintf("vmlaunch failed: VM_INSTRUCTION_ERROR=%d", e.Code)
	case KindRegionAllocationFailed:
		if e.Err != nil {
			return fmt.Sprintf("vmcs region allocation failed: %v", e.Err)
		}
		return "vmcs region allocation failed"
	case KindResumeReturned:
		return "resume trampoline returned"
	case KindPromoteReturned:
		return "promote trampoline returned"
	default:
		return "vmcs engine error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// RegionAllocationFailed builds a KindRegionAllocationFailed error.
func RegionAllocationFailed(cause error) error {
	return &Error{Kind: KindRegionAllocationFailed, Err: cause}
}

// VMXInstructionFailed builds a KindVMXInstructionFailed error.
func VMXInstructionFailed(which Which) error {
	return &Error{Kind: KindVMXInstructionFailed, Which: which}
}

// VMReadFailed builds a KindVMReadFailed error.
func VMReadFailed(field fmt.Stringer) error {
	return &Error{Kind: KindVMReadFailed, Field: field.String()}
}

// VMWriteFailed builds a KindVMWriteFailed error.
func VMWriteFailed(field fmt.Stringer) error {
	return &Error{Kind: KindVMWriteFailed, Field: field.String()}
}

// ArchCheckFailed builds a KindArchCheckFailed error.
func ArchCheckFailed(checkName string) error {
	return &Error{Kind: KindArchCheckFailed, Check: checkName}
}

// LaunchFailed builds a KindLaunchFailed error. checkName names the
// first architectural check the checker found violated, and is empty
// when the checker found nothing (the failure may still stem from a
// live hardware condition the checker cannot see).
func LaunchFailed(vmInstructionError uint64, checkName string) error {
	return &Error{Kind: KindLaunchFailed, Code: vmInstructionError, Check: checkName}
}

// ResumeReturned builds a KindResumeReturned error.
func ResumeReturned() error {
	return &Error{Kind: KindResumeReturned}
}

// PromoteReturned builds a KindPromoteReturned error.
func PromoteReturned() error {
	return &Error{Kind: KindPromoteReturned}
}
