// Package control synthesizes the five execution-control bitmasks
// (pin-based, primary processor-based, secondary processor-based,
// VM-exit, VM-entry) from a caller's desired feature set and the
// processor's capability MSRs, via the force-then-mask reconciliation
// spec.md §4.4 describes. It is grounded in no single teacher file —
// core_engine never does capability negotiation, it just sets fixed
// KVM ioctls — so this package follows the teacher's general idiom
// (Debug-gated log.Printf, sync-free value types) while inventing the
// domain logic from spec.md directly.
package control

import (
	"log"

	"example.com/vmcs-architect/internal/msrid"
	"example.com/vmcs-architect/intrinsics"
)

// Class names one of the five control-bitmask classes for logging and
// for selecting which capability MSR (or true/legacy pair) governs it.
type Class int

const (
	ClassPinBased Class = iota
	ClassProcBasedPrimary
	ClassProcBasedSecondary
	ClassVMExit
	ClassVMEntry
)

func (c Class) String() string {
	switch c {
	case ClassPinBased:
		return "pin-based"
	case ClassProcBasedPrimary:
		return "proc-based-primary"
	case ClassProcBasedSecondary:
		return "proc-based-secondary"
	case ClassVMExit:
		return "vm-exit"
	case ClassVMEntry:
		return "vm-entry"
	default:
		return "unknown"
	}
}

// Mask is a synthesized, capability-filtered control bitmask ready to
// be written to its VMCS control field.
type Mask struct {
	Class Class
	Value uint32
}

// Desired is a caller's requested feature bits for one control class,
// before capability filtering. Callers build this from the features
// they want (e.g. "use TSC offsetting", "enable VPID"); Synthesize
// reconciles it against what the processor actually allows.
type Desired struct {
	Class Class
	Bits  uint32
}

// ClassOrder is the fixed index order SynthesizeAll assigns classes
// in, regardless of what a caller's [5]Desired.Class fields say: index
// i always means ClassOrder[i]. This keeps a zero-value [5]Desired
// (every Bits == 0, wanting no optional features) unambiguous instead
// of having every element collapse onto ClassPinBased, which Class's
// zero value would otherwise imply.
var ClassOrder = [5]Class{
	ClassPinBased,
	ClassProcBasedPrimary,
	ClassProcBasedSecondary,
	ClassVMExit,
	ClassVMEntry,
}

// capabilityMSR returns the true-MSR/legacy-MSR pair governing class,
// per spec.md §4.4.1: prefer the TRUE MSR when IA32_VMX_BASIC bit 55
// is set, falling back to the legacy MSR otherwise.
func capabilityMSR(class Class) (trueMSR, legacyMSR uint32) {
	switch class {
	case ClassPinBased:
		return msrid.IA32VMXTruePinbased, msrid.IA32VMXPinbasedCtls
	case ClassProcBasedPrimary:
		return msrid.IA32VMXTrueProcbased, msrid.IA32VMXProcbasedCtls
	case ClassVMExit:
		return msrid.IA32VMXTrueExit, msrid.IA32VMXExitCtls
	case ClassVMEntry:
		return msrid.IA32VMXTrueEntry, msrid.IA32VMXEntryCtls
	case ClassProcBasedSecondary:
		// No TRUE variant exists for secondary processor-based
		// controls; legacy is the only source, and every bit is
		// optional (allowed-0 is always 0).
		return 0, msrid.IA32VMXProcbasedCtls2
	default:
		return 0, 0
	}
}

// usesTrueVariant reports whether bit 55 of IA32_VMX_BASIC is set,
// meaning the TRUE_*_CTLS MSRs exist and should be preferred.
func usesTrueVariant(basic uint64) bool {
	return basic&(1<<55) != 0
}

// Synthesize computes the legal bitmask for one control class: start
// from the capability MSR's allowed-0 bits (forced to 1), OR in the
// caller's desired bits, then mask away anything the MSR's allowed-1
// field forbids. Debug, when true, logs the before/after value the
// way core_engine.NewVirtualMachine logs its setup steps.
func Synthesize(intr intrinsics.Port, desired Desired, debug bool) (Mask, error) {
	basic, err := intr.ReadMSR(msrid.IA32VMXBasic)
	if err != nil {
		return Mask{}, err
	}

	trueMSR, legacyMSR := capabilityMSR(desired.Class)

	msr := legacyMSR
	if trueMSR != 0 && usesTrueVariant(basic) {
		msr = trueMSR
	}

	caps, err := intr.ReadMSR(msr)
	if err != nil {
		return Mask{}, err
	}

	allowed0 := uint32(caps)
	allowed1 := uint32(caps >> 32)

	value := allowed0    // force bits the processor requires set
	value |= desired.Bits // request the caller's feature bits
	value &= allowed1     // mask away anything not permitted

	if debug {
		log.Printf("control: %s allowed0=%#x allowed1=%#x desired=%#x -> %#x",
			desired.Class, allowed0, allowed1, desired.Bits, value)
	}

	return Mask{Class: desired.Class, Value: value}, nil
}

// SynthesizeAll computes all five control masks in one pass, the
// shape the coordinator calls during ControlsWritten transition.
// desired[i].Bits supplies the optional feature bits for ClassOrder[i];
// desired[i].Class is ignored, since the index already fixes the class.
func SynthesizeAll(intr intrinsics.Port, desired [5]Desired, debug bool) ([5]Mask, error) {
	var out [5]Mask
	for i, d := range desired {
		d.Class = ClassOrder[i]
		m, err := Synthesize(intr, d, debug)
		if err != nil {
			return out, err
		}
		out[i] = m
	}
	return out, nil
}
