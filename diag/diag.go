// Package diag writes human-readable diagnostics for a failed
// VMLAUNCH to a caller-supplied io.Writer. It generalizes the
// teacher's SerialPortDevice (core_engine/devices/serial.go), which
// wraps an io.Writer to emit guest console output; here the writer
// receives engine diagnostics instead of guest I/O, but the pattern
// — an interface-typed sink the core never branches on — is the same.
package diag

import (
	"fmt"
	"io"

	"example.com/vmcs-architect/checker"
	"example.com/vmcs-architect/control"
	"example.com/vmcs-architect/intrinsics"
)

// DumpControls writes the five synthesized control masks, one line
// each, in control.Class order.
func DumpControls(w io.Writer, masks [5]control.Mask) {
	for _, m := range masks {
		fmt.Fprintf(w, "control %-24s = %#010x\n", m.Class, m.Value)
	}
}

// DumpInstructionError writes code, the VM_INSTRUCTION_ERROR value the
// caller already read, along with its architectural meaning where known
// (SDM vol. 3, table 31-1); intr is not used. Unknown codes are printed
// with the label "unrecognized or reserved code" rather than guessed at.
func DumpInstructionError(w io.Writer, intr intrinsics.Port, code uint64) {
	fmt.Fprintf(w, "VM_INSTRUCTION_ERROR = %d (%s)\n", code, instructionErrorName(code))
}

func instructionErrorName(code uint64) string {
	switch code {
	case 1:
		return "VMCALL in VMX root operation"
	case 2:
		return "VMCLEAR with invalid physical address"
	case 3:
		return "VMCLEAR with VMXON pointer"
	case 4:
		return "VMLAUNCH with non-clear VMCS"
	case 5:
		return "VMRESUME with non-launched VMCS"
	case 7:
		return "VM entry with invalid control field(s)"
	case 8:
		return "VM entry with invalid host-state field(s)"
	case 9:
		return "VMPTRLD with invalid physical address"
	case 10:
		return "VMPTRLD with VMXON pointer"
	case 11:
		return "VMPTRLD with incorrect VMCS revision identifier"
	case 12:
		return "VMREAD/VMWRITE from/to unsupported VMCS component"
	case 13:
		return "VMWRITE to read-only VMCS component"
	case 20:
		return "VMCALL with invalid VM-exit control fields"
	case 26:
		return "VM entry with events blocked by MOV SS"
	case 28:
		return "invalid operand to INVEPT/INVVPID"
	default:
		return "unrecognized or reserved code"
	}
}

// DumpFailure writes a complete diagnostic report: the instruction
// error, the control masks that were in effect, and the first
// architectural check violation found, if any. This is the function
// the coordinator calls on a failed VMLAUNCH. result is the checker
// run the coordinator already performed; DumpFailure only renders it,
// so the check localizing the failure runs exactly once regardless of
// whether a caller wants the human-readable report.
func DumpFailure(w io.Writer, intr intrinsics.Port, code uint64, masks [5]control.Mask, result checker.Result) {
	fmt.Fprintln(w, "=== VMLAUNCH failure ===")
	DumpInstructionError(w, intr, code)
	DumpControls(w, masks)

	if result.OK() {
		fmt.Fprintln(w, "checker: no architectural violation found")
		return
	}
	fmt.Fprintf(w, "checker: %s: %s\n", result.Name, result.Reason)
}
