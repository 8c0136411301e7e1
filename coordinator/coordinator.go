// Package coordinator drives a single VMCS through its lifecycle:
// allocate, clear, load, populate, launch (or resume/promote an
// already-launched guest), and roll back cleanly on any failure short
// of VMLAUNCH. Its shape generalizes core_engine.NewVirtualMachine's
// allocate-then-cleanup-on-error sequence (core_engine/virtual_machine.go)
// from "one guest-memory mmap" to the full VMCS lifecycle, and its
// Debug-gated logging follows the same VirtualMachine.Debug field.
package coordinator

import (
	"fmt"
	"io"
	"log"

	"example.com/vmcs-architect/checker"
	"example.com/vmcs-architect/control"
	"example.com/vmcs-architect/diag"
	"example.com/vmcs-architect/fieldwriter"
	"example.com/vmcs-architect/intrinsics"
	"example.com/vmcs-architect/memport"
	"example.com/vmcs-architect/state"
	"example.com/vmcs-architect/vmcsfield"
	"example.com/vmcs-architect/vmerr"
	"example.com/vmcs-architect/vmxregion"
)

// Phase names a point in the VMCS lifecycle, in the order a
// successful Launch moves through them.
type Phase int

const (
	Idle Phase = iota
	RegionCreated
	StackCreated
	Cleared
	Loaded
	StateWritten
	ControlsWritten
	Launched
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case RegionCreated:
		return "RegionCreated"
	case StackCreated:
		return "StackCreated"
	case Cleared:
		return "Cleared"
	case Loaded:
		return "Loaded"
	case StateWritten:
		return "StateWritten"
	case ControlsWritten:
		return "ControlsWritten"
	case Launched:
		return "Launched"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Coordinator owns one VMCS's region, exit stack, and lifecycle phase.
type Coordinator struct {
	Intrinsics intrinsics.Port
	Memory     memport.Port
	Debug      bool

	// Diagnostics, when non-nil, receives a full failure report on a
	// failed VMLAUNCH (diag.DumpFailure, then the host and guest state
	// Dump output). Optional: a caller not
	// interested in diagnostics can leave this nil.
	Diagnostics io.Writer

	phase Phase

	vmcs  *vmxregion.Region
	stack *vmxregion.ExitStack

	// rollback holds cleanup steps in the order their resources were
	// acquired; Launch runs them LIFO on any failure before VMLAUNCH,
	// mirroring core_engine.VirtualMachine.Close's ordered teardown.
	rollback []func()
}

// New builds a Coordinator around the given intrinsics and memory
// ports. Both are required collaborators per spec.md §1; this package
// never constructs them itself.
func New(intr intrinsics.Port, mem memport.Port, debug bool) *Coordinator {
	return &Coordinator{Intrinsics: intr, Memory: mem, Debug: debug, phase: Idle}
}

// Phase reports the coordinator's current lifecycle state.
func (c *Coordinator) Phase() Phase { return c.phase }

func (c *Coordinator) logf(format string, args ...any) {
	if c.Debug {
		log.Printf("coordinator: "+format, args...)
	}
}

func (c *Coordinator) pushRollback(fn func()) {
	c.rollback = append(c.rollback, fn)
}

func (c *Coordinator) runRollback() {
	for i := len(c.rollback) - 1; i >= 0; i-- {
		c.rollback[i]()
	}
	c.rollback = nil
}

// Desired bundles the five control-class requests a caller wants
// considered during capability reconciliation.
type Desired = [5]control.Desired

// Launch runs a VMCS from Idle through VMLAUNCH: allocate the region
// and exit stack, VMCLEAR, VMPTRLD, write host/guest state, set the
// host RIP/RSP to point at the exit handler and its stack, synthesize
// and write the control masks, then VMLAUNCH. Any failure before VMLAUNCH rolls
// back every resource acquired so far, in reverse order. A VMLAUNCH
// failure runs the checker and diagnostics pipeline before returning
// vmerr.LaunchFailed, and leaves the coordinator in Failed with its
// resources intact so a caller can inspect VMCS state before cleanup.
func (c *Coordinator) Launch(snapshot state.Snapshot, desired Desired, exitHandler uintptr) error {
	if c.phase != Idle {
		return fmt.Errorf("coordinator: Launch called in phase %s, want %s", c.phase, Idle)
	}

	region, err := vmxregion.NewRegion(c.Intrinsics, c.Memory)
	if err != nil {
		c.phase = Failed
		return err
	}
	c.vmcs = region
	c.pushRollback(func() { c.vmcs.Release() })
	c.phase = RegionCreated
	c.logf("region created, phys=%#x", region.PhysAddr())

	stack, err := vmxregion.NewExitStack()
	if err != nil {
		c.runRollback()
		c.phase = Failed
		return err
	}
	c.stack = stack
	c.pushRollback(func() { c.stack.Release() })
	c.phase = StackCreated
	c.logf("exit stack created, top=%#x", stack.Top())

	if err := c.vmcs.Clear(c.Intrinsics); err != nil {
		c.runRollback()
		c.phase = Failed
		return err
	}
	c.phase = Cleared
	c.logf("vmclear ok")

	if err := c.vmcs.Load(c.Intrinsics); err != nil {
		c.runRollback()
		c.phase = Failed
		return err
	}
	c.phase = Loaded
	c.logf("vmptrld ok")

	if err := fieldwriter.WriteHost(c.Intrinsics, snapshot.Host); err != nil {
		c.runRollback()
		c.phase = Failed
		return err
	}
	if err := fieldwriter.WriteGuest(c.Intrinsics, snapshot.Guest); err != nil {
		c.runRollback()
		c.phase = Failed
		return err
	}
	if err := c.writeHostEntryPoint(exitHandler); err != nil {
		c.runRollback()
		c.phase = Failed
		return err
	}
	c.phase = StateWritten
	c.logf("guest/host state written")

	masks, err := control.SynthesizeAll(c.Intrinsics, desired, c.Debug)
	if err != nil {
		c.runRollback()
		c.phase = Failed
		return err
	}
	if err := fieldwriter.WriteControls32(c.Intrinsics, masks); err != nil {
		c.runRollback()
		c.phase = Failed
		return err
	}
	c.phase = ControlsWritten
	c.logf("control masks written")

	if ok := c.Intrinsics.VMLaunch(); !ok {
		return c.handleLaunchFailure(masks, snapshot)
	}

	c.phase = Launched
	c.logf("vmlaunch ok")
	return nil
}

// writeHostEntryPoint points VMCS_HOST_RIP at the exit handler and
// VMCS_HOST_RSP at the top of the freshly allocated exit stack. These
// two fields come from the coordinator's own resources, not from the
// caller-supplied HostState, because no CPU-state snapshot can know
// the address of a stack this package just allocated.
func (c *Coordinator) writeHostEntryPoint(exitHandler uintptr) error {
	if ok := c.Intrinsics.VMWrite(vmcsfield.HostRIP, uint64(exitHandler)); !ok {
		return vmerr.VMWriteFailed(vmcsfield.HostRIP)
	}
	if ok := c.Intrinsics.VMWrite(vmcsfield.HostRSP, uint64(c.stack.Top())); !ok {
		return vmerr.VMWriteFailed(vmcsfield.HostRSP)
	}
	return nil
}

// handleLaunchFailure runs on a failed VMLAUNCH: it does NOT roll
// back the VMCS (a caller needs it intact to inspect), runs the
// checker against the state that was written, and dumps diagnostics,
// then returns vmerr.LaunchFailed carrying VM_INSTRUCTION_ERROR and
// the name of the first violated check, if the checker found one.
// The checker runs unconditionally: per spec.md §4.6/§4.7 it is the
// mechanism that localizes the failure, not an optional extra gated
// on whether a caller also wants the human-readable dump.
func (c *Coordinator) handleLaunchFailure(masks [5]control.Mask, snapshot state.Snapshot) error {
	c.phase = Failed

	code, _ := c.Intrinsics.VMRead(vmcsfield.VMInstructionError)

	result := checker.Run(checker.Input{Intr: c.Intrinsics, Masks: masks, Snapshot: snapshot})

	if c.Diagnostics != nil {
		diag.DumpFailure(c.Diagnostics, c.Intrinsics, code, masks, result)
		if snapshot.Host != nil {
			snapshot.Host.Dump(c.Diagnostics)
		}
		if snapshot.Guest != nil {
			snapshot.Guest.Dump(c.Diagnostics)
		}
	}

	return vmerr.LaunchFailed(code, result.Name)
}

// Cleanup releases every resource the coordinator still holds. Safe
// to call after either a successful or failed Launch; idempotent.
func (c *Coordinator) Cleanup() {
	if c.stack != nil {
		c.stack.Release()
	}
	if c.vmcs != nil {
		c.vmcs.Release()
	}
	c.rollback = nil
}
