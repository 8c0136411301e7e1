// Package vmxregion owns the two pieces of memory the VMX engine must
// allocate before it can touch a VMCS: the 4 KiB VMCS region itself
// and the exit-handler stack VMCS_HOST_RSP points at. It generalizes
// core_engine.VirtualMachine's "allocate, mmap, cleanup-on-error"
// idiom (core_engine/virtual_machine.go, NewVirtualMachine/Close) from
// a single guest-memory mmap to two independently releasable regions.
package vmxregion

import (
	"fmt"

	"golang.org/x/sys/unix"

	"example.com/vmcs-architect/internal/msrid"
	"example.com/vmcs-architect/intrinsics"
	"example.com/vmcs-architect/memport"
	"example.com/vmcs-architect/vmerr"
)

const (
	// RegionSize is the architectural size of one VMCS region (a
	// single 4 KiB page covers every processor's VMCS_SIZE).
	RegionSize = 4096

	// StackSize is the exit-handler stack size. Large enough for a
	// C-calling-convention exit handler with a few frames of depth;
	// not derived from any architectural constant.
	StackSize = 16 * 1024

	stackAlignment = 16
)

// Region is one VMCS page: a 4 KiB, zero-filled buffer stamped with
// the processor's VMCS revision identifier in its first 31 bits, and
// resolved to a physical address so it can be handed to VMPTRLD.
type Region struct {
	mem  []byte
	phys uint64
}

// NewRegion allocates, maps, and stamps a VMCS region. intr supplies
// IA32_VMX_BASIC to derive the revision identifier (spec.md §4.1);
// mem resolves the region's virtual address to a physical one for
// VMPTRLD. Allocation fails with vmerr.RegionAllocationFailed if the
// mapping can't be made or the memory port can't resolve its address.
func NewRegion(intr intrinsics.Port, mem memport.Port) (*Region, error) {
	buf, err := unix.Mmap(-1, 0, RegionSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return nil, vmerr.RegionAllocationFailed(fmt.Errorf("mmap vmcs region: %w", err))
	}

	phys := mem.VirtToPhys(addrOf(buf))
	if phys == 0 {
		unix.Munmap(buf)
		return nil, vmerr.RegionAllocationFailed(fmt.Errorf("unresolvable virtual address"))
	}

	basic, err := intr.ReadMSR(msrid.IA32VMXBasic)
	if err != nil {
		unix.Munmap(buf)
		return nil, vmerr.RegionAllocationFailed(fmt.Errorf("read IA32_VMX_BASIC: %w", err))
	}

	revID := msrid.BasicRevisionID(basic)
	buf[0] = byte(revID)
	buf[1] = byte(revID >> 8)
	buf[2] = byte(revID >> 16)
	buf[3] = byte(revID>>24) & 0x7F // bit 31 must stay 0

	return &Region{mem: buf, phys: phys}, nil
}

// PhysAddr is the region's physical address, suitable for VMPTRLD.
func (r *Region) PhysAddr() uint64 { return r.phys }

// Clear issues VMCLEAR against this region, per spec.md §4.1: a VMCS
// must be cleared at least once before its first VMPTRLD.
func (r *Region) Clear(intr intrinsics.Port) error {
	if ok := intr.VMClear(r.phys); !ok {
		return vmerr.VMXInstructionFailed(vmerr.WhichClear)
	}
	return nil
}

// Load issues VMPTRLD against this region, making it the current
// VMCS for subsequent VMREAD/VMWRITE/VMLAUNCH.
func (r *Region) Load(intr intrinsics.Port) error {
	if ok := intr.VMPtrld(r.phys); !ok {
		return vmerr.VMXInstructionFailed(vmerr.WhichLoad)
	}
	return nil
}

// Release unmaps the region's backing memory. Calling Release more
// than once is a no-op, matching core_engine.VirtualMachine.Close's
// idempotent-cleanup style.
func (r *Region) Release() error {
	if r.mem == nil {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	return err
}

// ExitStack is the stack the exit handler runs on after a VM exit,
// pointed to by VMCS_HOST_RSP. It is allocated and released the same
// way as Region; Top returns the 16-byte-aligned address to write into
// that field.
type ExitStack struct {
	mem []byte
}

// NewExitStack allocates a StackSize-byte exit-handler stack.
func NewExitStack() (*ExitStack, error) {
	buf, err := unix.Mmap(-1, 0, StackSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return nil, vmerr.RegionAllocationFailed(fmt.Errorf("mmap exit stack: %w", err))
	}
	return &ExitStack{mem: buf}, nil
}

// Top returns the highest 16-byte-aligned address within the stack,
// the value VMCS_HOST_RSP must hold per the x86-64 System V ABI's
// stack-alignment requirement at a call boundary.
func (s *ExitStack) Top() uintptr {
	top := addrOf(s.mem) + uintptr(len(s.mem))
	return top &^ (stackAlignment - 1)
}

// Release unmaps the stack's backing memory. Idempotent.
func (s *ExitStack) Release() error {
	if s.mem == nil {
		return nil
	}
	err := unix.Munmap(s.mem)
	s.mem = nil
	return err
}
