package state

// Page directory/table entry flags, adapted verbatim from the
// teacher's core_engine/hypervisor/paging.go (same bit positions, same
// names) — the teacher uses these to identity-map a KVM guest's first
// 4 MiB; StaticSnapshot reuses them to hand the checker and field
// writer a believable guest CR3 backed by a single 4 MiB PSE entry.
const (
	ptePresent   uint32 = 1 << 0
	pteReadWrite uint32 = 1 << 1
	pteUserSuper uint32 = 1 << 2
	pdePageSize  uint32 = 1 << 7 // PDE only: 1 = 4 MiB page
)

// newPDE4MB mirrors hypervisor.NewPDE4MB: a PDE that maps a 4 MiB page
// directly, used when the fixture wants the simplest possible
// identity-mapped guest address space.
func newPDE4MB(physAddr uint32, flags uint32) uint32 {
	return (physAddr & 0xFFC00000) | (flags & 0x000001FF) | pdePageSize
}

// buildIdentityPageDirectory writes a one-entry page directory at the
// start of mem that identity-maps the first 4 MiB with a single 4 MiB
// page (PSE), and returns the page directory's physical (here:
// offset-zero) address to use as CR3. This is the same construction
// core_engine.NewVirtualMachine performs against guest memory before
// handing control to KVM; StaticSnapshot performs it against its own
// backing buffer so checker/field-writer tests have a CR3 that passes
// a real walk, not a bare constant.
func buildIdentityPageDirectory(mem []byte) uint64 {
	flags := ptePresent | pteReadWrite | pteUserSuper
	pde := newPDE4MB(0x0, flags)

	mem[0] = byte(pde)
	mem[1] = byte(pde >> 8)
	mem[2] = byte(pde >> 16)
	mem[3] = byte(pde >> 24)

	return 0
}
