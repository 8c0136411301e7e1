package memport

// Fake is a per-instance test double for Port, mapping virtual to
// physical addresses explicitly rather than computing them, and able
// to simulate an unmappable address for scenario 2 of spec.md §8
// ("Allocation fail").
type Fake struct {
	ToPhys map[uintptr]uint64
	ToVirt map[uint64]uintptr

	// DefaultPhys is returned by VirtToPhys for any virtual address
	// not explicitly recorded via Map. Real mmap'd addresses aren't
	// known ahead of time, so a caller that only cares about "this
	// address translates" sets DefaultPhys instead of pre-computing
	// the exact address NewRegion/NewExitStack will receive.
	DefaultPhys uint64

	// FailNextTranslation makes the next VirtToPhys call return 0,
	// regardless of what ToPhys or DefaultPhys holds, then resets
	// itself.
	FailNextTranslation bool
}

// NewFake returns a Fake with empty translation maps.
func NewFake() *Fake {
	return &Fake{
		ToPhys: make(map[uintptr]uint64),
		ToVirt: make(map[uint64]uintptr),
	}
}

// Map records a two-way translation between virt and phys.
func (f *Fake) Map(virt uintptr, phys uint64) {
	f.ToPhys[virt] = phys
	f.ToVirt[phys] = virt
}

func (f *Fake) VirtToPhys(virt uintptr) uint64 {
	if f.FailNextTranslation {
		f.FailNextTranslation = false
		return 0
	}
	if phys, ok := f.ToPhys[virt]; ok {
		return phys
	}
	return f.DefaultPhys
}

func (f *Fake) PhysToVirt(phys uint64) uintptr {
	return f.ToVirt[phys]
}

var _ Port = (*Fake)(nil)
