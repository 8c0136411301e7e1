package state

// descriptor is a single 64-bit GDT descriptor, adapted from the
// teacher's hypervisor.GDTEntry (core_engine/hypervisor/gdt.go). The
// teacher builds these to load into guest memory for a booting KVM
// guest; here they back StaticSnapshot's AccessRights/Limit/Base
// triples so a test can describe a segment in SDM terms (base, limit,
// access byte, flags) instead of hand-computing the packed
// access-rights word VMX expects.
type descriptor struct {
	limitLow  uint16
	baseLow   uint16
	baseMid   uint8
	access    uint8
	limitHigh uint8 // low nibble: limit[19:16]; high nibble: flags (G, D/B, L, AVL)
	baseHigh  uint8
}

// newDescriptor mirrors hypervisor.NewGDTEntry: base is the 32-bit
// linear base, limit is the 20-bit segment limit, access is the
// 8-bit access byte, and flags occupies the upper nibble shared with
// limit[19:16] (G, D/B, L, AVL).
func newDescriptor(base uint32, limit uint32, access uint8, flags uint8) descriptor {
	return descriptor{
		baseLow:   uint16(base & 0xFFFF),
		baseMid:   uint8((base >> 16) & 0xFF),
		baseHigh:  uint8((base >> 24) & 0xFF),
		limitLow:  uint16(limit & 0xFFFF),
		limitHigh: uint8((limit>>16)&0x0F) | (flags & 0xF0),
		access:    access,
	}
}

// vmxAccessRights packs this descriptor into the 32-bit access-rights
// word VMCS guest segment fields expect (SDM vol. 3, table 24-2):
// bits [3:0] type, bit 4 S, bits [6:5] DPL, bit 7 P, bit 12 AVL,
// bit 13 L, bit 14 D/B, bit 15 G, bit 16 Unusable.
func (d descriptor) vmxAccessRights() uint32 {
	typ := uint32(d.access & 0x0F)
	s := uint32((d.access >> 4) & 0x1)
	dpl := uint32((d.access >> 5) & 0x3)
	p := uint32((d.access >> 7) & 0x1)
	avl := uint32((d.limitHigh >> 4) & 0x1)
	l := uint32((d.limitHigh >> 5) & 0x1)
	db := uint32((d.limitHigh >> 6) & 0x1)
	g := uint32((d.limitHigh >> 7) & 0x1)

	return typ | (s << 4) | (dpl << 5) | (p << 7) |
		(avl << 12) | (l << 13) | (db << 14) | (g << 15)
}

func (d descriptor) limit() uint32 {
	granularity := uint32(d.limitHigh>>7) & 1
	raw := uint32(d.limitLow) | (uint32(d.limitHigh&0x0F) << 16)
	if granularity == 1 {
		return (raw << 12) | 0xFFF
	}
	return raw
}

func (d descriptor) base() uint64 {
	return uint64(d.baseLow) | uint64(d.baseMid)<<16 | uint64(d.baseHigh)<<24
}

// Access bytes and flags matching common flat-mode descriptors, named
// the way the teacher names its GDT entries in
// core_engine/virtual_machine.go (NewGDTEntry(0, 0xFFFFF, 0x9A, 0xCF)
// for a flat 32-bit code segment).
const (
	accessCode32     uint8 = 0x9A // Present, DPL0, Execute/Read
	accessData32     uint8 = 0x92 // Present, DPL0, Read/Write
	flagsGranular32  uint8 = 0xC0 // G=1, D/B=1
	flatSegmentLimit uint32 = 0xFFFFF
)

// flatSegment builds a 4 GiB flat segment descriptor with the given
// base, matching the teacher's CS/DS construction in
// core_engine/virtual_machine.go for a protected-mode flat model.
func flatSegment(base uint32, code bool) Segment {
	access := accessData32
	if code {
		access = accessCode32
	}
	d := newDescriptor(base, flatSegmentLimit, access, flagsGranular32)
	return Segment{
		Selector:     0x10,
		Base:         d.base(),
		Limit:        d.limit(),
		AccessRights: d.vmxAccessRights(),
	}
}
