package intrinsics

import "example.com/vmcs-architect/vmcsfield"

// Fake is a per-instance test double for Port. It carries its own MSR
// map, VMCS field map, and failure switches rather than any
// process-wide global, so concurrent tests never interfere with each
// other (spec.md §9 Design Notes: "re-architect as per-test injected
// state... no process-wide globals in the core").
type Fake struct {
	MSRs   map[uint32]uint64
	CPUID  map[uint32]uint32
	Fields map[vmcsfield.FieldID]uint64

	// FailFields, when non-nil, names VMCS fields whose VMRead/VMWrite
	// must report failure.
	FailFields map[vmcsfield.FieldID]bool

	FailVMPtrld  bool
	FailVMClear  bool
	FailVMLaunch bool

	// VMReadCount/VMWriteCount record how many times each field was
	// touched, for tests that assert on write coverage.
	VMReadCount  map[vmcsfield.FieldID]int
	VMWriteCount map[vmcsfield.FieldID]int
}

// NewFake returns a Fake with all maps initialized and ready to use.
func NewFake() *Fake {
	return &Fake{
		MSRs:         make(map[uint32]uint64),
		CPUID:        make(map[uint32]uint32),
		Fields:       make(map[vmcsfield.FieldID]uint64),
		FailFields:   make(map[vmcsfield.FieldID]bool),
		VMReadCount:  make(map[vmcsfield.FieldID]int),
		VMWriteCount: make(map[vmcsfield.FieldID]int),
	}
}

func (f *Fake) ReadMSR(msr uint32) (uint64, error) {
	return f.MSRs[msr], nil
}

func (f *Fake) CPUIDEax(leaf uint32) (uint32, error) {
	return f.CPUID[leaf], nil
}

func (f *Fake) VMRead(field vmcsfield.FieldID) (uint64, bool) {
	f.VMReadCount[field]++
	if f.FailFields[field] {
		return 0, false
	}
	return f.Fields[field], true
}

func (f *Fake) VMWrite(field vmcsfield.FieldID, value uint64) bool {
	f.VMWriteCount[field]++
	if f.FailFields[field] {
		return false
	}
	f.Fields[field] = value
	return true
}

func (f *Fake) VMPtrld(phys uint64) bool {
	return !f.FailVMPtrld
}

func (f *Fake) VMClear(phys uint64) bool {
	return !f.FailVMClear
}

func (f *Fake) VMLaunch() bool {
	return !f.FailVMLaunch
}

var _ Port = (*Fake)(nil)
