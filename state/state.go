// Package state defines the read-only CPU state views the field
// writer copies into the VMCS. The concrete supplier of this state
// (an existing register/MSR snapshot taken before VMLAUNCH) is an
// external collaborator per spec.md §1; this package only specifies
// its contract, plus a StaticSnapshot reference implementation used
// by tests.
package state

import "io"

// Segment is one segment register's full descriptor-derived state,
// as spec.md §3 requires for guest segments (selector, limit, access
// rights, base) and the narrower host subset (selector, base).
type Segment struct {
	Selector    uint16
	Base        uint64
	Limit       uint32
	AccessRights uint32
}

// HostState is the read-only view of host-side register/MSR state the
// field writer copies into VMCS host fields.
type HostState interface {
	ES() Segment
	CS() Segment
	SS() Segment
	DS() Segment
	FS() Segment
	GS() Segment
	TR() Segment

	GDTRBase() uint64
	IDTRBase() uint64

	CR0() uint64
	CR3() uint64
	CR4() uint64

	IA32DebugCtl() uint64
	IA32PAT() uint64
	IA32Efer() uint64
	IA32PerfGlobalCtl() uint64
	IA32SysenterCS() uint32
	IA32SysenterESP() uint64
	IA32SysenterEIP() uint64
	IA32FSBase() uint64
	IA32GSBase() uint64

	// IA32e reports whether the host runs in IA-32e (long) mode,
	// consulted by the checker's host-address-space-size invariant.
	IA32e() bool

	// Dump writes a human-readable rendering of this state for
	// diagnostics. The core never interprets the output; it only
	// calls Dump on the failure path.
	Dump(w io.Writer)
}

// GuestState is the read-only view of guest-side register/MSR state
// the field writer copies into VMCS guest fields.
type GuestState interface {
	ES() Segment
	CS() Segment
	SS() Segment
	DS() Segment
	FS() Segment
	GS() Segment
	LDTR() Segment
	TR() Segment

	GDTRBase() uint64
	GDTRLimit() uint32
	IDTRBase() uint64
	IDTRLimit() uint32

	CR0() uint64
	CR3() uint64
	CR4() uint64

	DR7() uint64
	RFLAGS() uint64
	RIP() uint64
	RSP() uint64

	IA32DebugCtl() uint64
	IA32PAT() uint64
	IA32Efer() uint64
	IA32PerfGlobalCtl() uint64
	IA32SysenterCS() uint32
	IA32SysenterESP() uint64
	IA32SysenterEIP() uint64
	IA32FSBase() uint64
	IA32GSBase() uint64

	Dump(w io.Writer)
}

// Snapshot bundles the host and guest views launch consumes.
type Snapshot struct {
	Host  HostState
	Guest GuestState
}
