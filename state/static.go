package state

import (
	"fmt"
	"io"
)

// StaticSnapshot is a fixed-value, in-memory implementation of both
// HostState and GuestState. It exists for tests and as a runnable
// example of what a real state-snapshot supplier must produce: a
// complete, internally consistent set of segment, control-register,
// and MSR values. Field values default to a flat 32-bit protected-mode
// layout built from the adapted GDT/paging helpers in gdt.go/paging.go.
// The register and MSR fields are unexported and have no setters, so
// outside this package only Name can be changed after construction.
type StaticSnapshot struct {
	Name string // "host" or "guest", used only by Dump

	es, cs, ss, ds, fs, gs, ldtr, tr Segment

	gdtrBase, idtrBase   uint64
	gdtrLimit, idtrLimit uint32

	cr0, cr3, cr4 uint64
	dr7, rflags   uint64
	rip, rsp      uint64

	debugCtl, pat, efer, perfGlobalCtl uint64
	sysenterCS                         uint32
	sysenterESP, sysenterEIP           uint64
	fsBase, gsBase                     uint64

	ia32e bool

	// pageDirectory backs CR3 with a real, walkable identity mapping
	// so checker tests that inspect guest paging see consistent state.
	pageDirectory []byte
}

// NewStaticHostState returns a StaticSnapshot configured as a flat
// 64-bit long-mode host, the common case for a VMX-root hypervisor
// process.
func NewStaticHostState() *StaticSnapshot {
	flatCode := flatSegment(0, true)
	flatData := flatSegment(0, false)
	return &StaticSnapshot{
		Name: "host",
		es:   flatData, cs: flatCode, ss: flatData, ds: flatData,
		fs: flatData, gs: flatData, tr: flatData,
		gdtrBase: 0x500, idtrBase: 0x600,
		cr0: 0x80000033, cr3: 0x1000, cr4: 0x2020,
		rip: 0,
		pat: 0x0007040600070406, efer: 0x501, // LME|LMA|SCE
		sysenterCS: 0x08,
		ia32e:      true,
	}
}

// NewStaticGuestState returns a StaticSnapshot configured as a flat
// 32-bit protected-mode guest identity-mapped over its first 4 MiB,
// mirroring the layout core_engine.NewVirtualMachine constructs for
// its KVM guest (flat CS/DS, single 4 MiB identity PDE).
func NewStaticGuestState() *StaticSnapshot {
	flatCode := flatSegment(0, true)
	flatData := flatSegment(0, false)

	pageDir := make([]byte, 4096)
	cr3 := buildIdentityPageDirectory(pageDir)

	return &StaticSnapshot{
		Name: "guest",
		es:   flatData, cs: flatCode, ss: flatData, ds: flatData,
		fs: flatData, gs: flatData, ldtr: Segment{}, tr: flatData,
		gdtrBase: 0x500, gdtrLimit: 0x17, idtrBase: 0x600, idtrLimit: 0,
		cr0: 0x11, cr3: cr3, cr4: 0,
		rflags: 0x2, rip: 0x7c00, rsp: 0x7c00,
		sysenterCS: 0,
		pageDirectory: pageDir,
	}
}

func (s *StaticSnapshot) ES() Segment   { return s.es }
func (s *StaticSnapshot) CS() Segment   { return s.cs }
func (s *StaticSnapshot) SS() Segment   { return s.ss }
func (s *StaticSnapshot) DS() Segment   { return s.ds }
func (s *StaticSnapshot) FS() Segment   { return s.fs }
func (s *StaticSnapshot) GS() Segment   { return s.gs }
func (s *StaticSnapshot) LDTR() Segment { return s.ldtr }
func (s *StaticSnapshot) TR() Segment   { return s.tr }

func (s *StaticSnapshot) GDTRBase() uint64  { return s.gdtrBase }
func (s *StaticSnapshot) GDTRLimit() uint32 { return s.gdtrLimit }
func (s *StaticSnapshot) IDTRBase() uint64  { return s.idtrBase }
func (s *StaticSnapshot) IDTRLimit() uint32 { return s.idtrLimit }

func (s *StaticSnapshot) CR0() uint64 { return s.cr0 }
func (s *StaticSnapshot) CR3() uint64 { return s.cr3 }
func (s *StaticSnapshot) CR4() uint64 { return s.cr4 }

func (s *StaticSnapshot) DR7() uint64    { return s.dr7 }
func (s *StaticSnapshot) RFLAGS() uint64 { return s.rflags }
func (s *StaticSnapshot) RIP() uint64    { return s.rip }
func (s *StaticSnapshot) RSP() uint64    { return s.rsp }

func (s *StaticSnapshot) IA32DebugCtl() uint64      { return s.debugCtl }
func (s *StaticSnapshot) IA32PAT() uint64           { return s.pat }
func (s *StaticSnapshot) IA32Efer() uint64          { return s.efer }
func (s *StaticSnapshot) IA32PerfGlobalCtl() uint64 { return s.perfGlobalCtl }
func (s *StaticSnapshot) IA32SysenterCS() uint32    { return s.sysenterCS }
func (s *StaticSnapshot) IA32SysenterESP() uint64   { return s.sysenterESP }
func (s *StaticSnapshot) IA32SysenterEIP() uint64   { return s.sysenterEIP }
func (s *StaticSnapshot) IA32FSBase() uint64        { return s.fsBase }
func (s *StaticSnapshot) IA32GSBase() uint64        { return s.gsBase }

func (s *StaticSnapshot) IA32e() bool { return s.ia32e }

// Dump writes a short human-readable summary, generalizing the
// teacher's log.Printf-style register dumps (e.g. VCPU.initRegisters
// in core_engine/vcpu.go: "RIP=0x%x, RFLAGS=0x%x, CS.Base=0x%x") from
// a debug log line to an explicit diagnostics writer.
func (s *StaticSnapshot) Dump(w io.Writer) {
	fmt.Fprintf(w, "%s state: CR0=0x%x CR3=0x%x CR4=0x%x RIP=0x%x RSP=0x%x RFLAGS=0x%x CS.Base=0x%x CS.Selector=0x%x\n",
		s.Name, s.cr0, s.cr3, s.cr4, s.rip, s.rsp, s.rflags, s.cs.Base, s.cs.Selector)
}

var (
	_ HostState  = (*StaticSnapshot)(nil)
	_ GuestState = (*StaticSnapshot)(nil)
)
