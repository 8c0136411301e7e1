// Package msrid names the MSR addresses the control synthesizer,
// field writer, and checker read through intrinsics.Port.ReadMSR.
package msrid

// VMX capability and feature-reporting MSRs (Intel SDM vol. 3, appendix A).
const (
	IA32VMXBasic           uint32 = 0x480
	IA32VMXPinbasedCtls    uint32 = 0x481
	IA32VMXProcbasedCtls   uint32 = 0x482
	IA32VMXExitCtls        uint32 = 0x483
	IA32VMXEntryCtls       uint32 = 0x484
	IA32VMXMisc            uint32 = 0x485
	IA32VMXCR0Fixed0       uint32 = 0x486
	IA32VMXCR0Fixed1       uint32 = 0x487
	IA32VMXCR4Fixed0       uint32 = 0x488
	IA32VMXCR4Fixed1       uint32 = 0x489
	IA32VMXVMCSEnum        uint32 = 0x48A
	IA32VMXProcbasedCtls2  uint32 = 0x48B
	IA32VMXEPTVPIDCap      uint32 = 0x48C
	IA32VMXTruePinbased    uint32 = 0x48D
	IA32VMXTrueProcbased   uint32 = 0x48E
	IA32VMXTrueExit        uint32 = 0x48F
	IA32VMXTrueEntry       uint32 = 0x490
	IA32VMXTrueVMFunc      uint32 = 0x491
)

// General-purpose MSRs the field writer/checker copy into the VMCS.
const (
	IA32SysenterCS      uint32 = 0x174
	IA32SysenterESP     uint32 = 0x175
	IA32SysenterEIP     uint32 = 0x176
	IA32DebugCtl        uint32 = 0x1D9
	IA32PAT             uint32 = 0x277
	IA32PerfGlobalCtl   uint32 = 0x38F
	IA32Efer            uint32 = 0xC0000080
	IA32FSBase          uint32 = 0xC0000100
	IA32GSBase          uint32 = 0xC0000101
)

// RevisionIDMask is applied to IA32_VMX_BASIC to obtain the VMX
// revision identifier (spec.md §3: "masked with 0x7FFFFFFFF"). It spans
// bits 34:0; BasicRevisionID's uint32 conversion keeps the low 32 bits.
const RevisionIDMask uint64 = 0x7FFFFFFFF

// BasicRevisionID extracts the revision identifier from IA32_VMX_BASIC.
func BasicRevisionID(basic uint64) uint32 {
	return uint32(basic & RevisionIDMask)
}
