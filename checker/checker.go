// Package checker re-implements, entirely in Go, a subset of the VMX
// architectural checks the processor itself performs on VMLAUNCH (SDM
// vol. 3, chapter 26). It exists for diagnostics: when VMLAUNCH fails,
// the coordinator runs the checker to localize which field violates
// an invariant, since VM_INSTRUCTION_ERROR alone rarely says which
// field is at fault.
//
// Checks run in registration order and the checker stops at the first
// failure (spec.md §4.6: "earliest enumerated check wins"), so the
// order the slices below are built in is itself part of the contract,
// not an implementation detail.
package checker

import (
	"example.com/vmcs-architect/control"
	"example.com/vmcs-architect/internal/msrid"
	"example.com/vmcs-architect/intrinsics"
	"example.com/vmcs-architect/state"
	"example.com/vmcs-architect/vmcsfield"
)

// Check is one named architectural check. Fail returns a non-empty
// reason when the check fails, or "" when it passes.
type Check struct {
	Name string
	Fail func() string
}

// Result is what Run returns: either ok, or the first failing check's
// name and reason.
type Result struct {
	Name   string
	Reason string
}

func (r Result) OK() bool { return r.Name == "" }

// Input bundles everything the checks need to inspect. Masks holds
// the five synthesized control masks in control.Class order
// (pin/proc/proc2/exit/entry); Snapshot is the state that was written
// to the VMCS. Intr, when non-nil, lets checks read back live VMCS
// fields and capability/fixed-bit MSRs (e.g. IO-bitmap addresses, the
// event-injection field, IA32_VMX_CR0_FIXED0/1); checks that need it
// degrade to a pass when it is nil rather than fault, since the
// checker must also run usefully against a masks/snapshot pair with
// no VMCS behind it yet.
type Input struct {
	Intr     intrinsics.Port
	Masks    [5]control.Mask
	Snapshot state.Snapshot
}

func (in Input) mask(c control.Class) uint32 {
	for _, m := range in.Masks {
		if m.Class == c {
			return m.Value
		}
	}
	return 0
}

// vmread reads a VMCS field through Intr, returning 0 if Intr is nil
// or the read fails. A 0 value reads as "absent": for the bitmap and
// MSR-area addresses and the CR3-target count that is the non-failing
// reading, while the virtual-APIC page address, VPID and EPT-pointer
// checks report a 0 read as a violation when their control bit is set
// and Intr is non-nil.
func (in Input) vmread(field vmcsfield.FieldID) uint64 {
	if in.Intr == nil {
		return 0
	}
	v, _ := in.Intr.VMRead(field)
	return v
}

// readMSR reads an MSR through Intr, returning 0 if Intr is nil or the
// read fails.
func (in Input) readMSR(msr uint32) uint64 {
	if in.Intr == nil {
		return 0
	}
	v, _ := in.Intr.ReadMSR(msr)
	return v
}

// physAddrWidthBits returns the host's physical-address width from
// CPUID leaf 0x80000008, EAX[7:0], or 0 if Intr is nil or the leaf is
// unavailable. Address-ceiling checks treat 0 as "unknown" and skip.
func (in Input) physAddrWidthBits() uint {
	if in.Intr == nil {
		return 0
	}
	eax, err := in.Intr.CPUIDEax(0x80000008)
	if err != nil {
		return 0
	}
	return uint(eax & 0xFF)
}

// checkPhysAddr validates a single 4 KiB-aligned physical-address
// field (an IO-bitmap or MSR-bitmap base), per SDM vol. 3 §24.6.9.
func (in Input) checkPhysAddr(field vmcsfield.FieldID, name string) string {
	addr := in.vmread(field)
	if addr&0xFFF != 0 {
		return name + " address is not 4 KiB-aligned"
	}
	if width := in.physAddrWidthBits(); width > 0 && addr>>width != 0 {
		return name + " address exceeds the physical-address width"
	}
	return ""
}

// checkMSRAreaAddr validates a VM-exit/VM-entry MSR-store or MSR-load
// area: the address is only meaningful when the paired count is
// nonzero, must be 16-byte aligned (SDM vol. 3 §24.7.2/§24.8.2), and
// must not exceed the physical-address width.
func (in Input) checkMSRAreaAddr(countField, addrField vmcsfield.FieldID, name string) string {
	if in.vmread(countField) == 0 {
		return ""
	}
	addr := in.vmread(addrField)
	if addr == 0 {
		return name + " address is zero but its MSR count is nonzero"
	}
	if addr&0xF != 0 {
		return name + " address is not 16-byte aligned"
	}
	if width := in.physAddrWidthBits(); width > 0 && addr>>width != 0 {
		return name + " address exceeds the physical-address width"
	}
	return ""
}

// eventInjectionFields decodes the VM-entry interruption-information
// field (SDM vol. 3, table 24-13): bit 31 valid, bits[10:8] type,
// bit 11 deliver-error-code, bits[7:0] vector.
func (in Input) eventInjectionFields() (vector, typ uint32, deliverErr, valid bool) {
	info := uint32(in.vmread(vmcsfield.VMEntryIntrInfoField))
	return info & 0xFF, (info >> 8) & 0x7, info&(1<<11) != 0, info&(1<<31) != 0
}

// Run executes every registered check in order and returns the first
// failure, or a zero Result if every check passes.
func Run(in Input) Result {
	for _, c := range allChecks(in) {
		if reason := c.Fail(); reason != "" {
			return Result{Name: c.Name, Reason: reason}
		}
	}
	return Result{}
}

func allChecks(in Input) []Check {
	checks := make([]Check, 0, 64)
	checks = append(checks, controlStateChecks(in)...)
	checks = append(checks, hostStateChecks(in)...)
	checks = append(checks, guestStateChecks(in)...)
	return checks
}

// controlStateChecks covers SDM §26.2: reserved bits in the control
// fields, consistency between related control bits, and address
// validity for control-field pointers.
func controlStateChecks(in Input) []Check {
	pin := in.mask(control.ClassPinBased)
	proc := in.mask(control.ClassProcBasedPrimary)
	proc2 := in.mask(control.ClassProcBasedSecondary)
	exit := in.mask(control.ClassVMExit)
	entry := in.mask(control.ClassVMEntry)

	return []Check{
		{"pin-based NMI exiting implies not virtual NMIs without NMI exiting",
			func() string {
				if pin&control.PinVirtualNMIs != 0 && pin&control.PinNMIExiting == 0 {
					return "virtual-NMIs set without NMI-exiting"
				}
				return ""
			}},
		{"pin-based preemption timer requires VM-exit save-timer consistency",
			func() string {
				if pin&control.PinActivateVMXPreemptionTimer == 0 &&
					exit&control.ExitSaveVMXPreemptionTimer != 0 {
					return "VM-exit requests saving the preemption timer but it is not active"
				}
				return ""
			}},
		{"secondary controls active only if activate-secondary-controls set",
			func() string {
				if proc&control.ProcActivateSecondaryControls == 0 && proc2 != 0 {
					return "secondary processor-based controls set without activate-secondary-controls"
				}
				return ""
			}},
		{"use-TPR-shadow and CR8-load exiting are mutually exclusive",
			func() string {
				if proc&control.ProcUseTPRShadow != 0 && proc&control.ProcCR8LoadExiting != 0 {
					return "use-TPR-shadow set together with CR8-load exiting"
				}
				return ""
			}},
		{"unrestricted guest requires EPT",
			func() string {
				if proc2&control.Proc2UnrestrictedGuest != 0 && proc2&control.Proc2EnableEPT == 0 {
					return "unrestricted-guest set without EPT enabled"
				}
				return ""
			}},
		{"VM-exit host-address-space-size must be set on a 64-bit host",
			func() string {
				if in.Snapshot.Host != nil && in.Snapshot.Host.IA32e() &&
					exit&control.ExitHostAddressSpaceSize == 0 {
					return "host runs in IA-32e mode but host-address-space-size is clear"
				}
				return ""
			}},
		{"VM-entry IA-32e-mode-guest requires guest CR0.PG and CR4.PAE",
			func() string {
				if entry&control.EntryIA32eModeGuest == 0 {
					return ""
				}
				if in.Snapshot.Guest == nil {
					return ""
				}
				if in.Snapshot.Guest.CR0()&(1<<31) == 0 {
					return "IA-32e-mode guest requested but guest CR0.PG is clear"
				}
				if in.Snapshot.Guest.CR4()&(1<<5) == 0 {
					return "IA-32e-mode guest requested but guest CR4.PAE is clear"
				}
				return ""
			}},
		{"CR3-target count must not exceed 4",
			func() string {
				if in.vmread(vmcsfield.CR3TargetCount) > 4 {
					return "CR3-target count exceeds the architectural maximum of 4"
				}
				return ""
			}},
		{"IO-bitmap A address must be 4 KiB-aligned and within the physical-address width",
			func() string {
				if proc&control.ProcUseIOBitmaps == 0 {
					return ""
				}
				return in.checkPhysAddr(vmcsfield.IOBitmapA, "IO-bitmap A")
			}},
		{"IO-bitmap B address must be 4 KiB-aligned and within the physical-address width",
			func() string {
				if proc&control.ProcUseIOBitmaps == 0 {
					return ""
				}
				return in.checkPhysAddr(vmcsfield.IOBitmapB, "IO-bitmap B")
			}},
		{"MSR-bitmap address must be 4 KiB-aligned and within the physical-address width",
			func() string {
				if proc&control.ProcUseMSRBitmaps == 0 {
					return ""
				}
				return in.checkPhysAddr(vmcsfield.MSRBitmap, "MSR bitmap")
			}},
		{"TPR shadow requires a virtual-APIC page address",
			func() string {
				if proc&control.ProcUseTPRShadow == 0 || in.Intr == nil {
					return ""
				}
				addr := in.vmread(vmcsfield.VirtualAPICPageAddr)
				if addr == 0 {
					return "use-TPR-shadow set without a virtual-APIC page address"
				}
				if addr&0xFFF != 0 {
					return "virtual-APIC page address is not 4 KiB-aligned"
				}
				return ""
			}},
		{"NMI-window exiting requires virtual NMIs",
			func() string {
				if proc&control.ProcNMIWindowExiting != 0 && pin&control.PinVirtualNMIs == 0 {
					return "NMI-window exiting set without virtual-NMIs"
				}
				return ""
			}},
		{"virtualize-x2APIC-mode and virtualize-APIC-accesses are mutually exclusive",
			func() string {
				if proc2&control.Proc2VirtualizeX2APICMode != 0 && proc2&control.Proc2VirtualizeAPICAccesses != 0 {
					return "virtualize-x2APIC-mode set together with virtualize-APIC-accesses"
				}
				return ""
			}},
		{"virtual-interrupt delivery requires external-interrupt exiting",
			func() string {
				if proc2&control.Proc2VirtualInterruptDelivery != 0 && pin&control.PinExternalInterruptExiting == 0 {
					return "virtual-interrupt delivery set without external-interrupt exiting"
				}
				return ""
			}},
		{"VPID must be nonzero when VPID is enabled",
			func() string {
				if proc2&control.Proc2EnableVPID == 0 || in.Intr == nil {
					return ""
				}
				if in.vmread(vmcsfield.VirtualProcessorID) == 0 {
					return "enable-VPID set but VirtualProcessorID is zero"
				}
				return ""
			}},
		{"EPT pointer must be well-formed when EPT is enabled",
			func() string {
				if proc2&control.Proc2EnableEPT == 0 || in.Intr == nil {
					return ""
				}
				eptp := in.vmread(vmcsfield.EPTPointer)
				switch eptp & 0x7 {
				case 0, 6: // uncacheable or write-back
				default:
					return "EPT pointer memory type is neither UC nor WB"
				}
				if (eptp>>3)&0x7 != 3 {
					return "EPT pointer page-walk length does not encode 4-level paging"
				}
				if width := in.physAddrWidthBits(); width > 0 && eptp>>width != 0 {
					return "EPT pointer sets bits beyond the physical-address width"
				}
				return ""
			}},
		{"VM-exit MSR-store address must be 16-byte aligned and within the physical-address width",
			func() string {
				return in.checkMSRAreaAddr(vmcsfield.VMExitMSRStoreCount, vmcsfield.VMExitMSRStoreAddr, "VM-exit MSR-store")
			}},
		{"VM-exit MSR-load address must be 16-byte aligned and within the physical-address width",
			func() string {
				return in.checkMSRAreaAddr(vmcsfield.VMExitMSRLoadCount, vmcsfield.VMExitMSRLoadAddr, "VM-exit MSR-load")
			}},
		{"VM-entry MSR-load address must be 16-byte aligned and within the physical-address width",
			func() string {
				return in.checkMSRAreaAddr(vmcsfield.VMEntryMSRLoadCount, vmcsfield.VMEntryMSRLoadAddr, "VM-entry MSR-load")
			}},
		{"VM-entry event-injection type and vector must be valid when injection is pending",
			func() string {
				vector, typ, _, valid := in.eventInjectionFields()
				if !valid {
					return ""
				}
				switch typ {
				case 0, 2, 3, 4, 5, 6, 7: // external intr, NMI, hw exception, sw intr, priv sw exception, sw exception, other event
				default:
					return "VM-entry interruption type is reserved"
				}
				if typ == 2 && vector != 2 {
					return "NMI injection type must use vector 2"
				}
				return ""
			}},
		{"VM-entry deliver-error-code is valid only for hardware exceptions with an architectural error code",
			func() string {
				vector, typ, deliverErr, valid := in.eventInjectionFields()
				if !valid || !deliverErr {
					return ""
				}
				if typ != 3 {
					return "deliver-error-code set for a non-hardware-exception injection type"
				}
				switch vector {
				case 8, 10, 11, 12, 13, 14, 17: // #DF #TS #NP #SS #GP #PF #AC
				default:
					return "deliver-error-code set for a vector with no architectural error code"
				}
				return ""
			}},
		{"VM-entry instruction length must be in [0,15] for software-class injected events",
			func() string {
				_, typ, _, valid := in.eventInjectionFields()
				if !valid {
					return ""
				}
				switch typ {
				case 4, 5, 6: // software interrupt, privileged software exception, software exception
				default:
					return ""
				}
				if in.vmread(vmcsfield.VMEntryInstructionLen) > 15 {
					return "VM-entry instruction length exceeds 15"
				}
				return ""
			}},
	}
}

// hostStateChecks covers part of SDM §26.2.2/26.2.3: host segment
// selectors, host CR0/CR4 (including the FIXED0/FIXED1 MSRs), and
// canonicality of the host SYSENTER ESP/EIP and FS/GS bases. Host
// RIP/RSP canonicality and the host PAT/EFER/PERF_GLOBAL_CTRL values
// are not checked.
func hostStateChecks(in Input) []Check {
	h := in.Snapshot.Host
	if h == nil {
		return nil
	}

	return []Check{
		{"host CS selector RPL/TI must be 0",
			func() string {
				if h.CS().Selector&0x7 != 0 {
					return "host CS selector has nonzero RPL or TI"
				}
				return ""
			}},
		{"host SS/DS/ES/FS/GS selector RPL/TI must be 0 when nonzero",
			func() string {
				for _, sel := range []uint16{h.SS().Selector, h.DS().Selector, h.ES().Selector, h.FS().Selector, h.GS().Selector} {
					if sel != 0 && sel&0x7 != 0 {
						return "host data-segment selector has nonzero RPL or TI"
					}
				}
				return ""
			}},
		{"host TR selector must be nonzero and have TI=0",
			func() string {
				if h.TR().Selector == 0 {
					return "host TR selector is null"
				}
				if h.TR().Selector&0x4 != 0 {
					return "host TR selector has TI set"
				}
				return ""
			}},
		{"host CR0.PG and CR0.PE must be set",
			func() string {
				const pe, pg = 1 << 0, 1 << 31
				if h.CR0()&pe == 0 || h.CR0()&pg == 0 {
					return "host CR0.PE or CR0.PG is clear"
				}
				return ""
			}},
		{"host CR4.PAE must be set in IA-32e mode",
			func() string {
				const pae = 1 << 5
				if h.IA32e() && h.CR4()&pae == 0 {
					return "host runs in IA-32e mode but CR4.PAE is clear"
				}
				return ""
			}},
		{"host IA32_SYSENTER_ESP/EIP must be canonical",
			func() string {
				if !isCanonical(h.IA32SysenterESP()) || !isCanonical(h.IA32SysenterEIP()) {
					return "host SYSENTER ESP/EIP is not canonical"
				}
				return ""
			}},
		{"host FS/GS base must be canonical",
			func() string {
				if !isCanonical(h.IA32FSBase()) || !isCanonical(h.IA32GSBase()) {
					return "host FS/GS base is not canonical"
				}
				return ""
			}},
		{"host CR0 must satisfy IA32_VMX_CR0_FIXED0/FIXED1",
			func() string {
				if in.Intr == nil {
					return ""
				}
				fixed0 := in.readMSR(msrid.IA32VMXCR0Fixed0)
				fixed1 := in.readMSR(msrid.IA32VMXCR0Fixed1)
				cr0 := h.CR0()
				if cr0&fixed0 != fixed0 {
					return "host CR0 clears a bit IA32_VMX_CR0_FIXED0 requires set"
				}
				if cr0&^fixed1 != 0 {
					return "host CR0 sets a bit IA32_VMX_CR0_FIXED1 forbids"
				}
				return ""
			}},
		{"host CR4 must satisfy IA32_VMX_CR4_FIXED0/FIXED1",
			func() string {
				if in.Intr == nil {
					return ""
				}
				fixed0 := in.readMSR(msrid.IA32VMXCR4Fixed0)
				fixed1 := in.readMSR(msrid.IA32VMXCR4Fixed1)
				cr4 := h.CR4()
				if cr4&fixed0 != fixed0 {
					return "host CR4 clears a bit IA32_VMX_CR4_FIXED0 requires set"
				}
				if cr4&^fixed1 != 0 {
					return "host CR4 sets a bit IA32_VMX_CR4_FIXED1 forbids"
				}
				return ""
			}},
	}
}

// guestStateChecks covers the subset of SDM §26.3 guest-state checks
// this engine enforces directly; most guest-state legality (segment
// limits, access rights vs. mode) is intentionally left to the
// processor itself at VMLAUNCH time and surfaced through
// VM_INSTRUCTION_ERROR rather than duplicated here, per spec.md §4.6's
// "cheap to compute, not exhaustive" scope.
func guestStateChecks(in Input) []Check {
	g := in.Snapshot.Guest
	if g == nil {
		return nil
	}

	return []Check{
		{"guest CR0.PG implies CR0.PE",
			func() string {
				const pe, pg = 1 << 0, 1 << 31
				if g.CR0()&pg != 0 && g.CR0()&pe == 0 {
					return "guest CR0.PG set without CR0.PE"
				}
				return ""
			}},
		{"guest RFLAGS.VM must be clear outside unrestricted-guest mode",
			func() string {
				const vm = 1 << 17
				if g.RFLAGS()&vm != 0 &&
					in.mask(control.ClassProcBasedSecondary)&control.Proc2UnrestrictedGuest == 0 {
					return "guest RFLAGS.VM is set"
				}
				return ""
			}},
	}
}

// isCanonical reports whether addr is a canonical 64-bit address:
// bits 63:47 must all be equal (SDM vol. 3, §3.3.7.1).
func isCanonical(addr uint64) bool {
	top17 := addr >> 47
	return top17 == 0 || top17 == 0x1FFFF
}
