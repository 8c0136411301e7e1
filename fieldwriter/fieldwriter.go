// Package fieldwriter copies a state.Snapshot and a set of synthesized
// control.Mask values into the current VMCS via intrinsics.Port.VMWrite.
// It is the one place that knows the field-by-field mapping from the
// Go-side state model to SDM field encodings; everything else works
// in terms of state.HostState/GuestState or control.Mask.
package fieldwriter

import (
	"example.com/vmcs-architect/control"
	"example.com/vmcs-architect/intrinsics"
	"example.com/vmcs-architect/state"
	"example.com/vmcs-architect/vmcsfield"
	"example.com/vmcs-architect/vmerr"
)

func write(intr intrinsics.Port, field vmcsfield.FieldID, value uint64) error {
	if ok := intr.VMWrite(field, value); !ok {
		return vmerr.VMWriteFailed(field)
	}
	return nil
}

// WriteHost copies h into the VMCS host-state fields.
func WriteHost(intr intrinsics.Port, h state.HostState) error {
	segments := []struct {
		selField vmcsfield.FieldID
		seg      state.Segment
	}{
		{vmcsfield.HostESSelector, h.ES()},
		{vmcsfield.HostCSSelector, h.CS()},
		{vmcsfield.HostSSSelector, h.SS()},
		{vmcsfield.HostDSSelector, h.DS()},
		{vmcsfield.HostFSSelector, h.FS()},
		{vmcsfield.HostGSSelector, h.GS()},
		{vmcsfield.HostTRSelector, h.TR()},
	}
	for _, s := range segments {
		if err := write(intr, s.selField, uint64(s.seg.Selector)); err != nil {
			return err
		}
	}
	// Host FS/GS base fields double as IA32_FS_BASE/IA32_GS_BASE:
	// there is no separate VMCS field for the raw MSR value. The TR
	// base comes from the TR segment.
	if err := write(intr, vmcsfield.HostFSBase, h.IA32FSBase()); err != nil {
		return err
	}
	if err := write(intr, vmcsfield.HostGSBase, h.IA32GSBase()); err != nil {
		return err
	}
	if err := write(intr, vmcsfield.HostTRBase, h.TR().Base); err != nil {
		return err
	}

	natural := []struct {
		field vmcsfield.FieldID
		value uint64
	}{
		{vmcsfield.HostGDTRBase, h.GDTRBase()},
		{vmcsfield.HostIDTRBase, h.IDTRBase()},
		{vmcsfield.HostCR0, h.CR0()},
		{vmcsfield.HostCR3, h.CR3()},
		{vmcsfield.HostCR4, h.CR4()},
		{vmcsfield.HostIA32SysenterESP, h.IA32SysenterESP()},
		{vmcsfield.HostIA32SysenterEIP, h.IA32SysenterEIP()},
	}
	for _, n := range natural {
		if err := write(intr, n.field, n.value); err != nil {
			return err
		}
	}

	if err := write(intr, vmcsfield.HostIA32SysenterCS, uint64(h.IA32SysenterCS())); err != nil {
		return err
	}
	if err := write(intr, vmcsfield.HostIA32PAT, h.IA32PAT()); err != nil {
		return err
	}
	if err := write(intr, vmcsfield.HostIA32Efer, h.IA32Efer()); err != nil {
		return err
	}
	if err := write(intr, vmcsfield.HostIA32PerfGlobalCtl, h.IA32PerfGlobalCtl()); err != nil {
		return err
	}

	return nil
}

// WriteGuest copies g into the VMCS guest-state fields.
func WriteGuest(intr intrinsics.Port, g state.GuestState) error {
	segments := []struct {
		selField   vmcsfield.FieldID
		baseField  vmcsfield.FieldID
		limitField vmcsfield.FieldID
		arField    vmcsfield.FieldID
		seg        state.Segment
	}{
		{vmcsfield.GuestESSelector, vmcsfield.GuestESBase, vmcsfield.GuestESLimit, vmcsfield.GuestESAccessRights, g.ES()},
		{vmcsfield.GuestCSSelector, vmcsfield.GuestCSBase, vmcsfield.GuestCSLimit, vmcsfield.GuestCSAccessRights, g.CS()},
		{vmcsfield.GuestSSSelector, vmcsfield.GuestSSBase, vmcsfield.GuestSSLimit, vmcsfield.GuestSSAccessRights, g.SS()},
		{vmcsfield.GuestDSSelector, vmcsfield.GuestDSBase, vmcsfield.GuestDSLimit, vmcsfield.GuestDSAccessRights, g.DS()},
		{vmcsfield.GuestFSSelector, vmcsfield.GuestFSBase, vmcsfield.GuestFSLimit, vmcsfield.GuestFSAccessRights, g.FS()},
		{vmcsfield.GuestGSSelector, vmcsfield.GuestGSBase, vmcsfield.GuestGSLimit, vmcsfield.GuestGSAccessRights, g.GS()},
		{vmcsfield.GuestLDTRSelector, vmcsfield.GuestLDTRBase, vmcsfield.GuestLDTRLimit, vmcsfield.GuestLDTRAccessRights, g.LDTR()},
		{vmcsfield.GuestTRSelector, vmcsfield.GuestTRBase, vmcsfield.GuestTRLimit, vmcsfield.GuestTRAccessRights, g.TR()},
	}
	for _, s := range segments {
		if err := write(intr, s.selField, uint64(s.seg.Selector)); err != nil {
			return err
		}
		if err := write(intr, s.baseField, s.seg.Base); err != nil {
			return err
		}
		if err := write(intr, s.limitField, uint64(s.seg.Limit)); err != nil {
			return err
		}
		if err := write(intr, s.arField, uint64(s.seg.AccessRights)); err != nil {
			return err
		}
	}

	natural := []struct {
		field vmcsfield.FieldID
		value uint64
	}{
		{vmcsfield.GuestGDTRBase, g.GDTRBase()},
		{vmcsfield.GuestIDTRBase, g.IDTRBase()},
		{vmcsfield.GuestCR0, g.CR0()},
		{vmcsfield.GuestCR3, g.CR3()},
		{vmcsfield.GuestCR4, g.CR4()},
		{vmcsfield.GuestDR7, g.DR7()},
		{vmcsfield.GuestRFLAGS, g.RFLAGS()},
		{vmcsfield.GuestRIP, g.RIP()},
		{vmcsfield.GuestRSP, g.RSP()},
		{vmcsfield.GuestSysenterESP, g.IA32SysenterESP()},
		{vmcsfield.GuestSysenterEIP, g.IA32SysenterEIP()},
		{vmcsfield.VMCSLinkPointer, ^uint64(0)}, // no shadow VMCS: all-1s
		{vmcsfield.GuestPendingDbgExceptions, 0},
	}
	for _, n := range natural {
		if err := write(intr, n.field, n.value); err != nil {
			return err
		}
	}

	if err := write(intr, vmcsfield.GuestGDTRLimit, uint64(g.GDTRLimit())); err != nil {
		return err
	}
	if err := write(intr, vmcsfield.GuestIDTRLimit, uint64(g.IDTRLimit())); err != nil {
		return err
	}
	if err := write(intr, vmcsfield.GuestSysenterCS, uint64(g.IA32SysenterCS())); err != nil {
		return err
	}
	if err := write(intr, vmcsfield.GuestIA32DebugCtl, g.IA32DebugCtl()); err != nil {
		return err
	}
	if err := write(intr, vmcsfield.GuestIA32PAT, g.IA32PAT()); err != nil {
		return err
	}
	if err := write(intr, vmcsfield.GuestIA32Efer, g.IA32Efer()); err != nil {
		return err
	}
	if err := write(intr, vmcsfield.GuestIA32PerfGlobalCtl, g.IA32PerfGlobalCtl()); err != nil {
		return err
	}
	if err := write(intr, vmcsfield.GuestActivityState, 0); err != nil { // 0 = active
		return err
	}
	if err := write(intr, vmcsfield.GuestInterruptibilityInfo, 0); err != nil {
		return err
	}

	return nil
}

// WriteControls32 writes the five synthesized 32-bit execution-control
// masks into their VMCS fields.
func WriteControls32(intr intrinsics.Port, masks [5]control.Mask) error {
	fields := map[control.Class]vmcsfield.FieldID{
		control.ClassPinBased:           vmcsfield.PinBasedVMExecControl,
		control.ClassProcBasedPrimary:   vmcsfield.CPUBasedVMExecControl,
		control.ClassProcBasedSecondary: vmcsfield.SecondaryVMExecControl,
		control.ClassVMExit:             vmcsfield.VMExitControls,
		control.ClassVMEntry:            vmcsfield.VMEntryControls,
	}
	for _, m := range masks {
		field, ok := fields[m.Class]
		if !ok {
			continue
		}
		if err := write(intr, field, uint64(m.Value)); err != nil {
			return err
		}
	}
	return nil
}
