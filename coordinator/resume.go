package coordinator

import "example.com/vmcs-architect/vmerr"

// Resume issues VMRESUME against an already-launched VMCS via the
// assembly trampoline in trampoline_amd64.s. VMRESUME, like VMLAUNCH,
// never returns to its caller on success: execution continues in the
// guest until the next VM exit re-enters at VMCS_HOST_RIP. If this
// function returns at all, VMRESUME itself failed before entering the
// guest, which spec.md §4.8 treats as its own error kind distinct from
// a normal VM exit. When the coordinator is not in Launched, Resume
// returns ResumeReturned without issuing VMRESUME.
func (c *Coordinator) Resume() error {
	if c.phase != Launched {
		return vmerr.ResumeReturned()
	}
	vmxResumeTrampoline()
	return vmerr.ResumeReturned()
}

// Promote transfers control through the promotion trampoline, which
// leaves VMX operation (VMXOFF) and restores hostGSBase as a regular,
// non-VMX context's GS base, per spec.md §4.7. This is the opposite
// of Resume: Resume re-enters the guest, Promote hands the CPU back
// to the host permanently. A return from this function means the
// handoff did not take effect, which this core treats as its own
// failure kind rather than a normal VM exit.
func (c *Coordinator) Promote(hostGSBase uintptr) error {
	vmxPromoteTrampoline(hostGSBase)
	return vmerr.PromoteReturned()
}

// vmxResumeTrampoline and vmxPromoteTrampoline are implemented in
// trampoline_amd64.s. vmxResumeTrampoline issues VMRESUME and returns
// to Go only on failure. vmxPromoteTrampoline issues VMXOFF and
// restores IA32_GS_BASE to hostGSBase; unlike VMRESUME it is not a
// VM-entry, so it returns to Go on ordinary completion too, which
// Promote still surfaces as PromoteReturned since nothing in this
// core is waiting to take over the now-non-VMX context.
func vmxResumeTrampoline()
func vmxPromoteTrampoline(hostGSBase uintptr)
