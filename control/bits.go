package control

// Named control bits, per Intel SDM vol. 3 tables 24-5 through 24-10.
// These are the bits a caller ORs into a Desired.Bits value; they are
// not forced or filtered themselves, Synthesize does that against the
// capability MSRs.
const (
	// Pin-based VM-execution controls.
	PinExternalInterruptExiting uint32 = 1 << 0
	PinNMIExiting               uint32 = 1 << 3
	PinVirtualNMIs              uint32 = 1 << 5
	PinActivateVMXPreemptionTimer uint32 = 1 << 6
	PinProcessPostedInterrupts  uint32 = 1 << 7
)

const (
	// Primary processor-based VM-execution controls.
	ProcInterruptWindowExiting uint32 = 1 << 2
	ProcUseTSCOffsetting       uint32 = 1 << 3
	ProcHLTExiting             uint32 = 1 << 7
	ProcInvlpgExiting          uint32 = 1 << 9
	ProcMwaitExiting           uint32 = 1 << 10
	ProcRdpmcExiting           uint32 = 1 << 11
	ProcRdtscExiting           uint32 = 1 << 12
	ProcCR3LoadExiting         uint32 = 1 << 15
	ProcCR3StoreExiting        uint32 = 1 << 16
	ProcCR8LoadExiting         uint32 = 1 << 19
	ProcCR8StoreExiting        uint32 = 1 << 20
	ProcUseTPRShadow           uint32 = 1 << 21
	ProcNMIWindowExiting       uint32 = 1 << 22
	ProcMovDRExiting           uint32 = 1 << 23
	ProcUnconditionalIOExiting uint32 = 1 << 24
	ProcUseIOBitmaps           uint32 = 1 << 25
	ProcMonitorTrapFlag        uint32 = 1 << 27
	ProcUseMSRBitmaps          uint32 = 1 << 28
	ProcMonitorExiting         uint32 = 1 << 29
	ProcPauseExiting           uint32 = 1 << 30
	ProcActivateSecondaryControls uint32 = 1 << 31
)

const (
	// Secondary processor-based VM-execution controls.
	Proc2VirtualizeAPICAccesses     uint32 = 1 << 0
	Proc2EnableEPT                  uint32 = 1 << 1
	Proc2DescriptorTableExiting     uint32 = 1 << 2
	Proc2EnableRDTSCP               uint32 = 1 << 3
	Proc2VirtualizeX2APICMode       uint32 = 1 << 4
	Proc2EnableVPID                 uint32 = 1 << 5
	Proc2WBINVDExiting              uint32 = 1 << 6
	Proc2UnrestrictedGuest          uint32 = 1 << 7
	Proc2VirtualInterruptDelivery   uint32 = 1 << 9
	Proc2EnableINVPCID              uint32 = 1 << 12
	Proc2EnableVMFunctions          uint32 = 1 << 13
)

const (
	// VM-exit controls.
	ExitSaveDebugControls        uint32 = 1 << 2
	ExitHostAddressSpaceSize     uint32 = 1 << 9
	ExitLoadIA32PerfGlobalCtl    uint32 = 1 << 12
	ExitAcknowledgeInterruptOnExit uint32 = 1 << 15
	ExitSaveIA32PAT              uint32 = 1 << 18
	ExitLoadIA32PAT              uint32 = 1 << 19
	ExitSaveIA32Efer             uint32 = 1 << 20
	ExitLoadIA32Efer             uint32 = 1 << 21
	ExitSaveVMXPreemptionTimer   uint32 = 1 << 22
)

const (
	// VM-entry controls.
	EntryLoadDebugControls    uint32 = 1 << 2
	EntryIA32eModeGuest       uint32 = 1 << 9
	EntryEntryToSMM           uint32 = 1 << 10
	EntryDeactivateDualMonitor uint32 = 1 << 11
	EntryLoadIA32PerfGlobalCtl uint32 = 1 << 13
	EntryLoadIA32PAT          uint32 = 1 << 14
	EntryLoadIA32Efer         uint32 = 1 << 15
)
