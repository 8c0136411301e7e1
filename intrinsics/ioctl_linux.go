//go:build linux

package intrinsics

import (
	"golang.org/x/sys/unix"
)

// ioctl numbers for the VMX-control character device. Laid out the
// same way the teacher composes KVM's ioctl numbers in
// core_engine/hypervisor/kvm.go (base << bits | cmd << dev_bits),
// generalized from VM/VCPU lifecycle ioctls to VMCS-field ioctls. The
// actual VMX instruction execution lives in that device's kernel-side
// driver, out of scope per spec.md §1.
const (
	vmcsIoctlBase = 0xC2 // arbitrary, distinct from KVM's 0xAE
	vmcsDevBits   = 8

	iocVMRead    = (vmcsIoctlBase << vmcsDevBits) | 0x01
	iocVMWrite   = (vmcsIoctlBase << vmcsDevBits) | 0x02
	iocVMPtrld   = (vmcsIoctlBase << vmcsDevBits) | 0x03
	iocVMClear   = (vmcsIoctlBase << vmcsDevBits) | 0x04
	iocVMLaunch  = (vmcsIoctlBase << vmcsDevBits) | 0x05
	iocReadMSR   = (vmcsIoctlBase << vmcsDevBits) | 0x06
	iocCPUIDEax  = (vmcsIoctlBase << vmcsDevBits) | 0x07
)

// fieldAccess is the argument struct for iocVMRead/iocVMWrite.
type fieldAccess struct {
	Field uint16
	_     [6]byte
	Value uint64
	OK    uint8
	_     [7]byte
}

// msrAccess is the argument struct for iocReadMSR.
type msrAccess struct {
	MSR   uint32
	_     uint32
	Value uint64
}

// cpuidAccess is the argument struct for iocCPUIDEax.
type cpuidAccess struct {
	Leaf uint32
	Eax  uint32
}

func ioctl(fd int, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}
