//go:build linux

package intrinsics

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"example.com/vmcs-architect/vmcsfield"
)

// DefaultDevicePath is the character device the Linux backend opens,
// analogous to the teacher opening "/dev/kvm" in
// core_engine.NewVirtualMachine.
const DefaultDevicePath = "/dev/vmcs0"

// LinuxPort is the hardware-backed Port implementation. It talks to a
// VMX-control character device via ioctl, the same shape as the
// teacher's DoKVMCreateVM/DoKVMGetRegs/DoKVMSetRegs wrappers in
// core_engine/hypervisor/kvm.go, generalized to VMCS-field access.
type LinuxPort struct {
	fd int
}

// NewLinuxPort opens the VMX-control device at path. Pass
// DefaultDevicePath unless the host exposes it elsewhere.
func NewLinuxPort(path string) (*LinuxPort, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("intrinsics: open %s: %w", path, err)
	}
	return &LinuxPort{fd: fd}, nil
}

// Close releases the underlying device file descriptor.
func (p *LinuxPort) Close() error {
	if p.fd == 0 {
		return nil
	}
	err := unix.Close(p.fd)
	p.fd = 0
	return err
}

func (p *LinuxPort) ReadMSR(msr uint32) (uint64, error) {
	arg := msrAccess{MSR: msr}
	if err := ioctl(p.fd, iocReadMSR, uintptr(unsafe.Pointer(&arg))); err != nil {
		return 0, fmt.Errorf("intrinsics: RDMSR(0x%x): %w", msr, err)
	}
	return arg.Value, nil
}

func (p *LinuxPort) CPUIDEax(leaf uint32) (uint32, error) {
	arg := cpuidAccess{Leaf: leaf}
	if err := ioctl(p.fd, iocCPUIDEax, uintptr(unsafe.Pointer(&arg))); err != nil {
		return 0, fmt.Errorf("intrinsics: CPUID(0x%x): %w", leaf, err)
	}
	return arg.Eax, nil
}

func (p *LinuxPort) VMRead(field vmcsfield.FieldID) (uint64, bool) {
	arg := fieldAccess{Field: uint16(field)}
	if err := ioctl(p.fd, iocVMRead, uintptr(unsafe.Pointer(&arg))); err != nil {
		return 0, false
	}
	return arg.Value, arg.OK != 0
}

func (p *LinuxPort) VMWrite(field vmcsfield.FieldID, value uint64) bool {
	arg := fieldAccess{Field: uint16(field), Value: value}
	if err := ioctl(p.fd, iocVMWrite, uintptr(unsafe.Pointer(&arg))); err != nil {
		return false
	}
	return arg.OK != 0
}

func (p *LinuxPort) VMPtrld(phys uint64) bool {
	return ioctl(p.fd, iocVMPtrld, uintptr(unsafe.Pointer(&phys))) == nil
}

func (p *LinuxPort) VMClear(phys uint64) bool {
	return ioctl(p.fd, iocVMClear, uintptr(unsafe.Pointer(&phys))) == nil
}

func (p *LinuxPort) VMLaunch() bool {
	return ioctl(p.fd, iocVMLaunch, 0) == nil
}

var _ Port = (*LinuxPort)(nil)
