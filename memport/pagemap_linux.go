//go:build linux

package memport

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	pagemapEntryBytes = 8
	pagemapPresentBit = uint64(1) << 63
	pfnMask           = (uint64(1) << 55) - 1
)

// PagemapPort resolves virtual addresses to physical addresses by
// reading /proc/self/pagemap, the standard userspace technique for
// this translation on Linux (there being no third-party library in
// the pack for it — see DESIGN.md). The teacher never needs this: KVM
// accepts userspace virtual addresses directly in
// DoKVMSetUserMemoryRegion and resolves them to physical addresses
// inside the kernel. VMPTRLD has no such indirection, so this module
// must do the resolution itself.
type PagemapPort struct {
	fd       int
	pageSize uint64
}

// NewPagemapPort opens /proc/self/pagemap for the calling process.
func NewPagemapPort() (*PagemapPort, error) {
	fd, err := unix.Open("/proc/self/pagemap", unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("memport: open pagemap: %w", err)
	}
	return &PagemapPort{fd: fd, pageSize: uint64(unix.Getpagesize())}, nil
}

// Close releases the open pagemap file descriptor.
func (p *PagemapPort) Close() error {
	if p.fd == 0 {
		return nil
	}
	err := unix.Close(p.fd)
	p.fd = 0
	return err
}

func (p *PagemapPort) VirtToPhys(virt uintptr) uint64 {
	pageIndex := uint64(virt) / p.pageSize
	offset := int64(pageIndex * pagemapEntryBytes)

	buf := make([]byte, pagemapEntryBytes)
	n, err := unix.Pread(p.fd, buf, offset)
	if err != nil || n != pagemapEntryBytes {
		return 0
	}

	// x86/x86-64 is little-endian; the pagemap entry format is a raw
	// kernel struct, not subject to network byte order.
	entry := binary.LittleEndian.Uint64(buf)
	if entry&pagemapPresentBit == 0 {
		return 0
	}

	pfn := entry & pfnMask
	pageRem := uint64(virt) % p.pageSize
	return pfn*p.pageSize + pageRem
}

// PhysToVirt cannot be recovered from /proc/self/pagemap (it is a
// one-way map); callers that need this direction cache the virtual
// address at allocation time instead (see vmxregion.Region).
func (p *PagemapPort) PhysToVirt(phys uint64) uintptr {
	return 0
}

var _ Port = (*PagemapPort)(nil)
