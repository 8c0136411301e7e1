package vmxregion

import "unsafe"

// addrOf returns the virtual address of a byte slice's backing array.
// Both Region and ExitStack keep their mmap'd slice alive for as long
// as the returned address is used, so this is safe the same way the
// teacher treats its mmap'd guest memory in core_engine/virtual_machine.go.
func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
