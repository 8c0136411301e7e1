package intrinsics

import (
	"testing"

	"example.com/vmcs-architect/vmcsfield"
)

func TestFakeVMWriteThenVMRead(t *testing.T) {
	f := NewFake()
	if ok := f.VMWrite(vmcsfield.GuestRIP, 0x7c00); !ok {
		t.Fatal("VMWrite reported failure")
	}
	got, ok := f.VMRead(vmcsfield.GuestRIP)
	if !ok || got != 0x7c00 {
		t.Errorf("VMRead = (%#x, %v), want (0x7c00, true)", got, ok)
	}
	if f.VMWriteCount[vmcsfield.GuestRIP] != 1 || f.VMReadCount[vmcsfield.GuestRIP] != 1 {
		t.Errorf("unexpected access counts: write=%d read=%d",
			f.VMWriteCount[vmcsfield.GuestRIP], f.VMReadCount[vmcsfield.GuestRIP])
	}
}

func TestFakeFailFieldsBlocksBothDirections(t *testing.T) {
	f := NewFake()
	f.FailFields[vmcsfield.GuestCR0] = true

	if ok := f.VMWrite(vmcsfield.GuestCR0, 1); ok {
		t.Error("expected VMWrite to report failure")
	}
	if _, ok := f.VMRead(vmcsfield.GuestCR0); ok {
		t.Error("expected VMRead to report failure")
	}
}

func TestFakeVMXInstructionFailureSwitches(t *testing.T) {
	f := NewFake()
	f.FailVMClear = true
	f.FailVMPtrld = true
	f.FailVMLaunch = true

	if f.VMClear(0x1000) {
		t.Error("expected VMClear to fail")
	}
	if f.VMPtrld(0x1000) {
		t.Error("expected VMPtrld to fail")
	}
	if f.VMLaunch() {
		t.Error("expected VMLaunch to fail")
	}
}
