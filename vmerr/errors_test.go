package vmerr

import (
	"errors"
	"testing"
)

func TestErrorUnwrapExposesCause(t *testing.T) {
	cause := errors.New("mmap failed")
	err := RegionAllocationFailed(cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}

	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatal("expected errors.As to match *Error")
	}
	if ve.Kind != KindRegionAllocationFailed {
		t.Errorf("Kind = %s, want %s", ve.Kind, KindRegionAllocationFailed)
	}
}

func TestLaunchFailedCarriesCode(t *testing.T) {
	err := LaunchFailed(13, "")
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatal("expected errors.As to match *Error")
	}
	if ve.Code != 13 {
		t.Errorf("Code = %d, want 13", ve.Code)
	}
	if ve.Error() == "" {
		t.Error("expected non-empty error message")
	}
}

func TestLaunchFailedCarriesCheckName(t *testing.T) {
	err := LaunchFailed(7, "host CR0 must satisfy IA32_VMX_CR0_FIXED0/FIXED1")
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatal("expected errors.As to match *Error")
	}
	if ve.Check == "" {
		t.Error("expected Check to be populated")
	}
}

func TestVMXInstructionFailedRecordsWhich(t *testing.T) {
	err := VMXInstructionFailed(WhichLoad)
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatal("expected errors.As to match *Error")
	}
	if ve.Which != WhichLoad {
		t.Errorf("Which = %s, want %s", ve.Which, WhichLoad)
	}
}
