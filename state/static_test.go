package state

import (
	"bytes"
	"testing"
)

func TestNewStaticHostStateIsLongMode(t *testing.T) {
	h := NewStaticHostState()
	if !h.IA32e() {
		t.Error("expected host to report IA32e() true")
	}
	const pg = uint64(1) << 31
	if h.CR0()&pg == 0 {
		t.Error("expected host CR0.PG set")
	}
}

func TestNewStaticGuestStateBuildsWalkableCR3(t *testing.T) {
	g := NewStaticGuestState()
	if g.CR3() != 0 {
		t.Fatalf("CR3() = %#x, want 0 (single-PDE identity map)", g.CR3())
	}
	pde := uint32(g.pageDirectory[0]) | uint32(g.pageDirectory[1])<<8 |
		uint32(g.pageDirectory[2])<<16 | uint32(g.pageDirectory[3])<<24
	if pde&pdePageSize == 0 {
		t.Error("expected PDE to have the 4 MiB page-size bit set")
	}
	if pde&ptePresent == 0 {
		t.Error("expected PDE to have the present bit set")
	}
}

func TestStaticSnapshotDumpWritesSummary(t *testing.T) {
	var buf bytes.Buffer
	NewStaticGuestState().Dump(&buf)
	if buf.Len() == 0 {
		t.Error("expected Dump to write something")
	}
}

func TestFlatSegmentLimitIsMaximal(t *testing.T) {
	seg := flatSegment(0, true)
	if seg.Limit != 0xFFFFFFFF {
		t.Errorf("flat segment limit = %#x, want 0xFFFFFFFF (4 GiB granular)", seg.Limit)
	}
}
