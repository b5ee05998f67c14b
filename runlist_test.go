package ntfsmft

import "testing"

func TestDecodeRunlistSingleRun(t *testing.T) {
	// Header 0x31: length field 1 byte, offset field 3 bytes.
	// length = 0x0C (12 clusters), lcn delta = 0x000123 (little-endian).
	raw := []byte{0x31, 0x0C, 0x23, 0x01, 0x00, 0x00}

	runs, err := DecodeRunlist(raw, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs) != 1 {
		t.Fatalf("wrong run count: (%d)", len(runs))
	}

	if runs[0].ClusterCount != 12 {
		t.Fatalf("wrong cluster count: (%d)", runs[0].ClusterCount)
	}

	if runs[0].StartLcn != 0x123 {
		t.Fatalf("wrong start LCN: (%d)", runs[0].StartLcn)
	}

	if runs[0].IsSparse {
		t.Fatalf("did not expect sparse run")
	}
}

func TestDecodeRunlistSparseRun(t *testing.T) {
	// Header 0x01: length field 1 byte, offset field 0 bytes (sparse).
	raw := []byte{0x01, 0x05, 0x00}

	runs, err := DecodeRunlist(raw, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs) != 1 {
		t.Fatalf("wrong run count: (%d)", len(runs))
	}

	if !runs[0].IsSparse {
		t.Fatalf("expected sparse run")
	}

	if runs[0].ClusterCount != 5 {
		t.Fatalf("wrong cluster count: (%d)", runs[0].ClusterCount)
	}
}

func TestDecodeRunlistNegativeDelta(t *testing.T) {
	// First run establishes current_lcn = 1000, second run has a negative
	// delta whose high byte is 0x80-range, sign-extending to a negative
	// number and decreasing current_lcn.
	raw := []byte{
		0x31, 0x0A, 0xE8, 0x03, 0x00, // length=10, delta=+1000 -> lcn=1000
		0x31, 0x05, 0x9C, 0xFF, 0xFF, // length=5, delta=-100 -> lcn=900
		0x00,
	}

	runs, err := DecodeRunlist(raw, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs) != 2 {
		t.Fatalf("wrong run count: (%d)", len(runs))
	}

	if runs[0].StartLcn != 1000 {
		t.Fatalf("wrong first LCN: (%d)", runs[0].StartLcn)
	}

	if runs[1].StartLcn != 900 {
		t.Fatalf("wrong second LCN: (%d)", runs[1].StartLcn)
	}
}

func TestDecodeRunlistNegativeLcnRejected(t *testing.T) {
	// Single run whose delta would bring current_lcn below zero.
	raw := []byte{0x31, 0x05, 0x9C, 0xFF, 0xFF, 0x00} // delta = -100, starting from 0
	if _, err := DecodeRunlist(raw, 0); err == nil {
		t.Fatalf("expected error for negative absolute LCN")
	}
}

func TestDecodeRunlistZeroLengthFieldRejected(t *testing.T) {
	raw := []byte{0x10, 0x01} // length field size 0, offset field size 1
	if _, err := DecodeRunlist(raw, 0); err == nil {
		t.Fatalf("expected error for zero-length length-field")
	}
}

func TestDecodeRunlistTerminatesAtZero(t *testing.T) {
	raw := []byte{0x31, 0x0A, 0xE8, 0x03, 0x00, 0x00, 0xFF, 0xFF}

	runs, err := DecodeRunlist(raw, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs) != 1 {
		t.Fatalf("expected iteration to stop at the terminator, got (%d) runs", len(runs))
	}
}
