package ntfsmft

import "testing"

func TestDecodeRecordHeaderValid(t *testing.T) {
	raw := buildRecordHeader("FILE", 48, 3, uint16(RecordFlagInUse), 56, 1024, 1024, 0)
	raw = append(raw, make([]byte, 1024-len(raw))...)

	h, err := DecodeRecordHeader(raw, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !h.IsInUse() {
		t.Fatalf("expected in-use flag to be set")
	}

	if h.IsDirectory() {
		t.Fatalf("did not expect directory flag to be set")
	}

	if h.IsExtent() {
		t.Fatalf("did not expect record to be an extent")
	}
}

func TestDecodeRecordHeaderBaad(t *testing.T) {
	raw := buildRecordHeader("BAAD", 48, 3, 0, 56, 1024, 1024, 0)
	raw = append(raw, make([]byte, 1024-len(raw))...)

	h, err := DecodeRecordHeader(raw, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.Signature != "BAAD" {
		t.Fatalf("wrong signature: [%s]", h.Signature)
	}
}

func TestDecodeRecordHeaderBadSignature(t *testing.T) {
	raw := buildRecordHeader("XXXX", 48, 3, 0, 56, 1024, 1024, 0)
	raw = append(raw, make([]byte, 1024-len(raw))...)

	if _, err := DecodeRecordHeader(raw, 1024); err == nil {
		t.Fatalf("expected error for unrecognized signature")
	}
}

func TestDecodeRecordHeaderFirstAttributeOffsetBoundary(t *testing.T) {
	// first_attribute_offset == real_size - 8 is accepted.
	raw := buildRecordHeader("FILE", 48, 3, 0, 1016, 1024, 1024, 0)
	raw = append(raw, make([]byte, 1024-len(raw))...)

	if _, err := DecodeRecordHeader(raw, 1024); err != nil {
		t.Fatalf("unexpected error at boundary: %v", err)
	}

	// first_attribute_offset == real_size - 7 is rejected.
	raw2 := buildRecordHeader("FILE", 48, 3, 0, 1017, 1024, 1024, 0)
	raw2 = append(raw2, make([]byte, 1024-len(raw2))...)

	if _, err := DecodeRecordHeader(raw2, 1024); err == nil {
		t.Fatalf("expected error one byte past the boundary")
	}
}

func TestDecodeRecordHeaderExtentReference(t *testing.T) {
	baseRef := uint64(42) | uint64(7)<<48
	raw := buildRecordHeader("FILE", 48, 3, 0, 56, 1024, 1024, baseRef)
	raw = append(raw, make([]byte, 1024-len(raw))...)

	h, err := DecodeRecordHeader(raw, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !h.IsExtent() {
		t.Fatalf("expected record to be an extent")
	}

	if h.BaseEntryNumber() != 42 {
		t.Fatalf("wrong base entry number: (%d)", h.BaseEntryNumber())
	}

	if h.BaseSequenceNumber() != 7 {
		t.Fatalf("wrong base sequence number: (%d)", h.BaseSequenceNumber())
	}
}
