package ntfsmft

import (
	"bytes"
	"reflect"

	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

const (
	minRecordHeaderSize = 48
)

var (
	signatureFile = []byte("FILE")
	signatureBaad = []byte("BAAD")
)

// RecordFlag is the bit-mask "Flags" field of an MFT record header.
type RecordFlag uint16

const (
	RecordFlagInUse       RecordFlag = 0x0001
	RecordFlagIsDirectory RecordFlag = 0x0002
)

// Is reports whether the flag's bit is set.
func (f RecordFlag) Is(c RecordFlag) bool {
	return f&c == c
}

// recordHeaderLayout is the fixed 48-byte structure restruct unpacks; higher-
// level fields (signature string, reference split) are derived by
// DecodeRecordHeader.
type recordHeaderLayout struct {
	Signature             [4]byte
	UpdateSequenceOffset   uint16
	UpdateSequenceSize     uint16
	LogFileSequenceNumber  uint64
	SequenceNumber         uint16
	HardLinkCount          uint16
	FirstAttributeOffset   uint16
	Flags                  uint16
	RealSize               uint32
	AllocatedSize          uint32
	BaseRecordReference    uint64
	NextAttributeId        uint16
	Padding                uint16
	RecordNumber           uint32
}

// MftRecordHeader is the decoded 48-byte MFT record header.
type MftRecordHeader struct {
	Signature             string
	UpdateSequenceOffset   uint16
	UpdateSequenceSize     uint16
	LogFileSequenceNumber  uint64
	SequenceNumber         uint16
	HardLinkCount          uint16
	FirstAttributeOffset   uint16
	Flags                  RecordFlag
	RealSize               uint32
	AllocatedSize          uint32
	BaseRecordReference    uint64
}

// IsInUse reports whether the in-use bit is set.
func (h MftRecordHeader) IsInUse() bool { return h.Flags.Is(RecordFlagInUse) }

// IsDirectory reports whether the directory bit is set.
func (h MftRecordHeader) IsDirectory() bool { return h.Flags.Is(RecordFlagIsDirectory) }

// BaseEntryNumber returns the 48-bit entry number half of BaseRecordReference.
func (h MftRecordHeader) BaseEntryNumber() uint64 { return h.BaseRecordReference & 0xFFFFFFFFFFFF }

// BaseSequenceNumber returns the 16-bit sequence half of BaseRecordReference.
func (h MftRecordHeader) BaseSequenceNumber() uint16 { return uint16(h.BaseRecordReference >> 48) }

// IsExtent reports whether this record is an extent of another (base)
// record, i.e. BaseRecordReference is non-zero.
func (h MftRecordHeader) IsExtent() bool { return h.BaseRecordReference != 0 }

// DecodeRecordHeader decodes the 48-byte MFT record header at the front of
// data and checks its invariants. recordSize is the whole
// record's declared on-disk size (used to bound RealSize/FirstAttributeOffset).
func DecodeRecordHeader(data []byte, recordSize uint32) (h MftRecordHeader, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("record-header decode panic: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	if len(data) < minRecordHeaderSize {
		log.Panicf("record buffer too small for header: (%d) < (%d)", len(data), minRecordHeaderSize)
	}

	sig := data[0:4]
	isFile := bytes.Equal(sig, signatureFile)
	isBaad := bytes.Equal(sig, signatureBaad)
	if !isFile && !isBaad {
		log.Panicf("unrecognized record signature: [% x]", sig)
	}

	var layout recordHeaderLayout
	err = restruct.Unpack(data[:minRecordHeaderSize], defaultEncoding, &layout)
	log.PanicIf(err)

	signature := "FILE"
	if isBaad {
		signature = "BAAD"
	}

	h = MftRecordHeader{
		Signature:            signature,
		UpdateSequenceOffset: layout.UpdateSequenceOffset,
		UpdateSequenceSize:   layout.UpdateSequenceSize,
		LogFileSequenceNumber: layout.LogFileSequenceNumber,
		SequenceNumber:       layout.SequenceNumber,
		HardLinkCount:        layout.HardLinkCount,
		FirstAttributeOffset: layout.FirstAttributeOffset,
		Flags:                RecordFlag(layout.Flags),
		RealSize:             layout.RealSize,
		AllocatedSize:        layout.AllocatedSize,
		BaseRecordReference:  layout.BaseRecordReference,
	}

	if err := h.checkInvariants(recordSize); err != nil {
		log.PanicIf(err)
	}

	return h, nil
}

// checkInvariants enforces the record header's structural invariants.
func (h MftRecordHeader) checkInvariants(recordSize uint32) error {
	if h.RealSize < minRecordHeaderSize {
		return log.Errorf("real_size (%d) smaller than minimum header size (%d)", h.RealSize, minRecordHeaderSize)
	}

	if recordSize != 0 {
		if uint32(h.FirstAttributeOffset) >= recordSize {
			return log.Errorf("first_attribute_offset (%d) >= record_size (%d)", h.FirstAttributeOffset, recordSize)
		}

		if h.RealSize > recordSize {
			return log.Errorf("real_size (%d) > record_size (%d)", h.RealSize, recordSize)
		}
	}

	if uint32(h.FirstAttributeOffset)+8 > h.RealSize {
		return log.Errorf("first_attribute_offset+8 (%d) > real_size (%d)", uint32(h.FirstAttributeOffset)+8, h.RealSize)
	}

	return nil
}
