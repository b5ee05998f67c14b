package ntfsmft

import (
	"reflect"

	"github.com/dsoprea/go-logging"
)

// AttributeType is the on-disk attribute-type-code of an MFT attribute.
type AttributeType uint32

const (
	AttributeTypeStandardInformation AttributeType = 0x10
	AttributeTypeAttributeList       AttributeType = 0x20
	AttributeTypeFileName            AttributeType = 0x30
	AttributeTypeData                AttributeType = 0x80
	AttributeTypeEnd                 AttributeType = 0xFFFFFFFF
)

// AttributeHeader is the common header every MFT attribute starts with,
// before the resident/non-resident-specific fields.
type AttributeHeader struct {
	Type       AttributeType
	Length     uint32
	NonResident bool
	NameLength  uint8
	NameOffset  uint16
	Flags       uint16
	AttributeId uint16

	// Resident-only.
	ValueLength uint32
	ValueOffset uint16

	// Non-resident-only.
	StartingVcn       uint64
	LastVcn           uint64
	RunlistOffset     uint16
	AllocatedSize     uint64
	RealSize          uint64
	InitializedSize   uint64
}

// Value returns the resident value bytes of the attribute, given the full
// record buffer and this header's offset within it (attrOffset is the start
// of the attribute, matching where Length/Type were read from).
func (h AttributeHeader) Value(record []byte, attrOffset int) ([]byte, error) {
	if h.NonResident {
		return nil, log.Errorf("attribute at offset (%d) is non-resident, has no inline value", attrOffset)
	}

	start := attrOffset + int(h.ValueOffset)
	end := start + int(h.ValueLength)
	if start < 0 || end > len(record) || end < start {
		return nil, log.Errorf("resident value [%d:%d] out of bounds of record of length (%d)", start, end, len(record))
	}

	return record[start:end], nil
}

// Runlist decodes the non-resident data-run list for this attribute.
func (h AttributeHeader) Runlist(record []byte, attrOffset int) ([]DataRun, error) {
	if !h.NonResident {
		return nil, log.Errorf("attribute at offset (%d) is resident, has no runlist", attrOffset)
	}

	start := attrOffset + int(h.RunlistOffset)
	end := attrOffset + int(h.Length)
	if start < 0 || end > len(record) || end < start {
		return nil, log.Errorf("runlist [%d:%d] out of bounds of record of length (%d)", start, end, len(record))
	}

	return DecodeRunlist(record[start:end], h.StartingVcn)
}

// Name decodes this attribute's name (e.g. an alternate-data-stream name),
// or "" if NameLength is zero.
func (h AttributeHeader) Name(record []byte, attrOffset int) (string, error) {
	if h.NameLength == 0 {
		return "", nil
	}

	start := attrOffset + int(h.NameOffset)
	end := start + int(h.NameLength)*2
	if start < 0 || end > len(record) || end < start {
		return "", log.Errorf("attribute name [%d:%d] out of bounds of record of length (%d)", start, end, len(record))
	}

	return decodeUtf16Name(record[start:end], int(h.NameLength)), nil
}

const minAttributeHeaderSize = 16

// IterateAttributes walks the attribute stream starting at firstOffset
// within record, calling visit for each decoded header along with its byte
// offset. Iteration stops at the 0xFFFFFFFF end marker, the end of record,
// or the first error returned by visit.
func IterateAttributes(record []byte, firstOffset int, visit func(h AttributeHeader, offset int) error) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("attribute iteration panic: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	pos := firstOffset
	for pos >= 0 && pos+4 <= len(record) {
		typeCode := AttributeType(defaultEncoding.Uint32(record[pos : pos+4]))
		if typeCode == AttributeTypeEnd {
			break
		}

		if pos+minAttributeHeaderSize > len(record) {
			log.Panicf("attribute header at offset (%d) runs past end of record (len %d)", pos, len(record))
		}

		length := defaultEncoding.Uint32(record[pos+4 : pos+8])
		if length < minAttributeHeaderSize {
			log.Panicf("attribute at offset (%d) declares implausible length (%d)", pos, length)
		}

		if pos+int(length) > len(record) {
			log.Panicf("attribute at offset (%d) length (%d) runs past end of record (len %d)", pos, length, len(record))
		}

		nonResident := record[pos+8] != 0
		nameLength := record[pos+9]
		nameOffset := defaultEncoding.Uint16(record[pos+10 : pos+12])
		flags := defaultEncoding.Uint16(record[pos+12 : pos+14])
		attributeId := defaultEncoding.Uint16(record[pos+14 : pos+16])

		h := AttributeHeader{
			Type:        typeCode,
			Length:      length,
			NonResident: nonResident,
			NameLength:  nameLength,
			NameOffset:  nameOffset,
			Flags:       flags,
			AttributeId: attributeId,
		}

		if nonResident {
			if pos+64 > len(record) {
				log.Panicf("non-resident attribute at offset (%d) header runs past end of record", pos)
			}

			h.StartingVcn = defaultEncoding.Uint64(record[pos+16 : pos+24])
			h.LastVcn = defaultEncoding.Uint64(record[pos+24 : pos+32])
			h.RunlistOffset = defaultEncoding.Uint16(record[pos+32 : pos+34])
			h.AllocatedSize = defaultEncoding.Uint64(record[pos+40 : pos+48])
			h.RealSize = defaultEncoding.Uint64(record[pos+48 : pos+56])
			h.InitializedSize = defaultEncoding.Uint64(record[pos+56 : pos+64])
		} else {
			if pos+24 > len(record) {
				log.Panicf("resident attribute at offset (%d) header runs past end of record", pos)
			}

			h.ValueLength = defaultEncoding.Uint32(record[pos+16 : pos+20])
			h.ValueOffset = defaultEncoding.Uint16(record[pos+20 : pos+22])
		}

		if err := visit(h, pos); err != nil {
			return err
		}

		pos += int(length)
	}

	return nil
}

// StandardInformation is the decoded $STANDARD_INFORMATION (0x10) value.
type StandardInformation struct {
	CreationTime       uint64
	ModificationTime   uint64
	MftModificationTime uint64
	AccessTime         uint64
	FileAttributes     uint32
}

// DecodeStandardInformation decodes a $STANDARD_INFORMATION resident value.
func DecodeStandardInformation(value []byte) (si StandardInformation, err error) {
	if len(value) < 48 {
		return si, log.Errorf("$STANDARD_INFORMATION value too small: (%d) < 48", len(value))
	}

	si.CreationTime = defaultEncoding.Uint64(value[0:8])
	si.ModificationTime = defaultEncoding.Uint64(value[8:16])
	si.MftModificationTime = defaultEncoding.Uint64(value[16:24])
	si.AccessTime = defaultEncoding.Uint64(value[24:32])
	si.FileAttributes = defaultEncoding.Uint32(value[32:36])

	return si, nil
}

// FileNameNamespace is the NTFS $FILE_NAME namespace byte.
type FileNameNamespace uint8

const (
	FileNameNamespacePosix      FileNameNamespace = 0
	FileNameNamespaceWin32      FileNameNamespace = 1
	FileNameNamespaceDos        FileNameNamespace = 2
	FileNameNamespaceWin32AndDos FileNameNamespace = 3
)

// FileNameAttribute is the decoded $FILE_NAME (0x30) value.
type FileNameAttribute struct {
	ParentDirectory    uint64
	ParentSequence     uint16
	CreationTime       uint64
	ModificationTime   uint64
	MftModificationTime uint64
	AccessTime         uint64
	AllocatedSize      uint64
	RealSize           uint64
	FileAttributes     uint32
	Namespace          FileNameNamespace
	Name               string
}

const minFileNameAttributeSize = 66

// DecodeFileNameAttribute decodes a $FILE_NAME resident value.
func DecodeFileNameAttribute(value []byte) (fn FileNameAttribute, err error) {
	if len(value) < minFileNameAttributeSize {
		return fn, log.Errorf("$FILE_NAME value too small: (%d) < (%d)", len(value), minFileNameAttributeSize)
	}

	parentRef := defaultEncoding.Uint64(value[0:8])
	fn.ParentDirectory = parentRef & 0xFFFFFFFFFFFF
	fn.ParentSequence = uint16(parentRef >> 48)

	fn.CreationTime = defaultEncoding.Uint64(value[8:16])
	fn.ModificationTime = defaultEncoding.Uint64(value[16:24])
	fn.MftModificationTime = defaultEncoding.Uint64(value[24:32])
	fn.AccessTime = defaultEncoding.Uint64(value[32:40])
	fn.AllocatedSize = defaultEncoding.Uint64(value[40:48])
	fn.RealSize = defaultEncoding.Uint64(value[48:56])
	fn.FileAttributes = defaultEncoding.Uint32(value[56:60])

	nameLength := int(value[64])
	fn.Namespace = FileNameNamespace(value[65])

	nameStart := 66
	nameEnd := nameStart + nameLength*2
	if nameEnd > len(value) {
		return fn, log.Errorf("$FILE_NAME name [%d:%d] out of bounds of value of length (%d)", nameStart, nameEnd, len(value))
	}

	fn.Name = decodeUtf16Name(value[nameStart:nameEnd], nameLength)

	return fn, nil
}

// AttributeListEntry is one decoded entry of an $ATTRIBUTE_LIST (0x20)
// value: a pointer saying "attribute Type, possibly named Name, lives in
// the MFT record identified by ReferenceEntry/ReferenceSeq".
type AttributeListEntry struct {
	Type           AttributeType
	StartingVcn    uint64
	ReferenceEntry uint64
	ReferenceSeq   uint16
	AttributeId    uint16
	Name           string
}

// DecodeAttributeList decodes every entry of an $ATTRIBUTE_LIST value.
func DecodeAttributeList(value []byte) (entries []AttributeListEntry, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("attribute-list decode panic: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	pos := 0
	for pos < len(value) {
		if pos+26 > len(value) {
			log.Panicf("attribute-list entry at offset (%d) header runs past end of value (len %d)", pos, len(value))
		}

		typeCode := AttributeType(defaultEncoding.Uint32(value[pos : pos+4]))
		entryLength := defaultEncoding.Uint16(value[pos+4 : pos+6])
		nameLength := value[pos+6]
		nameOffset := value[pos+7]
		startingVcn := defaultEncoding.Uint64(value[pos+8 : pos+16])
		reference := defaultEncoding.Uint64(value[pos+16 : pos+24])
		attributeId := defaultEncoding.Uint16(value[pos+24 : pos+26])

		if entryLength < 26 || pos+int(entryLength) > len(value) {
			log.Panicf("attribute-list entry at offset (%d) declares implausible length (%d)", pos, entryLength)
		}

		entry := AttributeListEntry{
			Type:           typeCode,
			StartingVcn:    startingVcn,
			ReferenceEntry: reference & 0xFFFFFFFFFFFF,
			ReferenceSeq:   uint16(reference >> 48),
			AttributeId:    attributeId,
		}

		if nameLength > 0 {
			nameStart := pos + int(nameOffset)
			nameEnd := nameStart + int(nameLength)*2
			if nameStart < 0 || nameEnd > len(value) {
				log.Panicf("attribute-list entry name [%d:%d] out of bounds of value of length (%d)", nameStart, nameEnd, len(value))
			}

			entry.Name = decodeUtf16Name(value[nameStart:nameEnd], int(nameLength))
		}

		entries = append(entries, entry)
		pos += int(entryLength)
	}

	return entries, nil
}
