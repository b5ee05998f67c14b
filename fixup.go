package ntfsmft

import (
	"reflect"

	"github.com/dsoprea/go-logging"
)

// FixupResult describes the outcome of applying a record's Update Sequence
// Array fixup protocol.
type FixupResult int

const (
	// FixupOk means every sector-end marker matched the update sequence
	// number (the USA's first value) and the original on-disk bytes were
	// restored into the sector-end.
	FixupOk FixupResult = iota

	// FixupTornWrite means at least one sector-end marker did not match
	// the update sequence number: the sector was torn mid-write. The record is still
	// usable but should be flagged.
	FixupTornWrite

	// FixupFailed means the record cannot be trusted at all: the USA
	// itself is out of bounds or the record is smaller than one sector.
	FixupFailed
)

func (r FixupResult) String() string {
	switch r {
	case FixupOk:
		return "Ok"
	case FixupTornWrite:
		return "TornWrite"
	case FixupFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ApplyFixup applies the Update Sequence Array fixup protocol to record in
// place and reports whether every sector's saved end-marker matched. record
// is mutated: each sector's final two bytes are replaced with the original
// bytes the USA saved, regardless of whether the check byte matched, since a
// torn write still means "use your best recovered copy." bytesPerSector is
// the volume's real physical sector size (from the VBR), since the sector
// stride the USA protocol operates on is not always 512 bytes.
func ApplyFixup(record []byte, usaOffset, usaSize uint16, bytesPerSector uint32) (result FixupResult, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("fixup panic: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}

			result = FixupFailed
		}
	}()

	if usaSize == 0 {
		return FixupFailed, log.Errorf("update-sequence size is zero")
	}

	if bytesPerSector == 0 {
		return FixupFailed, log.Errorf("bytes-per-sector is zero")
	}

	// usaSize counts the check value itself plus one uint16 per sector.
	sectorCount := int(usaSize) - 1
	if sectorCount <= 0 {
		return FixupFailed, log.Errorf("update-sequence size (%d) implies no sectors", usaSize)
	}

	usaEnd := int(usaOffset) + int(usaSize)*2
	if int(usaOffset) < 0 || usaEnd > len(record) {
		return FixupFailed, log.Errorf("update-sequence array [%d:%d] out of bounds of record of length (%d)", usaOffset, usaEnd, len(record))
	}

	if sectorCount*int(bytesPerSector) > len(record) {
		return FixupFailed, log.Errorf("update-sequence implies (%d) sectors but record is only (%d) bytes", sectorCount, len(record))
	}

	checkValue := record[usaOffset : usaOffset+2]

	torn := false
	for i := 0; i < sectorCount; i++ {
		sectorEnd := (i+1)*int(bytesPerSector) - 2

		if record[sectorEnd] != checkValue[0] || record[sectorEnd+1] != checkValue[1] {
			torn = true
		}

		savedOffset := int(usaOffset) + 2 + i*2
		record[sectorEnd] = record[savedOffset]
		record[sectorEnd+1] = record[savedOffset+1]
	}

	if torn {
		return FixupTornWrite, nil
	}

	return FixupOk, nil
}
