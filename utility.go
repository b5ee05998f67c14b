package ntfsmft

import (
	"time"
	"unicode/utf16"
)

// decodeUtf16Name decodes `charCount` little-endian UTF-16 characters
// starting at the front of raw into a Go string. $FILE_NAME names and ADS
// names are stored this way; NUL padding (if any) is skipped.
func decodeUtf16Name(raw []byte, charCount int) string {
	units := make([]uint16, 0, charCount)
	for i := 0; i < charCount; i++ {
		lo := uint16(raw[i*2])
		hi := uint16(raw[i*2+1])

		unit := hi<<8 | lo
		if unit == 0 {
			continue
		}

		units = append(units, unit)
	}

	return string(utf16.Decode(units))
}

// filetimeEpochOffset100ns is the number of 100ns intervals between the
// FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01).
const filetimeEpochOffset100ns = 116444736000000000

// filetimeToTime converts an NTFS FILETIME (100ns intervals since
// 1601-01-01) into a UTC time.Time. Values older than the Unix epoch
// saturate to the epoch rather than going negative.
func filetimeToTime(filetime uint64) time.Time {
	var since100ns uint64
	if filetime > filetimeEpochOffset100ns {
		since100ns = filetime - filetimeEpochOffset100ns
	}

	seconds := int64(since100ns / 10_000_000)
	nanoseconds := int64((since100ns % 10_000_000) * 100)

	return time.Unix(seconds, nanoseconds).UTC()
}
