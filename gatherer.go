package ntfsmft

import (
	"github.com/dsoprea/go-logging"
)

// RecordSource fetches a fixed-size record by logical entry number, used by
// the gatherer to pull extent records without disturbing the parser's
// sequential read position. An io.ReaderAt-backed implementation gets
// this for free, since ReadAt never moves the underlying file's cursor.
type RecordSource interface {
	ReadRecordAt(entry uint64) ([]byte, error)
}

// GatheredRecord is a base record plus every extent record reachable from
// its (resident) $ATTRIBUTE_LIST.
type GatheredRecord struct {
	BaseEntry      uint64
	BaseHeader     MftRecordHeader
	Records        [][]byte
	ComplexExtents bool
}

// maxAttributeListEntries bounds how many extent pointers a single resident
// $ATTRIBUTE_LIST is allowed to carry before it is treated as corruption;
// real filesystems never approach this.
const maxAttributeListEntries = 4096

// GatherRecord assembles the base record at entry plus all of its extents.
// baseRecord is the already-fixed-up raw record bytes. bytesPerSector is
// the volume's physical sector size, needed to fix up each fetched extent.
func GatherRecord(entry uint64, baseHeader MftRecordHeader, baseRecord []byte, recordSize uint32, bytesPerSector uint32, source RecordSource) (GatheredRecord, error) {
	g := GatheredRecord{
		BaseEntry:  entry,
		BaseHeader: baseHeader,
		Records:    [][]byte{baseRecord},
	}

	var extentEntries []uint64

	err := IterateAttributes(baseRecord, int(baseHeader.FirstAttributeOffset), func(h AttributeHeader, offset int) error {
		if h.Type != AttributeTypeAttributeList {
			return nil
		}

		if h.NonResident {
			g.ComplexExtents = true
			return nil
		}

		value, err := h.Value(baseRecord, offset)
		if err != nil {
			return err
		}

		entries, err := DecodeAttributeList(value)
		if err != nil {
			return err
		}

		if len(entries) > maxAttributeListEntries {
			return log.Errorf("$ATTRIBUTE_LIST on entry (%d) declares implausible entry count (%d)", entry, len(entries))
		}

		for _, e := range entries {
			if e.ReferenceEntry == entry {
				// Self-reference; would otherwise loop.
				continue
			}

			extentEntries = append(extentEntries, e.ReferenceEntry)
		}

		return nil
	})
	if err != nil {
		return GatheredRecord{}, err
	}

	seen := map[uint64]bool{entry: true}

	for _, extentEntry := range extentEntries {
		if seen[extentEntry] {
			continue
		}

		seen[extentEntry] = true

		raw, err := source.ReadRecordAt(extentEntry)
		if err != nil {
			continue
		}

		header, err := DecodeRecordHeader(raw, recordSize)
		if err != nil {
			continue
		}

		if _, err := ApplyFixup(raw, header.UpdateSequenceOffset, header.UpdateSequenceSize, bytesPerSector); err != nil {
			continue
		}

		if header.BaseEntryNumber() != entry {
			// Not actually our extent (stale/reallocated); ignore.
			continue
		}

		g.Records = append(g.Records, raw)
	}

	return g, nil
}

// BestFileName chooses the $FN attribute to use for naming/path-building
// across a gathered record's attributes, preferring the Win32 namespace
// over other namespaces over none.
func BestFileName(records [][]byte, headers []MftRecordHeader) (FileNameAttribute, bool) {
	var best *FileNameAttribute
	bestScore := -1

	for i, raw := range records {
		_ = IterateAttributes(raw, int(headers[i].FirstAttributeOffset), func(h AttributeHeader, offset int) error {
			if h.Type != AttributeTypeFileName || h.NonResident {
				return nil
			}

			value, err := h.Value(raw, offset)
			if err != nil {
				return nil
			}

			fn, err := DecodeFileNameAttribute(value)
			if err != nil {
				return nil
			}

			score := 0
			if fn.Namespace == FileNameNamespaceWin32 || fn.Namespace == FileNameNamespaceWin32AndDos {
				score = 2
			} else {
				score = 1
			}

			if score > bestScore {
				bestScore = score
				fnCopy := fn
				best = &fnCopy
			}

			return nil
		})
	}

	if best == nil {
		return FileNameAttribute{}, false
	}

	return *best, true
}

// LatestStandardInformation returns the $STANDARD_INFORMATION found across
// a gathered record's attributes (there is normally exactly one, on the
// base record, but extents are scanned too for robustness).
func LatestStandardInformation(records [][]byte, headers []MftRecordHeader) (StandardInformation, bool) {
	for i, raw := range records {
		var found *StandardInformation

		_ = IterateAttributes(raw, int(headers[i].FirstAttributeOffset), func(h AttributeHeader, offset int) error {
			if h.Type != AttributeTypeStandardInformation || h.NonResident {
				return nil
			}

			value, err := h.Value(raw, offset)
			if err != nil {
				return nil
			}

			si, err := DecodeStandardInformation(value)
			if err != nil {
				return nil
			}

			found = &si
			return nil
		})

		if found != nil {
			return *found, true
		}
	}

	return StandardInformation{}, false
}
