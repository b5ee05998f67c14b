package ntfsmft

import (
	"bufio"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/dsoprea/go-logging"
)

// ParseOptions configures the parser driver, including the `--data` flag
// that controls whether resident unnamed $DATA content is extracted inline.
// A resident Zone.Identifier stream is extracted whether or not it is set.
type ParseOptions struct {
	Meta               VolumeMeta
	ExtractResidentData bool
	Rules              []Rule
	TimestompThreshold time.Duration
	DrivePrefix        string
}

// readerAtSource adapts an io.ReaderAt into a RecordSource; ReadAt never
// perturbs the underlying file's sequential cursor, which is how the main
// parse loop and extent fetches coexist without an explicit save/restore.
type readerAtSource struct {
	r          io.ReaderAt
	recordSize uint32
}

func (s readerAtSource) ReadRecordAt(entry uint64) ([]byte, error) {
	buf := make([]byte, s.recordSize)

	_, err := s.r.ReadAt(buf, int64(entry)*int64(s.recordSize))
	if err != nil && err != io.EOF {
		return nil, log.Wrap(err)
	}

	return buf, nil
}

// ParseMft streams the raw $MFT at r (opened for sequential + random access,
// e.g. an *os.File), emitting one MftEntry per accepted logical record to
// emit. It performs two passes: pass 1 builds the path table by decoding
// every record once; pass 2 re-streams, gathers, and emits.
func ParseMft(r io.ReaderAt, size int64, opts ParseOptions, emit func(MftEntry) error) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("parse panic: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	recordSize := opts.Meta.MftRecordSize
	if recordSize == 0 {
		recordSize = defaultVolumeMeta().MftRecordSize
	}

	bytesPerSector := uint32(opts.Meta.BytesPerSector)
	if bytesPerSector == 0 {
		bytesPerSector = uint32(defaultVolumeMeta().BytesPerSector)
	}

	source := readerAtSource{r: r, recordSize: recordSize}
	recordCount := uint64(size) / uint64(recordSize)

	pathBuilder := NewPathBuilder()

	// Pass 1: populate the path table and the per-entry sequence numbers
	// needed by pass 2's orphan/reallocation check.
	for entry := uint64(0); entry < recordCount; entry++ {
		raw, err := source.ReadRecordAt(entry)
		if err != nil {
			continue
		}

		header, err := DecodeRecordHeader(raw, recordSize)
		if err != nil || header.Signature == "BAAD" || !header.IsInUse() || header.IsExtent() {
			continue
		}

		if _, err := ApplyFixup(raw, header.UpdateSequenceOffset, header.UpdateSequenceSize, bytesPerSector); err != nil {
			continue
		}

		pathBuilder.SetSequence(entry, header.SequenceNumber)

		var fn FileNameAttribute
		var haveFn bool

		_ = IterateAttributes(raw, int(header.FirstAttributeOffset), func(h AttributeHeader, offset int) error {
			if h.Type != AttributeTypeFileName || h.NonResident {
				return nil
			}

			value, err := h.Value(raw, offset)
			if err != nil {
				return nil
			}

			candidate, err := DecodeFileNameAttribute(value)
			if err != nil {
				return nil
			}

			if !haveFn || candidate.Namespace == FileNameNamespaceWin32 || candidate.Namespace == FileNameNamespaceWin32AndDos {
				fn = candidate
				haveFn = true
			}

			return nil
		})

		if !haveFn {
			continue
		}

		var siCreation time.Time

		_ = IterateAttributes(raw, int(header.FirstAttributeOffset), func(h AttributeHeader, offset int) error {
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

			siCreation = filetimeToTime(si.CreationTime)
			return nil
		})

		pathBuilder.Observe(entry, fn, siCreation)
		pathBuilder.SetSequence(entry, header.SequenceNumber)
	}

	volumeBirth := pathBuilder.VolumeBirth()

	// Pass 2: sequential re-stream through a buffered reader, gather each
	// accepted base record, and emit the enriched entry.
	seqReader := bufio.NewReaderSize(io.NewSectionReader(r, 0, size), int(recordSize)*4)
	recordBuf := make([]byte, recordSize)

	for entry := uint64(0); entry < recordCount; entry++ {
		if _, err := io.ReadFull(seqReader, recordBuf); err != nil {
			break
		}

		raw := append([]byte(nil), recordBuf...)

		header, err := DecodeRecordHeader(raw, recordSize)
		if err != nil || (header.Signature != "FILE" && header.Signature != "BAAD") || header.IsExtent() {
			continue
		}

		fixupResult, err := ApplyFixup(raw, header.UpdateSequenceOffset, header.UpdateSequenceSize, bytesPerSector)
		if err != nil {
			continue
		}

		gathered, err := GatherRecord(entry, header, raw, recordSize, bytesPerSector, source)
		if err != nil {
			continue
		}

		headers := make([]MftRecordHeader, len(gathered.Records))
		headers[0] = header
		for i := 1; i < len(gathered.Records); i++ {
			h, err := DecodeRecordHeader(gathered.Records[i], recordSize)
			if err != nil {
				continue
			}
			headers[i] = h
		}

		mftEntry := buildEntry(entry, header, gathered, headers, fixupResult, pathBuilder, volumeBirth, opts)

		if err := emit(mftEntry); err != nil {
			return err
		}
	}

	return nil
}

// zoneIdentifierStreamName is the ADS name Windows uses to mark
// downloaded files (Mark-of-the-Web).
const zoneIdentifierStreamName = "Zone.Identifier"

func buildEntry(entry uint64, header MftRecordHeader, gathered GatheredRecord, headers []MftRecordHeader, fixupResult FixupResult, pathBuilder *PathBuilder, volumeBirth time.Time, opts ParseOptions) MftEntry {
	e := MftEntry{
		EntryNumber:    entry,
		SequenceNumber: header.SequenceNumber,
		InUse:          header.IsInUse(),
		IsDirectory:    header.IsDirectory(),
		TornWrite:      fixupResult == FixupTornWrite,
		ComplexExtents: gathered.ComplexExtents,
	}

	fn, haveFn := BestFileName(gathered.Records, headers)
	if haveFn {
		e.FileName = fn.Name
		e.ParentEntryNumber = fn.ParentDirectory
		e.ParentPath = pathBuilder.Resolve(fn.ParentDirectory, fn.ParentSequence)
		e.FullPath = buildFullPath(opts.DrivePrefix, e.ParentPath, e.FileName)

		ts := timestampSetFromFileName(fn)
		e.FileNameTimestamps = &ts
		e.FileSize = fn.RealSize
	}

	si, haveSi := LatestStandardInformation(gathered.Records, headers)
	if haveSi {
		ts := timestampSetFromStandardInformation(si)
		e.StandardInformation = &ts
	}

	if haveFn && haveSi {
		timestomped, copied, uSecZeros := EvaluateHeuristics(*e.StandardInformation, *e.FileNameTimestamps, volumeBirth, opts.TimestompThreshold)
		e.Timestomped = timestomped
		e.Copied = copied
		e.USecZeros = uSecZeros
	}

	for i, raw := range gathered.Records {
		_ = IterateAttributes(raw, int(headers[i].FirstAttributeOffset), func(h AttributeHeader, offset int) error {
			if h.Type != AttributeTypeData {
				return nil
			}

			name, err := h.Name(raw, offset)
			if err != nil {
				return nil
			}

			if name != "" {
				e.HasAds = true
			}

			if name == zoneIdentifierStreamName && !h.NonResident {
				value, err := h.Value(raw, offset)
				if err == nil {
					e.ZoneIdentifier = extractPrintable(value)
				}
			}

			if name == "" {
				if !h.NonResident {
					if e.FileSize == 0 {
						e.FileSize = uint64(h.ValueLength)
					}

					if opts.ExtractResidentData {
						value, err := h.Value(raw, offset)
						if err == nil {
							e.ResidentData = extractPrintable(value)
						}
					}
				} else if e.FileSize == 0 {
					e.FileSize = h.RealSize
				}
			}

			return nil
		})
	}

	if len(opts.Rules) > 0 {
		e.FitsRules = MatchAny(opts.Rules, e.FullPath)
	}

	return e
}

func buildFullPath(drivePrefix, parentPath, fileName string) string {
	var sb strings.Builder
	sb.WriteString(drivePrefix)
	sb.WriteString(parentPath)

	if !strings.HasSuffix(parentPath, `\`) {
		sb.WriteString(`\`)
	}

	sb.WriteString(fileName)

	return sb.String()
}

// extractPrintable renders raw bytes as text for JSONL embedding, the way
// Zone.Identifier and inline resident $DATA content get surfaced: printable
// ASCII bytes plus \n, \r and \t are kept and every other byte is dropped.
// No UTF-16 decoding is done; for UTF-16LE text the zero bytes are dropped
// like any other non-printable byte, and non-ASCII characters are lost.
func extractPrintable(raw []byte) string {
	var sb strings.Builder

	for _, b := range raw {
		if b == '\n' || b == '\r' || b == '\t' || (b >= 0x20 && b < 0x7F) {
			sb.WriteByte(b)
		}
	}

	return sb.String()
}
