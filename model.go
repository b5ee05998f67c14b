package ntfsmft

import "time"

// TimestampSet is one attribute's four NTFS timestamps, string-formatted
// for JSONL output.
type TimestampSet struct {
	Created  time.Time `json:"Created"`
	Modified time.Time `json:"Modified"`
	MftModified time.Time `json:"MftModified"`
	Accessed time.Time `json:"Accessed"`
}

func timestampSetFromStandardInformation(si StandardInformation) TimestampSet {
	return TimestampSet{
		Created:     filetimeToTime(si.CreationTime),
		Modified:    filetimeToTime(si.ModificationTime),
		MftModified: filetimeToTime(si.MftModificationTime),
		Accessed:    filetimeToTime(si.AccessTime),
	}
}

func timestampSetFromFileName(fn FileNameAttribute) TimestampSet {
	return TimestampSet{
		Created:     filetimeToTime(fn.CreationTime),
		Modified:    filetimeToTime(fn.ModificationTime),
		MftModified: filetimeToTime(fn.MftModificationTime),
		Accessed:    filetimeToTime(fn.AccessTime),
	}
}

// MftEntry is the fully enriched record emitted per logical MFT entry.
type MftEntry struct {
	EntryNumber    uint64 `json:"EntryNumber"`
	SequenceNumber uint16 `json:"SequenceNumber"`
	InUse          bool   `json:"InUse"`
	IsDirectory    bool   `json:"IsDirectory"`

	StandardInformation *TimestampSet `json:"StandardInformation,omitempty"`
	FileNameTimestamps  *TimestampSet `json:"FileNameTimestamps,omitempty"`

	ParentEntryNumber uint64 `json:"ParentEntryNumber"`
	FileName          string `json:"FileName"`
	ParentPath        string `json:"ParentPath"`
	FullPath          string `json:"FullPath"`

	FileSize uint64 `json:"FileSize"`
	HasAds   bool   `json:"HasAds"`

	Timestomped bool `json:"Timestomped"`
	Copied      bool `json:"Copied"`
	USecZeros   bool `json:"USecZeros"`

	TornWrite      bool `json:"TornWrite"`
	ComplexExtents bool `json:"ComplexExtents"`

	FitsRules bool `json:"FitsRules"`

	ZoneIdentifier string `json:"ZoneIdentifier,omitempty"`
	ResidentData   string `json:"ResidentData,omitempty"`
}

// VolumeMeta is the sidecar metadata document the extractor writes and the
// parser consumes.
type VolumeMeta struct {
	BytesPerSector         uint16 `json:"BytesPerSector"`
	SectorsPerCluster      uint8  `json:"SectorsPerCluster"`
	BytesPerCluster        uint64 `json:"BytesPerCluster"`
	MftLcn                 uint64 `json:"MftLcn"`
	MftMirrorLcn           uint64 `json:"MftMirrorLcn"`
	ClustersPerIndexBuffer int8   `json:"ClustersPerIndexBuffer"`
	MftRecordSize          uint32 `json:"MftRecordSize"`
	VolumeSerialNumber     uint64 `json:"VolumeSerialNumber"`
	Source                 string `json:"Source"`
}

// defaultVolumeMeta is used by the parser when no sidecar metadata is
// available: falls back to record_size = 1024, bytes_per_sector = 512.
func defaultVolumeMeta() VolumeMeta {
	return VolumeMeta{
		BytesPerSector: 512,
		MftRecordSize:  1024,
	}
}
