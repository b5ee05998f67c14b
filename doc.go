// Package ntfsmft reconstructs and parses the NTFS Master File Table ($MFT)
// for digital forensics and incident response.
//
// It is split into two halves that share the on-disk structure decoders
// (boot sector, runlists, record headers, attributes) but operate on
// different inputs: the extractor walks a raw volume or image to produce a
// byte-exact copy of $MFT, while the parser streams that raw copy and
// emits one enriched entry per logical MFT record.
package ntfsmft
