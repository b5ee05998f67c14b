package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dsoprea/go-logging"

	ntfsmft "github.com/dfir-toolkit/go-ntfs-mft"
)

type playCommand struct {
	Image string `short:"i" long:"image" description:"Source volume or image path" required:"true"`
	Out   string `short:"o" long:"out" description:"Destination directory" required:"true"`
	Data  bool   `short:"d" long:"data" description:"Extract resident unnamed $DATA content"`
}

// Execute satisfies go-flags' Commander interface. It extracts into
// <out>/MFT and parses into <out>/REPORT in one pass.
func (c *playCommand) Execute(args []string) error {
	err := os.MkdirAll(c.Out, 0o755)
	log.PanicIf(err)

	mftPath := filepath.Join(c.Out, "MFT")
	reportPath := filepath.Join(c.Out, "REPORT")

	source := rewriteSource(c.Image)

	in, err := os.Open(source)
	log.PanicIf(err)
	defer in.Close()

	mftOut, err := os.Create(mftPath)
	log.PanicIf(err)

	readAt := func(offset int64, length int) ([]byte, error) {
		buf := make([]byte, length)

		n, err := in.ReadAt(buf, offset)
		if n == length {
			return buf, nil
		}

		return buf[:n], err
	}

	meta, err := ntfsmft.ExtractMft(readAt, source, mftOut, func(message string) {
		fmt.Fprintln(os.Stderr, message)
	})
	log.PanicIf(err)

	err = mftOut.Close()
	log.PanicIf(err)

	err = ntfsmft.WriteSidecarMeta(mftPath+".meta.json", meta)
	log.PanicIf(err)

	mftFile, err := os.Open(mftPath)
	log.PanicIf(err)
	defer mftFile.Close()

	info, err := mftFile.Stat()
	log.PanicIf(err)

	reportOut, err := os.Create(reportPath)
	log.PanicIf(err)
	defer reportOut.Close()

	writer := ntfsmft.NewJsonlWriter(reportOut)

	opts := ntfsmft.ParseOptions{
		Meta:                meta,
		ExtractResidentData: c.Data,
		TimestompThreshold:  100 * time.Second,
		Rules:               ntfsmft.DefaultRules(),
		DrivePrefix:         drivePrefixFromSource(c.Image),
	}

	err = ntfsmft.ParseMft(mftFile, info.Size(), opts, func(entry ntfsmft.MftEntry) error {
		return writer.Write(entry)
	})
	log.PanicIf(err)

	return writer.Flush()
}
