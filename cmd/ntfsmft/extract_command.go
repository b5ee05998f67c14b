package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"

	ntfsmft "github.com/dfir-toolkit/go-ntfs-mft"
)

type extractCommand struct {
	Image string `short:"i" long:"image" description:"Source volume or image path" required:"true"`
	Out   string `short:"o" long:"out" description:"Destination path for the raw $MFT" required:"true"`
}

// Execute satisfies go-flags' Commander interface.
func (c *extractCommand) Execute(args []string) error {
	source := rewriteSource(c.Image)

	in, err := os.Open(source)
	log.PanicIf(err)
	defer in.Close()

	out, err := os.Create(c.Out)
	log.PanicIf(err)
	defer out.Close()

	readAt := func(offset int64, length int) ([]byte, error) {
		buf := make([]byte, length)

		n, err := in.ReadAt(buf, offset)
		if n == length {
			return buf, nil
		}

		return buf[:n], err
	}

	meta, err := ntfsmft.ExtractMft(readAt, source, out, func(message string) {
		fmt.Fprintln(os.Stderr, message)
	})
	log.PanicIf(err)

	err = ntfsmft.WriteSidecarMeta(c.Out+".meta.json", meta)
	log.PanicIf(err)

	return nil
}
