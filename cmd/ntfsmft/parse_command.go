package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dsoprea/go-logging"

	ntfsmft "github.com/dfir-toolkit/go-ntfs-mft"
)

type parseCommand struct {
	Path               string `short:"p" long:"path" description:"Path to a raw $MFT file" required:"true"`
	OutJson            string `short:"j" long:"out-json" description:"Destination JSONL path" required:"true"`
	Data               bool   `short:"d" long:"data" description:"Extract resident unnamed $DATA content"`
	Rules              string `short:"r" long:"rules" description:"Path to a JSON rule-set file"`
	TimestompThreshold string `long:"timestomp-threshold" description:"Timestomp slack, e.g. 100s" default:"100s"`
}

// Execute satisfies go-flags' Commander interface.
func (c *parseCommand) Execute(args []string) error {
	threshold, err := time.ParseDuration(c.TimestompThreshold)
	log.PanicIf(err)

	opts := ntfsmft.ParseOptions{
		ExtractResidentData: c.Data,
		TimestompThreshold:  threshold,
		Rules:               ntfsmft.DefaultRules(),
	}

	metaPath := c.Path + ".meta.json"
	if rawMeta, err := os.ReadFile(metaPath); err == nil {
		var meta ntfsmft.VolumeMeta
		if errJson := json.Unmarshal(rawMeta, &meta); errJson == nil {
			opts.Meta = meta
			opts.DrivePrefix = driveLetterFromSourceString(meta.Source)
		}
	}

	if c.Rules != "" {
		raw, err := os.ReadFile(c.Rules)
		log.PanicIf(err)

		rules, err := ntfsmft.LoadRules(raw)
		log.PanicIf(err)

		opts.Rules = rules
	}

	f, err := os.Open(c.Path)
	log.PanicIf(err)
	defer f.Close()

	info, err := f.Stat()
	log.PanicIf(err)

	out, err := os.Create(c.OutJson)
	log.PanicIf(err)
	defer out.Close()

	writer := ntfsmft.NewJsonlWriter(out)

	err = ntfsmft.ParseMft(f, info.Size(), opts, func(entry ntfsmft.MftEntry) error {
		return writer.Write(entry)
	})
	log.PanicIf(err)

	err = writer.Flush()
	log.PanicIf(err)

	return nil
}

func driveLetterFromSourceString(source string) string {
	return drivePrefixFromSource(source)
}
