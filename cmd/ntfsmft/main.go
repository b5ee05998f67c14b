package main

import (
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"
)

// rootParameters holds no flags of its own; every option lives on one of
// the three subcommands.
type rootParameters struct{}

var rootArguments = new(rootParameters)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.AddCommand("extract", "Extract a raw $MFT from a volume or image", "", &extractCommand{})
	log.PanicIf(err)

	_, err = p.AddCommand("parse", "Parse a raw $MFT into JSONL", "", &parseCommand{})
	log.PanicIf(err)

	_, err = p.AddCommand("play", "Extract then parse in one pass", "", &playCommand{})
	log.PanicIf(err)

	if _, err := p.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}

		os.Exit(1)
	}
}

// rewriteSource applies the platform raw-device convention: a two- or
// three-character drive letter like "C:" is rewritten to "\\.\C:";
// anything else passes through unchanged.
func rewriteSource(source string) string {
	if len(source) < 2 || len(source) > 3 {
		return source
	}

	if (source[0] < 'A' || source[0] > 'Z') && (source[0] < 'a' || source[0] > 'z') {
		return source
	}

	if source[1] != ':' {
		return source
	}

	return `\\.\` + source
}

// drivePrefixFromSource extracts the "X:" prefix from a rewritten source
// path, or "" if the source isn't a drive.
func drivePrefixFromSource(source string) string {
	rewritten := rewriteSource(source)

	const devicePrefix = `\\.\`
	if len(rewritten) == len(devicePrefix)+2 && rewritten[:len(devicePrefix)] == devicePrefix {
		return rewritten[len(devicePrefix):]
	}

	return ""
}
