package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/Eyevinn/hevc-rtmp-tools/internal"
)

var usg = `Usage of %s:

%s remuxes the first HEVC stream of an MPEG-TS file into an FLV file.
Timestamps are converted to milliseconds starting at 0 and NAL units are
grouped into one video tag per access unit.
`

func parseOptions() internal.Options {
	opts := internal.Options{ShowStatistics: true}
	flag.StringVar(&opts.OutPutTo, "output", "-", "save the FLV tags into the given file (filepath) or stdout (-)")
	flag.IntVar(&opts.MaxNrPictures, "max", 0, "max nr pictures to write")
	flag.BoolVar(&opts.ShowService, "service", false, "print service information")
	flag.BoolVar(&opts.NoRecord, "norecord", false, "keep parameter sets in-band instead of writing a sequence header")
	flag.IntVar(&opts.ScratchSize, "scratch", 0, "max sequence header size in bytes (0 for default)")
	flag.BoolVar(&opts.Indent, "indent", false, "indent JSON output")
	flag.StringVar(&opts.LogLevel, "loglevel", "warn", "log level (debug, info, warn, error)")
	flag.StringVar(&opts.ConfigFile, "config", "", "YAML options file, flags given on the command line take precedence")
	flag.BoolVar(&opts.Version, "version", false, "print version")

	flag.Usage = func() {
		parts := strings.Split(os.Args[0], "/")
		name := parts[len(parts)-1]
		fmt.Fprintf(os.Stderr, usg, name, name)
		fmt.Fprintf(os.Stderr, "\nRun as: %s [options] file.ts (- for stdin) with options:\n\n", name)
		flag.PrintDefaults()
	}

	flag.Parse()
	return opts
}

func remux(ctx context.Context, w io.Writer, f io.Reader, o internal.Options) error {
	// If we output to stdout, print analysis to stderr
	textOutput := io.Writer(os.Stderr)
	if o.OutPutTo != "" && o.OutPutTo != "-" {
		textOutput = w
	}
	flvOutput, closeOut, err := internal.OpenOutput(w, o)
	if err != nil {
		return err
	}
	if err := internal.MuxTS(ctx, textOutput, flvOutput, f, o); err != nil {
		_ = closeOut()
		return err
	}
	return closeOut()
}

func main() {
	o, inFile := internal.ParseParams(parseOptions)
	err := internal.Execute(os.Stdout, o, inFile, remux)
	if err != nil {
		log.Fatal(err)
	}
}
