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

%s extracts the HEVC video of an FLV file as an Annex-B byte stream.
Sequence headers are written as VPS, SPS and PPS in front of the pictures
that follow them.
`

func parseOptions() internal.Options {
	opts := internal.Options{}
	flag.StringVar(&opts.OutPutTo, "output", "-", "save the Annex-B stream into the given file (filepath) or stdout (-)")
	flag.BoolVar(&opts.NoRecord, "norecord", false, "do not decode sequence header records")
	flag.StringVar(&opts.LogLevel, "loglevel", "warn", "log level (debug, info, warn, error)")
	flag.StringVar(&opts.ConfigFile, "config", "", "YAML options file, flags given on the command line take precedence")
	flag.BoolVar(&opts.Version, "version", false, "print version")

	flag.Usage = func() {
		parts := strings.Split(os.Args[0], "/")
		name := parts[len(parts)-1]
		fmt.Fprintf(os.Stderr, usg, name, name)
		fmt.Fprintf(os.Stderr, "\nRun as: %s [options] file.flv (- for stdin) with options:\n\n", name)
		flag.PrintDefaults()
	}

	flag.Parse()
	return opts
}

func demux(ctx context.Context, w io.Writer, f io.Reader, o internal.Options) error {
	out, closeOut, err := internal.OpenOutput(w, o)
	if err != nil {
		return err
	}
	if err := internal.DemuxFLV(ctx, out, f, o); err != nil {
		_ = closeOut()
		return err
	}
	return closeOut()
}

func main() {
	o, inFile := internal.ParseParams(parseOptions)
	err := internal.Execute(os.Stdout, o, inFile, demux)
	if err != nil {
		log.Fatal(err)
	}
}
