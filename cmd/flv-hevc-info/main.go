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

%s lists the HEVC video tags of an FLV file with timestamps, key flags,
NAL units and parameter sets, followed by stream statistics.
`

func parseOptions() internal.Options {
	opts := internal.Options{ShowTags: true, ShowStatistics: true}
	flag.IntVar(&opts.MaxNrPictures, "max", 0, "max nr pictures to parse")
	flag.BoolVar(&opts.ShowNALU, "nalu", false, "list the NAL units of every tag")
	flag.BoolVar(&opts.ShowPS, "ps", false, "print parameter sets")
	flag.BoolVar(&opts.VerbosePSInfo, "verbose", false, "print parameter set details")
	flag.BoolVar(&opts.NoRecord, "norecord", false, "do not decode sequence header records")
	flag.BoolVar(&opts.Indent, "indent", false, "indent JSON output")
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

func printTagInfo(ctx context.Context, w io.Writer, f io.Reader, o internal.Options) error {
	return internal.ParseFLV(ctx, w, f, o)
}

func main() {
	o, inFile := internal.ParseParams(parseOptions)
	err := internal.Execute(os.Stdout, o, inFile, printTagInfo)
	if err != nil {
		log.Fatal(err)
	}
}
