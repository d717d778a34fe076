package internal

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"
)

type Options struct {
	MaxNrPictures  int    `yaml:"maxNrPictures"`
	Version        bool   `yaml:"-"`
	Indent         bool   `yaml:"indent"`
	ShowTags       bool   `yaml:"showTags"`
	ShowService    bool   `yaml:"showService"`
	ShowPS         bool   `yaml:"showPS"`
	VerbosePSInfo  bool   `yaml:"verbosePSInfo"`
	ShowNALU       bool   `yaml:"showNALU"`
	ShowStatistics bool   `yaml:"showStatistics"`
	NoRecord       bool   `yaml:"noRecord"`
	FrameRate      int    `yaml:"frameRate"`
	ScratchSize    int    `yaml:"scratchSize"`
	LogLevel       string `yaml:"logLevel"`
	OutPutTo       string `yaml:"output"`
	ConfigFile     string `yaml:"-"`
}

func CreateFullOptions(max int) Options {
	return Options{MaxNrPictures: max, ShowTags: true, ShowPS: true, ShowNALU: true, ShowStatistics: true}
}

type OptionParseFunc func() Options
type RunableFunc func(ctx context.Context, w io.Writer, f io.Reader, o Options) error

// LoadOptionsFile overlays the YAML file at path on o. Fields missing in
// the file keep their value.
func LoadOptionsFile(path string, o *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading options file %w", err)
	}
	if err := yaml.Unmarshal(data, o); err != nil {
		return fmt.Errorf("parsing options file %s: %w", path, err)
	}
	return nil
}

// ApplyOptionsFile loads o.ConfigFile, if set, and lets flags given on the
// command line take precedence over it.
func ApplyOptionsFile(o Options) (Options, error) {
	return applyOptionsFile(o, flag.CommandLine)
}

func applyOptionsFile(o Options, fs *flag.FlagSet) (Options, error) {
	if o.ConfigFile == "" {
		return o, nil
	}
	fromFlags := o
	if err := LoadOptionsFile(o.ConfigFile, &o); err != nil {
		return fromFlags, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max":
			o.MaxNrPictures = fromFlags.MaxNrPictures
		case "indent":
			o.Indent = fromFlags.Indent
		case "nalu":
			o.ShowNALU = fromFlags.ShowNALU
		case "ps":
			o.ShowPS = fromFlags.ShowPS
		case "verbose":
			o.VerbosePSInfo = fromFlags.VerbosePSInfo
		case "service":
			o.ShowService = fromFlags.ShowService
		case "norecord":
			o.NoRecord = fromFlags.NoRecord
		case "scratch":
			o.ScratchSize = fromFlags.ScratchSize
		case "fps":
			o.FrameRate = fromFlags.FrameRate
		case "loglevel":
			o.LogLevel = fromFlags.LogLevel
		case "output":
			o.OutPutTo = fromFlags.OutPutTo
		}
	})
	return o, nil
}

func RemoveFileIfExists(file string) error {
	_, err := os.Stat(file)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.Remove(file)
}

func OpenFileAndAppend(file string) (*os.File, error) {
	fo, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating output file %w", err)
	}

	return fo, nil
}

// OpenOutput returns the file named by o.OutPutTo, or w for "-" or "".
// The returned close function must always be called.
func OpenOutput(w io.Writer, o Options) (io.Writer, func() error, error) {
	if o.OutPutTo == "" || o.OutPutTo == "-" {
		return w, func() error { return nil }, nil
	}
	if err := RemoveFileIfExists(o.OutPutTo); err != nil {
		return nil, nil, err
	}
	fh, err := OpenFileAndAppend(o.OutPutTo)
	if err != nil {
		return nil, nil, err
	}
	return fh, fh.Close, nil
}

func ParseParams(function OptionParseFunc) (o Options, inFile string) {
	o = function()
	if o.Version {
		fmt.Printf("%s version %s\n", ToolName(), GetVersion())
		os.Exit(0)
	}
	if len(flag.Args()) < 1 {
		flag.Usage()
		os.Exit(1)
	}
	o, err := ApplyOptionsFile(o)
	if err != nil {
		log.Fatal(err)
	}
	inFile = flag.Args()[0]
	return o, inFile
}

func Execute(w io.Writer, o Options, inFile string, function RunableFunc) error {
	// Create a cancellable context in case you want to stop reading packets/data any time you want
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()

	var f io.Reader
	if inFile == "-" {
		f = os.Stdin
	} else {
		fh, err := os.Open(inFile)
		if err != nil {
			log.Fatal(err)
		}
		f = fh
		defer fh.Close()
	}

	return function(ctx, w, f, o)
}
