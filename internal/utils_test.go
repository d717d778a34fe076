package internal

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newOptionsFlagSet(o *Options) *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.IntVar(&o.MaxNrPictures, "max", 0, "")
	fs.BoolVar(&o.Indent, "indent", false, "")
	fs.BoolVar(&o.ShowNALU, "nalu", false, "")
	fs.BoolVar(&o.ShowPS, "ps", false, "")
	fs.BoolVar(&o.VerbosePSInfo, "verbose", false, "")
	fs.BoolVar(&o.ShowService, "service", false, "")
	fs.BoolVar(&o.NoRecord, "norecord", false, "")
	fs.IntVar(&o.ScratchSize, "scratch", 0, "")
	fs.IntVar(&o.FrameRate, "fps", 25, "")
	fs.StringVar(&o.LogLevel, "loglevel", "warn", "")
	fs.StringVar(&o.OutPutTo, "output", "-", "")
	fs.StringVar(&o.ConfigFile, "config", "", "")
	return fs
}

func TestApplyOptionsFileFlagsWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	cfg := `noRecord: false
scratchSize: 64
showNALU: false
showPS: false
verbosePSInfo: false
showService: false
maxNrPictures: 7
frameRate: 50
logLevel: debug
output: file.flv
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))

	cases := []struct {
		name string
		args []string
		want Options
	}{
		{
			name: "file_only",
			args: []string{"-config", path},
			want: Options{MaxNrPictures: 7, ScratchSize: 64, FrameRate: 50, LogLevel: "debug",
				OutPutTo: "file.flv", ConfigFile: path},
		},
		{
			name: "flags_override_file",
			args: []string{"-config", path, "-norecord", "-scratch", "4096", "-nalu", "-ps",
				"-verbose", "-service", "-max", "3", "-fps", "30", "-loglevel", "info", "-output", "-"},
			want: Options{MaxNrPictures: 3, ShowNALU: true, ShowPS: true, VerbosePSInfo: true,
				ShowService: true, NoRecord: true, ScratchSize: 4096, FrameRate: 30, LogLevel: "info",
				OutPutTo: "-", ConfigFile: path},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var o Options
			fs := newOptionsFlagSet(&o)
			require.NoError(t, fs.Parse(c.args))
			got, err := applyOptionsFile(o, fs)
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}
}

func TestApplyOptionsFileMissing(t *testing.T) {
	var o Options
	fs := newOptionsFlagSet(&o)
	require.NoError(t, fs.Parse([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml"), "-max", "2"}))
	got, err := applyOptionsFile(o, fs)
	require.Error(t, err)
	require.Equal(t, 2, got.MaxNrPictures)

	o = Options{MaxNrPictures: 5}
	got, err = applyOptionsFile(o, flag.NewFlagSet("empty", flag.ContinueOnError))
	require.NoError(t, err)
	require.Equal(t, o, got)
}
