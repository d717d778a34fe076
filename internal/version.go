package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var (
	commitVersion string = "v0.1" // Should be updated during build
	commitDate    string = "0"    // commitDate in Epoch seconds (inserted at build)
)

// GetVersion - get version and also commitHash and commitDate if inserted via Makefile
func GetVersion() string {
	seconds, _ := strconv.Atoi(commitDate)
	if commitDate != "0" {
		t := time.Unix(int64(seconds), 0)
		return fmt.Sprintf("%s, date: %s", commitVersion, t.Format("2006-01-02"))
	}
	return commitVersion
}

func ToolName() string {
	return filepath.Base(os.Args[0])
}
