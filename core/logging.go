package core

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// Logger is the engine-wide logger. It writes to stderr until logging is
// initialized with a file path.
var Logger = log.NewWithOptions(os.Stderr, log.Options{
	Prefix: APP_NAME,
})

const DefaultLogPath = "protonprefixmanager.log"

func InitLoggingWithDefaultPath() error {
	path, err := os.UserCacheDir()
	if err != nil {
		return err
	}

	return InitLoggingWithPath(filepath.Join(path, DefaultLogPath))
}

func InitLoggingWithPath(path string) error {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	Logger.SetOutput(file)
	Logger.SetReportTimestamp(true)
	return nil
}

// SetDebugLogging turns on debug-level output, matching the CLI --debug
// flag.
func SetDebugLogging() {
	Logger.SetLevel(log.DebugLevel)
}
