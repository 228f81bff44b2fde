package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSteamNotFound means no Steam installation could be located in any
	// of the known base directories.
	ErrSteamNotFound = errors.New("steam installation not found")

	// ErrNoAccountFound means loginusers.vdf is missing from every known
	// location or contains no account blocks.
	ErrNoAccountFound = errors.New("no steam account found")

	// ErrSourceNotFound means the prefix to back up does not exist.
	ErrSourceNotFound = errors.New("prefix not found")

	// ErrBackupNotFound means the requested backup directory is missing or
	// empty.
	ErrBackupNotFound = errors.New("backup not found")
)

// ParseError reports a malformed KV document together with the position of
// the failure.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Column, e.Msg)
}
