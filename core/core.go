// Package core is the library and prefix resolution engine: it parses
// Steam's KV configuration format, discovers installed games across
// libraries, resolves the active account, reads and writes per-account
// launch options, enumerates compatibility runtimes, and backs up,
// restores, and resets Proton prefixes.
//
// Everything here is synchronous and stateless between calls: Steam's
// files are re-read on every request so account switches and new
// installs are always picked up. The Steam root is an explicit argument
// throughout, never process-global state.
package core

import (
	_ "embed"
)

//go:embed version.txt
var VersionRevision string
