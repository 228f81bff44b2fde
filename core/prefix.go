package core

import (
	"os"
	"path/filepath"
)

// PrefixHandle is the resolved compatibility-prefix location for one app.
// It is derived state: always recomputed from a library and app id, never
// mutated.
type PrefixHandle struct {
	AppID  uint32
	Path   string
	Exists bool
}

// ResolvePrefix computes the prefix path for a registry entry:
// <library>/steamapps/compatdata/<appid>/pfx. Resolution never creates
// the directory.
func ResolvePrefix(entry AppManifestEntry) PrefixHandle {
	path := filepath.Join(entry.Library.CompatdataPath(), formatAppID(entry.AppID), "pfx")
	return PrefixHandle{
		AppID:  entry.AppID,
		Path:   path,
		Exists: dirExists(path),
	}
}

// FindPrefix searches every library under the client root for an existing
// prefix belonging to the app id. The second return is false when no
// library holds one.
func FindPrefix(steamRoot string, appID uint32) (PrefixHandle, bool) {
	for _, lib := range LocateLibraries(steamRoot) {
		path := filepath.Join(lib.CompatdataPath(), formatAppID(appID), "pfx")
		if dirExists(path) {
			return PrefixHandle{AppID: appID, Path: path, Exists: true}, true
		}
	}
	return PrefixHandle{AppID: appID}, false
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
