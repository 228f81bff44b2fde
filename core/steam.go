package core

import (
	"os"
	"path/filepath"
)

const APP_NAME = "ProtonPrefixManager"

// steamRootCandidates are the known Steam installation directories,
// relative to the user's home, in probe order. Several of these are
// usually symlinks to the same place.
var steamRootCandidates = []string{
	".steam/steam",
	".local/share/Steam",
	".steam/root",
	".steam/debian-installation",
}

// DefaultSteamRoot locates the Steam installation for the current user.
// Symlinked candidates are resolved so the returned root is canonical.
func DefaultSteamRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	for _, cand := range steamRootCandidates {
		path := filepath.Join(home, cand)
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			path = resolved
		}
		Logger.Debug("found steam root", "path", path)
		return path, nil
	}

	return "", ErrSteamNotFound
}

// loginusersDirs returns the directories searched for loginusers.vdf, in
// order: the client root's config dir, then the legacy ~/.steam locations.
func loginusersDirs(steamRoot string) []string {
	dirs := []string{filepath.Join(steamRoot, "config")}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, ".steam", "config"),
			filepath.Join(home, ".steam", "root", "config"),
		)
	}
	return dirs
}
