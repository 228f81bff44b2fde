package core

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// LibraryRoot is a validated Steam library directory: it exists and
// contains a steamapps subdirectory.
type LibraryRoot string

func (l LibraryRoot) SteamappsPath() string {
	return filepath.Join(string(l), "steamapps")
}

func (l LibraryRoot) CompatdataPath() string {
	return filepath.Join(l.SteamappsPath(), "compatdata")
}

func isLibraryDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	info, err = os.Stat(filepath.Join(path, "steamapps"))
	return err == nil && info.IsDir()
}

// LocateLibraries returns every Steam library reachable from the client
// root. The root's own steamapps is always the first library; further
// entries come from steamapps/libraryfolders.vdf. A missing or malformed
// libraryfolders.vdf degrades to the implicit library alone.
func LocateLibraries(steamRoot string) []LibraryRoot {
	var libs []LibraryRoot
	seen := map[string]bool{}

	add := func(path string) {
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			path = resolved
		}
		if seen[path] || !isLibraryDir(path) {
			return
		}
		seen[path] = true
		libs = append(libs, LibraryRoot(path))
	}

	add(steamRoot)

	vdfPath := filepath.Join(steamRoot, "steamapps", "libraryfolders.vdf")
	data, err := os.ReadFile(vdfPath)
	if err != nil {
		if !os.IsNotExist(err) {
			Logger.Warn("could not read libraryfolders.vdf", "path", vdfPath, "err", err)
		}
		return libs
	}

	root, err := ParseKv(string(data))
	if err != nil {
		Logger.Warn("malformed libraryfolders.vdf", "path", vdfPath, "err", err)
		return libs
	}
	folders := root
	if root.Key != "libraryfolders" {
		if c := root.Child("libraryfolders"); c != nil {
			folders = c
		}
	}

	for _, entry := range folders.Children {
		var path string
		if entry.Branch {
			path, _ = entry.LeafValue("path")
		} else {
			// Pre-2021 format: "1" "/path/to/library"
			path = entry.Value
		}
		if path == "" {
			continue
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(steamRoot, path)
		}
		add(path)
	}

	return libs
}

// AppManifestEntry is the installation metadata discovered for one app.
type AppManifestEntry struct {
	AppID           uint32
	Name            string
	InstallDir      string
	DeclaredRuntime string
	LastPlayed      uint64
	Library         LibraryRoot
}

// AppRegistry maps app ids to their manifest entries across all libraries.
type AppRegistry map[uint32]AppManifestEntry

// Sorted returns the registry entries ordered by name, then app id.
func (r AppRegistry) Sorted() []AppManifestEntry {
	entries := make([]AppManifestEntry, 0, len(r))
	for _, e := range r {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].AppID < entries[j].AppID
	})
	return entries
}

func parseAppManifest(path string, lib LibraryRoot) (AppManifestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AppManifestEntry{}, err
	}
	root, err := ParseKv(string(data))
	if err != nil {
		return AppManifestEntry{}, err
	}

	idStr, ok := root.LeafValue("appid")
	if !ok {
		return AppManifestEntry{}, &ParseError{Line: 1, Column: 1, Msg: "manifest has no appid"}
	}
	appID, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return AppManifestEntry{}, &ParseError{Line: 1, Column: 1, Msg: "manifest appid is not numeric"}
	}
	name, ok := root.LeafValue("name")
	if !ok {
		return AppManifestEntry{}, &ParseError{Line: 1, Column: 1, Msg: "manifest has no name"}
	}

	entry := AppManifestEntry{
		AppID:   uint32(appID),
		Name:    name,
		Library: lib,
	}
	entry.InstallDir, _ = root.LeafValue("installdir")
	entry.DeclaredRuntime, _ = root.LeafValue("UserConfig", "platform_override_source")
	if lp, ok := root.LeafValue("LastPlayed"); ok {
		entry.LastPlayed, _ = strconv.ParseUint(lp, 10, 64)
	}
	return entry, nil
}

// ScanLibrary parses every appmanifest_*.acf in the library. A malformed
// manifest is logged and skipped; one bad file never aborts the scan.
func ScanLibrary(lib LibraryRoot) []AppManifestEntry {
	matches, err := filepath.Glob(filepath.Join(lib.SteamappsPath(), "appmanifest_*.acf"))
	if err != nil {
		return nil
	}
	sort.Strings(matches)

	var entries []AppManifestEntry
	for _, path := range matches {
		entry, err := parseAppManifest(path, lib)
		if err != nil {
			Logger.Warn("skipping malformed manifest", "path", path, "err", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// BuildAppRegistry scans every library under the client root. When the
// same app id appears in more than one library the last-scanned library
// wins, matching Steam's own precedence.
func BuildAppRegistry(steamRoot string) AppRegistry {
	registry := AppRegistry{}
	for _, lib := range LocateLibraries(steamRoot) {
		for _, entry := range ScanLibrary(lib) {
			registry[entry.AppID] = entry
		}
	}
	return registry
}

// SearchApps returns registry entries whose name contains the query,
// case-insensitively, ordered by name.
func SearchApps(steamRoot, query string) []AppManifestEntry {
	query = strings.ToLower(strings.TrimSpace(query))
	var results []AppManifestEntry
	for _, entry := range BuildAppRegistry(steamRoot).Sorted() {
		if strings.Contains(strings.ToLower(entry.Name), query) {
			results = append(results, entry)
		}
	}
	return results
}
