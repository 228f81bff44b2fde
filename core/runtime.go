package core

import (
	"os"
	"path/filepath"
)

// RuntimeKind distinguishes Valve-shipped runtimes from user-installed
// ones.
type RuntimeKind int

const (
	BuiltInRuntime RuntimeKind = iota
	CustomRuntime
)

func (k RuntimeKind) String() string {
	if k == CustomRuntime {
		return "custom"
	}
	return "built-in"
}

// Runtime is one selectable compatibility tool.
type Runtime struct {
	Name        string
	Kind        RuntimeKind
	InstallPath string
}

// builtinRuntimes is the fixed set of Valve-shipped Proton versions, in
// the order the client presents them.
var builtinRuntimes = []string{
	"Proton Experimental",
	"Proton Hotfix",
	"Proton 9.0",
	"Proton 8.0",
	"Proton 7.0",
}

const compatToolsDir = "compatibilitytools.d"
const compatToolDescriptor = "compatibilitytool.vdf"

// ListRuntimes enumerates compatibility runtimes: the built-in set first
// in its fixed order, then custom tools found under compatibilitytools.d
// in directory-listing order. The catalog is rebuilt on every call.
func ListRuntimes(steamRoot string) []Runtime {
	runtimes := make([]Runtime, 0, len(builtinRuntimes))
	for _, name := range builtinRuntimes {
		runtimes = append(runtimes, Runtime{
			Name:        name,
			Kind:        BuiltInRuntime,
			InstallPath: filepath.Join(steamRoot, "steamapps", "common", name),
		})
	}

	toolsDir := filepath.Join(steamRoot, compatToolsDir)
	entries, err := os.ReadDir(toolsDir)
	if err != nil {
		return runtimes
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(toolsDir, entry.Name())
		name, ok := customToolName(filepath.Join(dir, compatToolDescriptor))
		if !ok {
			continue
		}
		if name == "" {
			name = entry.Name()
		}
		runtimes = append(runtimes, Runtime{
			Name:        name,
			Kind:        CustomRuntime,
			InstallPath: dir,
		})
	}
	return runtimes
}

// customToolName reads the display name from a compatibilitytool.vdf
// descriptor. Directories without a descriptor are not runtimes; a
// descriptor that cannot be parsed still counts, under its directory
// name.
func customToolName(descriptor string) (string, bool) {
	data, err := os.ReadFile(descriptor)
	if err != nil {
		return "", false
	}
	root, err := ParseKv(string(data))
	if err != nil {
		Logger.Warn("malformed compat tool descriptor", "path", descriptor, "err", err)
		return "", true
	}

	tools := root.Lookup("compat_tools")
	if tools == nil {
		return "", true
	}
	for _, tool := range tools.Children {
		if !tool.Branch {
			continue
		}
		if name, ok := tool.LeafValue("display_name"); ok {
			return name, true
		}
		return tool.Key, true
	}
	return "", true
}
