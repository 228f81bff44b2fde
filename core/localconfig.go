package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const localconfigName = "localconfig.vdf"

var (
	launchOptionsPath = []string{"Software", "Valve", "Steam", "apps"}
	compatToolsPath   = []string{"Software", "Valve", "Steam", "CompatToolOverrides"}
)

// LocalconfigPath returns the per-account localconfig.vdf location under
// the client root.
func LocalconfigPath(steamRoot string, account UserAccount) string {
	return account.ConfigPath(steamRoot, localconfigName)
}

// configRoot unwraps the nested UserLocalConfigStore variant some client
// versions write.
func configRoot(root *KvNode) *KvNode {
	if inner := root.Child("UserLocalConfigStore"); inner != nil && inner.Branch {
		return inner
	}
	return root
}

// loadLocalconfig parses the account's localconfig.vdf. A missing file
// yields (nil, false, nil) so reads can distinguish absence from failure.
func loadLocalconfig(path string) (*KvNode, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	root, err := ParseKv(string(data))
	if err != nil {
		return nil, false, fmt.Errorf("parsing %s: %w", path, err)
	}
	return root, true, nil
}

// writeKvFile rewrites the whole file: serialize into a temporary file in
// the same directory, then atomically replace the original. The original
// is never left truncated or half-written.
func writeKvFile(path string, root *KvNode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".localconfig-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(root.Serialize()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// GetLaunchOptions reads the launch-options override for an app. The
// second return is false when no override is set (including when the
// account has no localconfig.vdf yet).
func GetLaunchOptions(steamRoot string, account UserAccount, appID uint32) (string, bool, error) {
	path := LocalconfigPath(steamRoot, account)
	root, exists, err := loadLocalconfig(path)
	if err != nil || !exists {
		return "", false, err
	}

	app := configRoot(root).Lookup(append(launchOptionsPath, formatAppID(appID))...)
	if app == nil {
		return "", false, nil
	}
	value, ok := app.LeafValue("LaunchOptions")
	return value, ok, nil
}

// SetLaunchOptions writes the launch-options override for an app,
// creating localconfig.vdf and any missing subtrees on the way.
func SetLaunchOptions(steamRoot string, account UserAccount, appID uint32, value string) error {
	path := LocalconfigPath(steamRoot, account)
	root, exists, err := loadLocalconfig(path)
	if err != nil {
		return err
	}
	if !exists {
		root = NewBranch("UserLocalConfigStore")
	}

	node := configRoot(root)
	for _, key := range launchOptionsPath {
		node = node.EnsureBranch(key)
	}
	node.EnsureBranch(formatAppID(appID)).SetLeaf("LaunchOptions", value)

	Logger.Debug("writing launch options", "path", path, "appid", appID)
	return writeKvFile(path, root)
}

// GetCompatTool reads the compatibility-tool override for an app.
func GetCompatTool(steamRoot string, account UserAccount, appID uint32) (string, bool, error) {
	path := LocalconfigPath(steamRoot, account)
	root, exists, err := loadLocalconfig(path)
	if err != nil || !exists {
		return "", false, err
	}

	entry := configRoot(root).Lookup(append(compatToolsPath, formatAppID(appID))...)
	if entry == nil {
		return "", false, nil
	}
	value, ok := entry.LeafValue("name")
	return value, ok, nil
}

// SetCompatTool forces a compatibility tool for an app. Steam expects the
// config and priority leaves to exist alongside the tool name.
func SetCompatTool(steamRoot string, account UserAccount, appID uint32, tool string) error {
	path := LocalconfigPath(steamRoot, account)
	root, exists, err := loadLocalconfig(path)
	if err != nil {
		return err
	}
	if !exists {
		root = NewBranch("UserLocalConfigStore")
	}

	node := configRoot(root)
	for _, key := range compatToolsPath {
		node = node.EnsureBranch(key)
	}
	entry := node.EnsureBranch(formatAppID(appID))
	entry.SetLeaf("name", tool)
	if entry.Child("config") == nil {
		entry.SetLeaf("config", "")
	}
	if entry.Child("priority") == nil {
		entry.SetLeaf("priority", "250")
	}

	Logger.Debug("writing compat tool override", "path", path, "appid", appID, "tool", tool)
	return writeKvFile(path, root)
}

// ClearCompatTool removes the compatibility-tool override for an app. It
// is a no-op when no override (or no localconfig.vdf) exists.
func ClearCompatTool(steamRoot string, account UserAccount, appID uint32) error {
	path := LocalconfigPath(steamRoot, account)
	root, exists, err := loadLocalconfig(path)
	if err != nil || !exists {
		return err
	}

	overrides := configRoot(root).Lookup(compatToolsPath...)
	if overrides == nil || !overrides.RemoveChild(formatAppID(appID)) {
		return nil
	}
	return writeKvFile(path, root)
}

func formatAppID(appID uint32) string {
	return strconv.FormatUint(uint64(appID), 10)
}
