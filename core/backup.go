package core

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const backupTimeLayout = "20060102-150405"

// shaderCacheDir is the well-known shader-cache subtree inside a prefix.
const shaderCacheDir = "shadercache"

// BackupRecord describes one backup directory. The backup store has no
// index file; every field is reconstructed from the directory name and
// metadata, so the filesystem listing stays authoritative.
type BackupRecord struct {
	AppID     uint32
	CreatedAt time.Time
	Location  string
}

// copyFile copies one regular file. It is a variable so tests can inject
// mid-copy failures.
var copyFile = copyFileContents

func copyFileContents(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return
	}
	defer func() {
		cerr := out.Close()
		if err == nil {
			err = cerr
		}
	}()
	if _, err = io.Copy(out, in); err != nil {
		return
	}
	err = out.Sync()
	return
}

// copyTree copies a directory tree depth-first, preserving file modes and
// recreating symlinks. Prefixes rely on symlinks (dosdevices/), so they
// must be copied as links, never followed.
func copyTree(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(srcPath)
			if err != nil {
				return err
			}
			if err := os.Symlink(target, dstPath); err != nil {
				return err
			}
		case entry.IsDir():
			if err := copyTree(srcPath, dstPath); err != nil {
				return err
			}
		default:
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
			if info, err := entry.Info(); err == nil {
				os.Chmod(dstPath, info.Mode().Perm())
			}
		}
	}
	return nil
}

// treeSize sums the regular-file bytes under root.
func treeSize(root string) int64 {
	var total int64
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// checkFreeSpace refuses to start a copy that cannot fit on the
// destination filesystem. A failed statfs is not fatal; the copy itself
// will surface any real problem.
func checkFreeSpace(destRoot string, need int64) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(destRoot, &stat); err != nil {
		return nil
	}
	avail := int64(stat.Bavail) * int64(stat.Bsize)
	if avail < need {
		return fmt.Errorf("not enough space under %s: need %d bytes, %d available",
			destRoot, need, avail)
	}
	return nil
}

// CreateBackup copies the entire prefix tree into a new timestamped
// subdirectory of destRoot. On any copy error the partial destination is
// removed before the error is returned; no partial backups are left
// behind.
func CreateBackup(prefixPath string, appID uint32, destRoot string) (BackupRecord, error) {
	if !dirExists(prefixPath) {
		return BackupRecord{}, fmt.Errorf("%w: %s", ErrSourceNotFound, prefixPath)
	}
	if err := os.MkdirAll(destRoot, 0755); err != nil {
		return BackupRecord{}, err
	}
	if err := checkFreeSpace(destRoot, treeSize(prefixPath)); err != nil {
		return BackupRecord{}, err
	}

	// Immediate successive backups land in the same second; an ordinal
	// suffix keeps every one of them.
	now := time.Now()
	base := fmt.Sprintf("%d-%s", appID, now.Format(backupTimeLayout))
	name := base
	for n := 2; ; n++ {
		err := os.Mkdir(filepath.Join(destRoot, name), 0755)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return BackupRecord{}, err
		}
		name = fmt.Sprintf("%s-%d", base, n)
	}

	dest := filepath.Join(destRoot, name)
	Logger.Debug("creating backup", "prefix", prefixPath, "dest", dest)
	if err := copyTree(prefixPath, dest); err != nil {
		os.RemoveAll(dest)
		return BackupRecord{}, fmt.Errorf("backing up %s: %w", prefixPath, err)
	}

	return BackupRecord{AppID: appID, CreatedAt: now, Location: dest}, nil
}

// RestorePrefix replaces the prefix with the contents of a backup. The
// backup is first copied into a sibling temporary directory and then
// swapped into place by rename, so the pre-restore prefix survives a
// failed copy and the window without a valid prefix is a single rename.
func RestorePrefix(backupLocation, prefixPath string) error {
	entries, err := os.ReadDir(backupLocation)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, backupLocation)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrBackupNotFound, backupLocation)
	}

	parent := filepath.Dir(prefixPath)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(parent, ".restore-")
	if err != nil {
		return err
	}
	if err := copyTree(backupLocation, tmp); err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("restoring %s: %w", backupLocation, err)
	}

	old := ""
	if dirExists(prefixPath) {
		old = fmt.Sprintf("%s.old-%d", prefixPath, time.Now().UnixNano())
		if err := os.Rename(prefixPath, old); err != nil {
			os.RemoveAll(tmp)
			return err
		}
	}
	if err := os.Rename(tmp, prefixPath); err != nil {
		if old != "" {
			os.Rename(old, prefixPath)
		}
		os.RemoveAll(tmp)
		return err
	}
	if old != "" {
		os.RemoveAll(old)
	}
	Logger.Debug("restored prefix", "prefix", prefixPath, "backup", backupLocation)
	return nil
}

// ResetPrefix deletes the prefix tree. The directory is not recreated;
// the compatibility runtime rebuilds it on next launch. Irreversible —
// callers confirm intent before calling.
func ResetPrefix(prefixPath string) error {
	Logger.Debug("resetting prefix", "prefix", prefixPath)
	return os.RemoveAll(prefixPath)
}

// ClearShaderCache deletes only the shader-cache subtree inside the
// prefix; everything else is untouched.
func ClearShaderCache(prefixPath string) error {
	return os.RemoveAll(filepath.Join(prefixPath, shaderCacheDir))
}

// ListBackups scans destRoot for backup directories belonging to the app
// id. No index is consulted; the directory listing is authoritative.
// Records are ordered newest first.
func ListBackups(appID uint32, destRoot string) []BackupRecord {
	entries, err := os.ReadDir(destRoot)
	if err != nil {
		return nil
	}

	namePrefix := fmt.Sprintf("%d-", appID)
	var records []BackupRecord
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), namePrefix) {
			continue
		}
		rec := BackupRecord{
			AppID:    appID,
			Location: filepath.Join(destRoot, entry.Name()),
		}
		rest := strings.TrimPrefix(entry.Name(), namePrefix)
		if created, ok := parseBackupTime(rest); ok {
			rec.CreatedAt = created
		} else if info, err := entry.Info(); err == nil {
			rec.CreatedAt = info.ModTime()
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].Location > records[j].Location
	})
	return records
}

// parseBackupTime recovers the creation time from a backup directory
// name, ignoring any ordinal collision suffix.
func parseBackupTime(rest string) (time.Time, bool) {
	if len(rest) < len(backupTimeLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(backupTimeLayout, rest[:len(backupTimeLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DeleteBackup recursively removes one backup directory.
func DeleteBackup(location string) error {
	if _, err := os.Stat(location); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBackupNotFound, location)
		}
		return err
	}
	Logger.Debug("deleting backup", "location", location)
	return os.RemoveAll(location)
}

// DefaultBackupRoot is where backups go when the caller does not choose a
// destination: <user config dir>/<app>/backups.
func DefaultBackupRoot() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, APP_NAME, "backups"), nil
}
