package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPrefix lays out a miniature Proton prefix: nested files, a
// symlink, and a shader cache.
func buildPrefix(t *testing.T, path string) {
	t.Helper()
	writeTestFile(t, filepath.Join(path, "drive_c", "user.reg"), "WINE REGISTRY Version 2\n")
	writeTestFile(t, filepath.Join(path, "drive_c", "windows", "system32", "dxvk.dll"), "not a real dll\n")
	writeTestFile(t, filepath.Join(path, "shadercache", "fozpipelines", "cache.foz"), "shader blob\n")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "dosdevices"), 0755))
	require.NoError(t, os.Symlink("../drive_c", filepath.Join(path, "dosdevices", "c:")))
}

// snapshotTree flattens a directory tree into relpath -> content for
// structural comparison. Symlinks record their target, not what they
// point at.
func snapshotTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			out[rel] = "-> " + target
		case d.IsDir():
			out[rel] = "(dir)"
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out[rel] = string(data)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

// failCopyAfter makes the package copy hook fail once n files have been
// copied, restoring it when the test ends.
func failCopyAfter(t *testing.T, n int) {
	t.Helper()
	orig := copyFile
	calls := 0
	copyFile = func(src, dst string) error {
		calls++
		if calls > n {
			return errors.New("simulated write failure")
		}
		return orig(src, dst)
	}
	t.Cleanup(func() { copyFile = orig })
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "compatdata", "221100", "pfx")
	buildPrefix(t, prefix)
	destRoot := t.TempDir()
	before := snapshotTree(t, prefix)

	rec, err := CreateBackup(prefix, 221100, destRoot)
	require.NoError(t, err)
	assert.Equal(t, uint32(221100), rec.AppID)
	assert.True(t, strings.HasPrefix(filepath.Base(rec.Location), "221100-"))
	assert.Empty(t, cmp.Diff(before, snapshotTree(t, rec.Location)))

	// Wreck the live prefix, then restore.
	require.NoError(t, os.WriteFile(filepath.Join(prefix, "drive_c", "user.reg"), []byte("corrupted\n"), 0644))
	writeTestFile(t, filepath.Join(prefix, "drive_c", "stray.dll"), "junk\n")

	require.NoError(t, RestorePrefix(rec.Location, prefix))
	assert.Empty(t, cmp.Diff(before, snapshotTree(t, prefix)))

	// The swap leaves no temporary or parked directories behind.
	siblings, err := os.ReadDir(filepath.Dir(prefix))
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	assert.Equal(t, "pfx", siblings[0].Name())
}

func TestBackupMissingSource(t *testing.T) {
	_, err := CreateBackup(filepath.Join(t.TempDir(), "nope"), 221100, t.TempDir())
	assert.True(t, errors.Is(err, ErrSourceNotFound))
}

func TestBackupInterruptedLeavesNoPartial(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "pfx")
	buildPrefix(t, prefix)
	destRoot := t.TempDir()
	failCopyAfter(t, 1)

	_, err := CreateBackup(prefix, 221100, destRoot)
	require.Error(t, err)

	entries, err := os.ReadDir(destRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial backup left behind")
}

func TestRestoreFailureKeepsOldPrefix(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "compatdata", "221100", "pfx")
	buildPrefix(t, prefix)
	destRoot := t.TempDir()

	rec, err := CreateBackup(prefix, 221100, destRoot)
	require.NoError(t, err)
	before := snapshotTree(t, prefix)

	failCopyAfter(t, 0)
	require.Error(t, RestorePrefix(rec.Location, prefix))

	assert.Empty(t, cmp.Diff(before, snapshotTree(t, prefix)))
	siblings, err := os.ReadDir(filepath.Dir(prefix))
	require.NoError(t, err)
	require.Len(t, siblings, 1)
}

func TestRestoreMissingOrEmptyBackup(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "pfx")
	buildPrefix(t, prefix)

	err := RestorePrefix(filepath.Join(t.TempDir(), "nope"), prefix)
	assert.True(t, errors.Is(err, ErrBackupNotFound))

	empty := t.TempDir()
	err = RestorePrefix(empty, prefix)
	assert.True(t, errors.Is(err, ErrBackupNotFound))
}

func TestListBackupsAndDeleteIndependently(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "pfx")
	buildPrefix(t, prefix)
	destRoot := t.TempDir()

	var locations []string
	for i := 0; i < 3; i++ {
		rec, err := CreateBackup(prefix, 221100, destRoot)
		require.NoError(t, err)
		locations = append(locations, rec.Location)
	}
	// A backup of another app must not show up in the listing.
	_, err := CreateBackup(prefix, 413150, destRoot)
	require.NoError(t, err)

	records := ListBackups(221100, destRoot)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, uint32(221100), rec.AppID)
		assert.False(t, rec.CreatedAt.IsZero())
	}

	require.NoError(t, DeleteBackup(locations[1]))

	records = ListBackups(221100, destRoot)
	require.Len(t, records, 2)
	assert.DirExists(t, locations[0])
	assert.DirExists(t, locations[2])
	require.Len(t, ListBackups(413150, destRoot), 1)
}

func TestListBackupsNewestFirst(t *testing.T) {
	destRoot := t.TempDir()
	for _, name := range []string{
		"221100-20240101-120000",
		"221100-20260101-120000",
		"221100-20250101-120000",
		"221100-20250101-120000-2", // collision ordinal
	} {
		require.NoError(t, os.Mkdir(filepath.Join(destRoot, name), 0755))
	}

	records := ListBackups(221100, destRoot)
	require.Len(t, records, 4)
	assert.Equal(t, "221100-20260101-120000", filepath.Base(records[0].Location))
	assert.Equal(t, 2026, records[0].CreatedAt.Year())
	assert.Equal(t, "221100-20240101-120000", filepath.Base(records[3].Location))
}

func TestListBackupsMissingRoot(t *testing.T) {
	assert.Empty(t, ListBackups(221100, filepath.Join(t.TempDir(), "nope")))
}

func TestDeleteBackupMissing(t *testing.T) {
	err := DeleteBackup(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errors.Is(err, ErrBackupNotFound))
}

func TestClearShaderCacheLeavesSiblingsAlone(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "pfx")
	buildPrefix(t, prefix)
	before := snapshotTree(t, filepath.Join(prefix, "drive_c"))

	require.NoError(t, ClearShaderCache(prefix))

	assert.NoDirExists(t, filepath.Join(prefix, "shadercache"))
	assert.Empty(t, cmp.Diff(before, snapshotTree(t, filepath.Join(prefix, "drive_c"))))
	assert.DirExists(t, filepath.Join(prefix, "dosdevices"))
}

func TestResetPrefix(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "pfx")
	buildPrefix(t, prefix)

	require.NoError(t, ResetPrefix(prefix))
	assert.NoDirExists(t, prefix)

	// Resetting an already-absent prefix is not an error.
	assert.NoError(t, ResetPrefix(prefix))
}

func TestBackupNameCollisionsGetOrdinals(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "pfx")
	buildPrefix(t, prefix)
	destRoot := t.TempDir()

	names := map[string]bool{}
	for i := 0; i < 3; i++ {
		rec, err := CreateBackup(prefix, 221100, destRoot)
		require.NoError(t, err)
		name := filepath.Base(rec.Location)
		assert.False(t, names[name], "duplicate backup name %s", name)
		names[name] = true
	}
}

func TestCopyTreePreservesSymlinks(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	buildPrefix(t, src)
	dst := filepath.Join(t.TempDir(), "dst")

	require.NoError(t, copyTree(src, dst))

	target, err := os.Readlink(filepath.Join(dst, "dosdevices", "c:"))
	require.NoError(t, err)
	assert.Equal(t, "../drive_c", target)
}

func TestDefaultBackupRootUnderConfigDir(t *testing.T) {
	configDir, err := os.UserConfigDir()
	require.NoError(t, err)

	root, err := DefaultBackupRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(configDir, APP_NAME, "backups"), root)
	assert.True(t, strings.HasSuffix(root, fmt.Sprintf("%s%cbackups", APP_NAME, os.PathSeparator)))
}
