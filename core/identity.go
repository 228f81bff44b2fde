package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// SteamID64Base is the offset of the individual-account SteamID64 space.
// Subtracting it from a SteamID64 yields the 32-bit account id Steam uses
// as the userdata directory name.
const SteamID64Base uint64 = 76561197960265728

// UserAccount is one account from loginusers.vdf.
type UserAccount struct {
	SteamID64   uint64
	AccountID32 uint32
	AccountName string
	PersonaName string
	MostRecent  bool
}

// AccountIDFromSteamID64 converts the 64-bit identifier to its legacy
// 32-bit form, truncated to 32 bits.
func AccountIDFromSteamID64(id64 uint64) uint32 {
	return uint32(id64 - SteamID64Base)
}

// ConfigPath returns the given file under this account's userdata config
// directory, e.g. localconfig.vdf.
func (a UserAccount) ConfigPath(steamRoot, file string) string {
	return filepath.Join(steamRoot, "userdata",
		strconv.FormatUint(uint64(a.AccountID32), 10), "config", file)
}

func findLoginusers(steamRoot string) (string, bool) {
	for _, dir := range loginusersDirs(steamRoot) {
		path := filepath.Join(dir, "loginusers.vdf")
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// ResolveActiveAccount parses loginusers.vdf and selects the active
// account: the one marked MostRecent, or the numerically greatest
// SteamID64 when none is marked. The file is re-read on every call so a
// login change between calls is always picked up.
func ResolveActiveAccount(steamRoot string) (UserAccount, error) {
	path, ok := findLoginusers(steamRoot)
	if !ok {
		return UserAccount{}, ErrNoAccountFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return UserAccount{}, fmt.Errorf("reading %s: %w", path, err)
	}
	root, err := ParseKv(string(data))
	if err != nil {
		return UserAccount{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	var accounts []UserAccount
	for _, block := range root.Children {
		if !block.Branch {
			continue
		}
		id64, err := strconv.ParseUint(block.Key, 10, 64)
		if err != nil {
			Logger.Warn("skipping account block with non-numeric id", "path", path, "key", block.Key)
			continue
		}
		acct := UserAccount{
			SteamID64:   id64,
			AccountID32: AccountIDFromSteamID64(id64),
		}
		acct.AccountName, _ = block.LeafValue("AccountName")
		acct.PersonaName, _ = block.LeafValue("PersonaName")
		if v, ok := block.LeafValue("MostRecent"); ok && v == "1" {
			acct.MostRecent = true
		}
		accounts = append(accounts, acct)
	}

	if len(accounts) == 0 {
		return UserAccount{}, ErrNoAccountFound
	}

	selected := accounts[0]
	for _, acct := range accounts[1:] {
		if acct.MostRecent && !selected.MostRecent {
			selected = acct
			continue
		}
		// Fallback when nothing is marked: the greatest id wins, a
		// deterministic choice since file order is not guaranteed stable.
		if acct.MostRecent == selected.MostRecent && acct.SteamID64 > selected.SteamID64 {
			selected = acct
		}
	}
	Logger.Debug("resolved active account",
		"steamid64", selected.SteamID64, "accountid", selected.AccountID32)
	return selected, nil
}
