package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLoginusers(t *testing.T, dir, content string) {
	t.Helper()
	writeTestFile(t, filepath.Join(dir, "config", "loginusers.vdf"), content)
}

func TestAccountIDFromSteamID64(t *testing.T) {
	// The base offset itself maps to account id 0.
	assert.Equal(t, uint32(0), AccountIDFromSteamID64(76561197960265728))
	assert.Equal(t, uint32(41216114), AccountIDFromSteamID64(76561198001481842))
}

func TestResolveActiveAccountMostRecentWins(t *testing.T) {
	root := newSteamRoot(t)
	// The marked account is deliberately not first in the file.
	writeLoginusers(t, root, `"users"
{
	"76561198001481842"
	{
		"AccountName"		"alice"
		"PersonaName"		"Alice"
		"MostRecent"		"0"
	}
	"76561197960265729"
	{
		"AccountName"		"bob"
		"PersonaName"		"Bob"
		"MostRecent"		"1"
	}
}
`)

	account, err := ResolveActiveAccount(root)
	require.NoError(t, err)
	assert.Equal(t, uint64(76561197960265729), account.SteamID64)
	assert.Equal(t, uint32(1), account.AccountID32)
	assert.Equal(t, "bob", account.AccountName)
	assert.Equal(t, "Bob", account.PersonaName)
	assert.True(t, account.MostRecent)
}

func TestResolveActiveAccountGreatestIDFallback(t *testing.T) {
	root := newSteamRoot(t)
	writeLoginusers(t, root, `"users"
{
	"76561198001481842"
	{
		"AccountName"		"alice"
	}
	"76561197960265729"
	{
		"AccountName"		"bob"
	}
}
`)

	account, err := ResolveActiveAccount(root)
	require.NoError(t, err)
	assert.Equal(t, uint64(76561198001481842), account.SteamID64)
	assert.False(t, account.MostRecent)
}

func TestResolveActiveAccountMissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	root := newSteamRoot(t)

	_, err := ResolveActiveAccount(root)
	assert.True(t, errors.Is(err, ErrNoAccountFound))
}

func TestResolveActiveAccountNoBlocks(t *testing.T) {
	root := newSteamRoot(t)
	writeLoginusers(t, root, `"users"
{
}
`)

	_, err := ResolveActiveAccount(root)
	assert.True(t, errors.Is(err, ErrNoAccountFound))
}

func TestResolveActiveAccountFallbackLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := newSteamRoot(t)

	// No loginusers.vdf under the client root; the legacy ~/.steam
	// location is searched next.
	writeTestFile(t, filepath.Join(home, ".steam", "config", "loginusers.vdf"), `"users"
{
	"76561198001481842"
	{
		"MostRecent"		"1"
	}
}
`)

	account, err := ResolveActiveAccount(root)
	require.NoError(t, err)
	assert.Equal(t, uint32(41216114), account.AccountID32)
}

func TestResolveActiveAccountSkipsJunkBlocks(t *testing.T) {
	buf := captureWarnings(t)
	root := newSteamRoot(t)
	writeLoginusers(t, root, `"users"
{
	"not-a-steamid"
	{
		"MostRecent"		"1"
	}
	"76561197960265729"
	{
		"AccountName"		"bob"
	}
}
`)

	account, err := ResolveActiveAccount(root)
	require.NoError(t, err)
	assert.Equal(t, uint64(76561197960265729), account.SteamID64)
	assert.Contains(t, buf.String(), "non-numeric id")
}

func TestAccountConfigPath(t *testing.T) {
	account := UserAccount{AccountID32: 41216114}
	want := filepath.Join("/root/steam", "userdata", "41216114", "config", "localconfig.vdf")
	assert.Equal(t, want, account.ConfigPath("/root/steam", "localconfig.vdf"))
}

func TestResolveActiveAccountMalformedFile(t *testing.T) {
	root := newSteamRoot(t)
	writeLoginusers(t, root, `"users" { "76561197960265729" {`)

	_, err := ResolveActiveAccount(root)
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func ExampleAccountIDFromSteamID64() {
	fmt.Println(AccountIDFromSteamID64(76561198001481842))
	// Output: 41216114
}
