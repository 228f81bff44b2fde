package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"protonprefixmanager/core"
)

type Options struct {
	Debug   bool   `short:"d" long:"debug" description:"Enable debug logging"`
	LogFile string `long:"log-file" description:"Append log output to a file instead of stderr"`
	Version bool   `short:"V" long:"version" description:"Print the version and exit"`

	Output OutputOptions `group:"Output Options"`
}

var ops = &Options{}

func activeSteamRoot() (string, error) {
	root, err := core.ReadSettingsOrDefault().ResolveSteamRoot()
	if err != nil {
		return "", fmt.Errorf("could not locate a Steam installation: %w", err)
	}
	return root, nil
}

func activeBackupRoot() (string, error) {
	return core.ReadSettingsOrDefault().ResolveBackupRoot()
}

// installedPrefix resolves the prefix location for an installed app. The
// prefix directory itself may not exist yet; in that case the location is
// derived from the app's manifest so restores into a fresh compatdata
// still work.
func installedPrefix(appID uint32) (core.PrefixHandle, error) {
	root, err := activeSteamRoot()
	if err != nil {
		return core.PrefixHandle{}, err
	}
	if handle, found := core.FindPrefix(root, appID); found {
		return handle, nil
	}
	if entry, ok := core.BuildAppRegistry(root)[appID]; ok {
		return core.ResolvePrefix(entry), nil
	}
	return core.PrefixHandle{}, fmt.Errorf("app %d is not installed in any library", appID)
}

type SearchCmd struct {
	Args struct {
		Name string `positional-arg-name:"NAME" required:"yes"`
	} `positional-args:"yes"`
}

func (c *SearchCmd) Execute(args []string) error {
	root, err := activeSteamRoot()
	if err != nil {
		return err
	}

	matches := core.SearchApps(root, c.Args.Name)
	if len(matches) == 0 {
		return fmt.Errorf("no installed app matches %q", c.Args.Name)
	}

	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{fmt.Sprint(m.AppID), m.Name, string(m.Library)})
	}
	return ops.Output.emit(matches, rows...)
}

type PrefixCmd struct {
	Args struct {
		AppID uint32 `positional-arg-name:"APPID" required:"yes"`
	} `positional-args:"yes"`
}

func (c *PrefixCmd) Execute(args []string) error {
	handle, err := installedPrefix(c.Args.AppID)
	if err != nil {
		return err
	}
	if !handle.Exists {
		return fmt.Errorf("no prefix at %s; run the app once under Proton to create it", handle.Path)
	}
	return ops.Output.emit(handle, []string{handle.Path})
}

type BackupCmd struct {
	To   string `long:"to" description:"Write the backup under this directory instead of the configured backup root"`
	Args struct {
		AppID uint32 `positional-arg-name:"APPID" required:"yes"`
	} `positional-args:"yes"`
}

func (c *BackupCmd) Execute(args []string) error {
	handle, err := installedPrefix(c.Args.AppID)
	if err != nil {
		return err
	}

	destRoot := c.To
	if destRoot == "" {
		if destRoot, err = activeBackupRoot(); err != nil {
			return err
		}
	}

	rec, err := core.CreateBackup(handle.Path, c.Args.AppID, destRoot)
	if err != nil {
		return err
	}
	return ops.Output.emit(rec, []string{rec.Location})
}

type RestoreCmd struct {
	From string `long:"from" description:"Restore from this backup directory instead of the newest one"`
	Args struct {
		AppID uint32 `positional-arg-name:"APPID" required:"yes"`
	} `positional-args:"yes"`
}

func (c *RestoreCmd) Execute(args []string) error {
	handle, err := installedPrefix(c.Args.AppID)
	if err != nil {
		return err
	}

	location := c.From
	if location == "" {
		backupRoot, err := activeBackupRoot()
		if err != nil {
			return err
		}
		records := core.ListBackups(c.Args.AppID, backupRoot)
		if len(records) == 0 {
			return fmt.Errorf("no backups for app %d under %s", c.Args.AppID, backupRoot)
		}
		location = records[0].Location
	}

	if err := core.RestorePrefix(location, handle.Path); err != nil {
		return err
	}
	result := map[string]string{"prefix": handle.Path, "backup": location}
	return ops.Output.emit(result, []string{handle.Path, location})
}

type ListBackupsCmd struct {
	Args struct {
		AppID uint32 `positional-arg-name:"APPID" required:"yes"`
	} `positional-args:"yes"`
}

func (c *ListBackupsCmd) Execute(args []string) error {
	backupRoot, err := activeBackupRoot()
	if err != nil {
		return err
	}

	records := core.ListBackups(c.Args.AppID, backupRoot)
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{rec.Location, rec.CreatedAt.Format(time.DateTime)})
	}
	return ops.Output.emit(records, rows...)
}

type DeleteBackupCmd struct {
	Args struct {
		Location string `positional-arg-name:"BACKUP_DIR" required:"yes"`
	} `positional-args:"yes"`
}

func (c *DeleteBackupCmd) Execute(args []string) error {
	return core.DeleteBackup(c.Args.Location)
}

type ResetCmd struct {
	Yes  bool `long:"yes" description:"Skip the confirmation; the prefix is deleted irreversibly"`
	Args struct {
		AppID uint32 `positional-arg-name:"APPID" required:"yes"`
	} `positional-args:"yes"`
}

func (c *ResetCmd) Execute(args []string) error {
	handle, err := installedPrefix(c.Args.AppID)
	if err != nil {
		return err
	}
	if !handle.Exists {
		fmt.Printf("no prefix at %s, nothing to reset\n", handle.Path)
		return nil
	}
	if !c.Yes {
		return fmt.Errorf("refusing to delete %s without --yes", handle.Path)
	}
	return core.ResetPrefix(handle.Path)
}

type ClearCacheCmd struct {
	Args struct {
		AppID uint32 `positional-arg-name:"APPID" required:"yes"`
	} `positional-args:"yes"`
}

func (c *ClearCacheCmd) Execute(args []string) error {
	handle, err := installedPrefix(c.Args.AppID)
	if err != nil {
		return err
	}
	return core.ClearShaderCache(handle.Path)
}

type RuntimesCmd struct{}

func (c *RuntimesCmd) Execute(args []string) error {
	root, err := activeSteamRoot()
	if err != nil {
		return err
	}

	type runtimeRow struct {
		Name        string `json:"name"`
		Kind        string `json:"kind"`
		InstallPath string `json:"installPath"`
	}
	var result []runtimeRow
	var rows [][]string
	for _, rt := range core.ListRuntimes(root) {
		result = append(result, runtimeRow{rt.Name, rt.Kind.String(), rt.InstallPath})
		rows = append(rows, []string{rt.Name, rt.Kind.String(), rt.InstallPath})
	}
	return ops.Output.emit(result, rows...)
}

type ConfigCmd struct {
	Tool  bool `long:"tool" description:"Operate on the compatibility-tool override instead of launch options"`
	Clear bool `long:"clear" description:"Remove the compatibility-tool override (requires --tool)"`
	Args  struct {
		AppID uint32   `positional-arg-name:"APPID" required:"yes"`
		Value []string `positional-arg-name:"VALUE"`
	} `positional-args:"yes"`
}

func (c *ConfigCmd) Execute(args []string) error {
	root, err := activeSteamRoot()
	if err != nil {
		return err
	}
	account, err := core.ResolveActiveAccount(root)
	if err != nil {
		return err
	}
	appID := c.Args.AppID

	if c.Clear {
		if !c.Tool {
			return errors.New("--clear only applies to --tool overrides")
		}
		return core.ClearCompatTool(root, account, appID)
	}

	if len(c.Args.Value) > 0 {
		value := strings.Join(c.Args.Value, " ")
		if c.Tool {
			return core.SetCompatTool(root, account, appID, value)
		}
		return core.SetLaunchOptions(root, account, appID, value)
	}

	var value string
	var ok bool
	if c.Tool {
		value, ok, err = core.GetCompatTool(root, account, appID)
	} else {
		value, ok, err = core.GetLaunchOptions(root, account, appID)
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no override set for app %d", appID)
	}
	return ops.Output.emit(map[string]string{"value": value}, []string{value})
}

type ConfigPathsCmd struct {
	SetBackupRoot string `long:"set-backup-root" description:"Persist a backup destination override"`
	SetSteamRoot  string `long:"set-steam-root" description:"Persist a Steam installation override"`
}

func (c *ConfigPathsCmd) Execute(args []string) error {
	settings := core.ReadSettingsOrDefault()
	if c.SetBackupRoot != "" || c.SetSteamRoot != "" {
		if c.SetBackupRoot != "" {
			settings.BackupRoot = c.SetBackupRoot
		}
		if c.SetSteamRoot != "" {
			settings.SteamRoot = c.SetSteamRoot
		}
		if err := core.CommitSettings(settings); err != nil {
			return err
		}
	}

	steamRoot, err := settings.ResolveSteamRoot()
	if err != nil {
		steamRoot = "(not found)"
	}
	backupRoot, err := settings.ResolveBackupRoot()
	if err != nil {
		return err
	}

	localconfig := "(no logged-in account)"
	if steamRoot != "(not found)" {
		if account, err := core.ResolveActiveAccount(steamRoot); err == nil {
			localconfig = core.LocalconfigPath(steamRoot, account)
		}
	}

	result := map[string]string{
		"steamRoot":   steamRoot,
		"backupRoot":  backupRoot,
		"localconfig": localconfig,
	}
	return ops.Output.emit(result,
		[]string{"steam-root", steamRoot},
		[]string{"backup-root", backupRoot},
		[]string{"localconfig", localconfig})
}

func addCommands(parser *flags.Parser) {
	commands := []struct {
		name, description string
		cmd               interface{}
	}{
		{"search", "Find installed games by name", &SearchCmd{}},
		{"prefix", "Print the Proton prefix location for an app", &PrefixCmd{}},
		{"backup", "Back up an app's Proton prefix", &BackupCmd{}},
		{"restore", "Restore an app's Proton prefix from a backup", &RestoreCmd{}},
		{"list-backups", "List the backups stored for an app", &ListBackupsCmd{}},
		{"delete-backup", "Delete one backup directory", &DeleteBackupCmd{}},
		{"reset", "Delete an app's prefix so Proton recreates it", &ResetCmd{}},
		{"clear-cache", "Delete an app's shader cache", &ClearCacheCmd{}},
		{"runtimes", "List installed Proton runtimes", &RuntimesCmd{}},
		{"config", "Get or set per-app launch options and compatibility tools", &ConfigCmd{}},
		{"config-paths", "Show or change the paths this tool operates on", &ConfigPathsCmd{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.description, "", c.cmd); err != nil {
			panic(err)
		}
	}
}

func main() {
	parser := flags.NewParser(ops, flags.Default)
	parser.SubcommandsOptional = true
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		if ops.Debug {
			core.SetDebugLogging()
		}
		if ops.LogFile != "" {
			if err := core.InitLoggingWithPath(ops.LogFile); err != nil {
				return err
			}
		}
		return cmd.Execute(args)
	}
	addCommands(parser)

	_, err := parser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		core.Logger.Fatal(err)
	}

	if ops.Version {
		fmt.Println(strings.TrimSpace(core.VersionRevision))
		return
	}
	if parser.Active == nil {
		parser.WriteHelp(os.Stdout)
	}
}
