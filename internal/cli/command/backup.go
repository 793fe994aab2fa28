package command

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/simvault-go/internal/storage/backup"
)

// BackupCommand returns the backup subcommand group.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Manage retained backups",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List retained backups, oldest first",
				Action: backupListAction,
			},
			{
				Name:  "prune",
				Usage: "Delete the oldest backups down to a count",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "keep",
						Usage: "Number of backups to keep",
						Value: backup.DefaultRetentionCount,
					},
				},
				Action: backupPruneAction,
			},
		},
	}
}

func newRotator(c *cli.Context) (*backup.Rotator, error) {
	cfg := Conf(c)
	return backup.NewRotator(
		filepath.Join(cfg.Storage.DataDir, backup.DirName),
		cfg.Storage.MaxBackups,
		Logger(c),
	)
}

func backupListAction(c *cli.Context) error {
	rotator, err := newRotator(c)
	if err != nil {
		return err
	}
	infos, err := rotator.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(c.App.Writer, "no backups")
		return nil
	}

	for _, info := range infos {
		manifest := "yes"
		if info.ManifestPath == "" {
			manifest = "no"
		}
		fmt.Fprintf(c.App.Writer, "%s  %8d bytes  manifest: %s\n", info.ID, info.Size, manifest)
	}
	return nil
}

func backupPruneAction(c *cli.Context) error {
	rotator, err := newRotator(c)
	if err != nil {
		return err
	}

	keep := c.Int("keep")
	before, err := rotator.Count()
	if err != nil {
		return err
	}
	if err := rotator.PruneTo(keep); err != nil {
		return err
	}
	after, err := rotator.Count()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "pruned %d backup(s), %d remain\n", before-after, after)
	return nil
}
