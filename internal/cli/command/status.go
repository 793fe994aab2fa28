package command

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/simvault-go/internal/storage/backup"
	"github.com/yndnr/simvault-go/internal/storage/checksum"
	"github.com/yndnr/simvault-go/internal/storage/snapshot"
	"github.com/yndnr/simvault-go/internal/storage/wal"
)

// StatusCommand returns the status subcommand.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Summarize the data directory: last save, journal state, backups",
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	cfg := Conf(c)
	dir := cfg.Storage.DataDir

	hasher, err := checksum.New(checksum.Kind(cfg.Storage.Checksum))
	if err != nil {
		return err
	}
	loader := snapshot.NewLoader(dir, hasher, Logger(c))

	fmt.Fprintf(c.App.Writer, "data directory: %s\n", dir)

	m, err := loader.LoadManifest()
	switch {
	case errors.Is(err, snapshot.ErrNoManifest):
		fmt.Fprintln(c.App.Writer, "last save:      none")
	case err != nil:
		return err
	default:
		fmt.Fprintf(c.App.Writer, "last save:      %s (tick %d, day %d)\n", m.SavedAt, m.Tick, m.Day)
		fmt.Fprintf(c.App.Writer, "data version:   %s\n", m.DataVersion)
		dirty := 0
		for _, e := range m.Entries {
			if e.Dirty {
				dirty++
			}
		}
		fmt.Fprintf(c.App.Writer, "providers:      %d (%d dirty at last save)\n", len(m.Entries), dirty)
		fmt.Fprintf(c.App.Writer, "compressed:     %v\n", m.Compressed)
	}

	state, entries, err := wal.Inspect(filepath.Join(dir, wal.DefaultFilename))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "journal:        %s (%d entries)\n", state, len(entries))

	rotator, err := backup.NewRotator(filepath.Join(dir, backup.DirName), cfg.Storage.MaxBackups, Logger(c))
	if err != nil {
		return err
	}
	count, err := rotator.Count()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "backups:        %d (retention %d)\n", count, cfg.Storage.MaxBackups)
	return nil
}
