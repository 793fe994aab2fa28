package command

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/simvault-go/internal/storage/wal"
)

// WALCommand returns the wal subcommand group.
func WALCommand() *cli.Command {
	return &cli.Command{
		Name:  "wal",
		Usage: "Inspect or clear the transaction journal",
		Subcommands: []*cli.Command{
			{
				Name:   "inspect",
				Usage:  "Classify the journal and print its entries",
				Action: walInspectAction,
			},
			{
				Name:   "clear",
				Usage:  "Reset the journal to idle",
				Action: walClearAction,
			},
		},
	}
}

func walPath(c *cli.Context) string {
	return filepath.Join(Conf(c).Storage.DataDir, wal.DefaultFilename)
}

func walInspectAction(c *cli.Context) error {
	state, entries, err := wal.Inspect(walPath(c))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "state: %s\n", state)
	for _, e := range entries {
		ts := time.UnixMilli(e.Timestamp).UTC().Format(time.RFC3339)
		if e.Provider != "" {
			fmt.Fprintf(c.App.Writer, "%s  %-14s provider=%s checksum=%s\n", ts, e.Op, e.Provider, e.Checksum)
		} else {
			fmt.Fprintf(c.App.Writer, "%s  %s\n", ts, e.Op)
		}
	}
	return nil
}

func walClearAction(c *cli.Context) error {
	if err := wal.Clear(walPath(c)); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "journal cleared")
	return nil
}
