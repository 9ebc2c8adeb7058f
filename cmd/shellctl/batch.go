package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/brettbedarf/shellstore/operations"
	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run a JSON array of requests as one transaction",
	Long: `Run a JSON array of requests as one transaction.

Each request names its operation and the fields it needs:
  [
    {"op": "copy",   "source": "a.txt", "dest": "backup", "name": "a.bak"},
    {"op": "move",   "source": "b.txt", "dest": "archive"},
    {"op": "delete", "source": "c.txt"},
    {"op": "rename", "source": "d.txt", "name": "e.txt"},
    {"op": "create", "dest": "out", "name": "logs", "folder": true}
  ]

Relative paths are resolved against the file's directory.
`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	logger := util.GetLogger("main.batch")
	path := abs(args[0])
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read batch file: %w", err)
	}
	batch, err := operations.UnmarshalRequests(data, filepath.Dir(path))
	if err != nil {
		return err
	}
	logger.Debug().Str("file", path).Int("requests", len(batch)).Msg("batch loaded")
	return perform(cmd, batch)
}
