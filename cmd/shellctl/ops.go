package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/brettbedarf/shellstore/operations"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cpCmd = &cobra.Command{
	Use:   "cp <source>... <folder>",
	Short: "Copy items into a folder",
	Args:  cobra.MinimumNArgs(2),
	RunE:  transfer(operations.OpCopy),
}

var mvCmd = &cobra.Command{
	Use:   "mv <source>... <folder>",
	Short: "Move items into a folder",
	Args:  cobra.MinimumNArgs(2),
	RunE:  transfer(operations.OpMove),
}

var rmCmd = &cobra.Command{
	Use:   "rm <item>...",
	Short: "Delete items, recycling them when allowed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRm,
}

var renameCmd = &cobra.Command{
	Use:   "rename <item> <name>",
	Short: "Rename an item in place",
	Args:  cobra.ExactArgs(2),
	RunE:  runRename,
}

var newCmd = &cobra.Command{
	Use:   "new <folder> <name>",
	Short: "Create a file or folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runNew,
}

func init() {
	for _, c := range []*cobra.Command{cpCmd, mvCmd} {
		c.Flags().StringP("name", "n", "", "Target name; only valid with a single source")
	}
	newCmd.Flags().BoolP("folder", "d", false, "Create a folder instead of a file")
	newCmd.Flags().StringP("template", "t", "", "File whose content seeds the new file")
	rootCmd.AddCommand(cpCmd, mvCmd, rmCmd, renameCmd, newCmd)
}

func transfer(op operations.Op) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		sources, dest := args[:len(args)-1], args[len(args)-1]
		if name != "" && len(sources) > 1 {
			return fmt.Errorf("--name needs exactly one source, got %d", len(sources))
		}
		batch := make([]operations.Request, 0, len(sources))
		for _, src := range sources {
			batch = append(batch, operations.Request{Op: op, Source: abs(src), Dest: abs(dest), Name: name})
		}
		return perform(cmd, batch)
	}
}

func runRm(cmd *cobra.Command, args []string) error {
	batch := make([]operations.Request, 0, len(args))
	for _, path := range args {
		batch = append(batch, operations.Request{Op: operations.OpDelete, Source: abs(path)})
	}
	return perform(cmd, batch)
}

func runRename(cmd *cobra.Command, args []string) error {
	return perform(cmd, []operations.Request{{Op: operations.OpRename, Source: abs(args[0]), Name: args[1]}})
}

func runNew(cmd *cobra.Command, args []string) error {
	folder, _ := cmd.Flags().GetBool("folder")
	template, _ := cmd.Flags().GetString("template")
	if template != "" {
		template = abs(template)
	}
	return perform(cmd, []operations.Request{{
		Op:       operations.OpCreate,
		Dest:     abs(args[0]),
		Name:     args[1],
		Template: template,
		Folder:   folder,
	}})
}

func abs(path string) string {
	if p, err := filepath.Abs(path); err == nil {
		return p
	}
	return path
}

// perform runs batch and prints one line per processed item.
func perform(cmd *cobra.Command, batch []operations.Request) error {
	logger := util.GetLogger("main.perform")
	out := cmd.OutOrStdout()
	started := time.Now()

	res, err := operations.Perform(cmd.Context(), cfg, batch, func(ev *operations.Event) {
		if ev.Kind == operations.ProgressUpdated {
			logger.Debug().Uint32("done", ev.WorkDone).Uint32("total", ev.WorkTotal).Msg("progress")
		}
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, item := range res.Items {
		subject := item.Source
		if subject == "" {
			subject = filepath.Join(item.Dest, item.Name)
		}
		line := fmt.Sprintf("%-12s %s", item.Kind, subject)
		if item.Result != "" && item.Result != subject {
			line += " -> " + item.Result
		}
		if item.Status.Failed() {
			failed++
			line += " (" + item.Status.String() + ")"
		}
		fmt.Fprintln(out, line)
	}
	logger.Info().
		Str("items", humanize.Comma(int64(len(res.Items)))).
		Int("failed", failed).
		Bool("aborted", res.Aborted).
		Dur("elapsed", time.Since(started)).
		Msg("operations finished")
	if res.Status.Failed() {
		return fmt.Errorf("%s of %s items failed: %w", humanize.Comma(int64(failed)), humanize.Comma(int64(len(res.Items))), res.Status)
	}
	return nil
}
