package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/brettbedarf/shellstore/internal/apartment"
	"github.com/brettbedarf/shellstore/storage"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [folder]",
	Short: "List the items of a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLs,
}

func init() {
	lsCmd.Flags().StringP("glob", "g", "", "Only list names matching this pattern (direct children only)")
	lsCmd.Flags().Bool("files", false, "Only list files")
	lsCmd.Flags().Bool("folders", false, "Only list folders")
	lsCmd.Flags().Bool("mime", false, "Detect and print content types")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	pattern, _ := cmd.Flags().GetString("glob")
	filesOnly, _ := cmd.Flags().GetBool("files")
	foldersOnly, _ := cmd.Flags().GetBool("folders")
	mime, _ := cmd.Flags().GetBool("mime")

	filter := storage.FilterAll
	switch {
	case filesOnly && !foldersOnly:
		filter = storage.FilterFiles
	case foldersOnly && !filesOnly:
		filter = storage.FilterFolders
	}

	out := cmd.OutOrStdout()
	_, err := apartment.Do(cmd.Context(), func() (struct{}, error) {
		s, ok := storage.TryParse(path)
		if !ok {
			return struct{}{}, fmt.Errorf("%s: not found", path)
		}
		defer s.Close()
		folder, ok := s.(*storage.Folder)
		if !ok {
			return struct{}{}, fmt.Errorf("%s: not a folder", path)
		}

		items := folder.Items(filter)
		if pattern != "" {
			if !doublestar.ValidatePattern(pattern) {
				return struct{}{}, fmt.Errorf("invalid pattern %q", pattern)
			}
			items = folder.Match(pattern, filter)
		}
		count := 0
		for item := range items {
			printItem(out, item, mime)
			item.Close()
			count++
		}
		fmt.Fprintf(out, "%s items\n", humanize.Comma(int64(count)))
		return struct{}{}, nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printItem(out io.Writer, item storage.Storable, mime bool) {
	name := item.Name()
	file, ok := item.(*storage.File)
	if !ok {
		fmt.Fprintf(out, "%-6s %10s  %s/\n", "dir", "-", name)
		return
	}
	size := "?"
	if n, err := file.Size(); err == nil {
		size = humanize.IBytes(uint64(n))
	}
	if !mime {
		fmt.Fprintf(out, "%-6s %10s  %s\n", "file", size, name)
		return
	}
	ctype, err := file.ContentType()
	if err != nil {
		ctype = "unknown"
	}
	fmt.Fprintf(out, "%-6s %10s  %s  (%s)\n", "file", size, name, ctype)
}
