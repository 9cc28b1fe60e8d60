package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/randalmurphal/docrewind/internal/archive"
	docerrors "github.com/randalmurphal/docrewind/internal/errors"
)

type entryJSON struct {
	Path     string `json:"path"`
	Size     uint64 `json:"size"`
	Modified string `json:"modified,omitempty"`
}

// newInspectCmd creates the inspect command
func newInspectCmd() *cobra.Command {
	var (
		pattern string
		query   string
		cat     string
	)

	cmd := &cobra.Command{
		Use:   "inspect ARCHIVE",
		Short: "Show what an exported archive contains",
		Long: `Show the entries of an exported archive, or query its manifest.

  docrewind inspect thesis-history.zip
  docrewind inspect thesis-history.zip --entries 'main.tex/updates/*'
  docrewind inspect thesis-history.zip --query 'docs.#.id'
  docrewind inspect thesis-history.zip --cat main.tex/content/start/1

--entries takes a glob where ** crosses directories. --query takes a
gjson path evaluated against manifest.json.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := archive.OpenArchive(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := cmd.OutOrStdout()
			switch {
			case cat != "":
				data, err := a.ReadEntry(cat)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			case query != "":
				return runManifestQuery(out, a, args[0], query)
			default:
				return listEntries(out, a, pattern)
			}
		},
	}

	cmd.Flags().StringVar(&pattern, "entries", "", "only list entries matching this glob")
	cmd.Flags().StringVar(&query, "query", "", "gjson path to evaluate against manifest.json")
	cmd.Flags().StringVar(&cat, "cat", "", "print the content of one entry")
	return cmd
}

func runManifestQuery(w io.Writer, a *archive.Archive, path, query string) error {
	raw, err := a.ReadEntry(archive.ManifestPath)
	if err != nil {
		return docerrors.ErrArchiveInvalid(path, "no manifest.json").WithCause(err)
	}
	if !gjson.ValidBytes(raw) {
		return docerrors.ErrArchiveInvalid(path, "manifest.json is not valid JSON")
	}
	res := gjson.GetBytes(raw, query)
	if !res.Exists() {
		return fmt.Errorf("query %q matched nothing", query)
	}
	if jsonOut {
		_, err = fmt.Fprintln(w, res.Raw)
		return err
	}
	_, err = fmt.Fprintln(w, res.String())
	return err
}

func listEntries(w io.Writer, a *archive.Archive, pattern string) error {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid --entries pattern %q", pattern)
	}

	var matched []archive.EntryInfo
	for _, e := range a.Entries() {
		if pattern != "" {
			ok, err := doublestar.Match(pattern, e.Path)
			if err != nil {
				return fmt.Errorf("match %q: %w", pattern, err)
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, e)
	}

	if jsonOut {
		out := make([]entryJSON, 0, len(matched))
		for _, e := range matched {
			out = append(out, entryJSON{Path: e.Path, Size: e.Size, Modified: formatTime(e.Modified)})
		}
		return printJSON(w, out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range matched {
		modified := ""
		if !e.Modified.IsZero() {
			modified = e.Modified.UTC().Format(time.DateTime)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", e.Path, e.Size, modified)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !quiet {
		_, _ = fmt.Fprintf(w, "%d entries\n", len(matched))
	}
	return nil
}
