package cli

import (
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/docrewind/internal/db"
)

type docJSON struct {
	ID        string `json:"id"`
	Version   int64  `json:"version"`
	Updates   int    `json:"updates"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// newDocsCmd creates the docs command
func newDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs PROJECT",
		Short: "List a project's documents",
		Long: `List every document of a project with its current version and the number
of compacted updates on record. Pending updates are counted separately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]

			env, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			ctx := cmd.Context()
			docs, err := env.backend.ListDocuments(ctx, projectID)
			if err != nil {
				return err
			}
			pending, err := env.backend.CountPending(ctx, projectID)
			if err != nil {
				return err
			}

			if jsonOut {
				out := make([]docJSON, 0, len(docs))
				for _, d := range docs {
					out = append(out, docJSON{
						ID:        d.DocID,
						Version:   d.Version,
						Updates:   d.UpdateCount,
						UpdatedAt: formatTime(d.UpdatedAt),
					})
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"project":   projectID,
					"documents": out,
					"pending":   pending,
				})
			}

			if len(docs) == 0 {
				infof(cmd, "No documents in %s", projectID)
				return nil
			}
			_, _ = cmd.OutOrStdout().Write([]byte(renderDocs(docs, isTerminal(os.Stdout)) + "\n"))
			if pending > 0 {
				infof(cmd, "%d pending updates; run 'docrewind compact %s'", pending, projectID)
			}
			return nil
		},
	}
}

// renderDocs draws the document table. Styling is applied on terminals only.
func renderDocs(docs []db.DocumentSummary, styled bool) string {
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []string{
			d.DocID,
			strconv.FormatInt(d.Version, 10),
			strconv.Itoa(d.UpdateCount),
			formatTime(d.UpdatedAt),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("DOCUMENT", "VERSION", "UPDATES", "UPDATED").
		Rows(rows...)
	if styled {
		header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
		cell := lipgloss.NewStyle().Padding(0, 1)
		t = t.BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("241"))).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return header
				}
				return cell
			})
	}
	return t.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
