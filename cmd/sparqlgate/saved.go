package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/c360studio/sparqlgate/savedquery"
)

func savedCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved queries",
		Long: `Manage saved queries.

Saved queries are numbered by position starting at 1; deleting one
renumbers those after it. Each query also has a stable key.`,
	}

	cmd.AddCommand(
		savedListCmd(opts),
		savedSaveCmd(opts),
		savedDeleteCmd(opts),
		savedImportCmd(opts),
	)
	return cmd
}

func savedListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			queries, err := app.client.SavedQueries(cmd.Context())
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), opts.jsonOutput)
			if p.json {
				return p.JSON(queries)
			}
			rows := make([][]string, 0, len(queries))
			for _, q := range queries {
				rows = append(rows, []string{strconv.Itoa(q.ID), q.Key, q.Title, firstLine(q.QueryString)})
			}
			return p.Table([]string{"ID", "KEY", "TITLE", "QUERY"}, rows)
		},
	}
}

func savedSaveCmd(opts *globalOptions) *cobra.Command {
	var (
		input queryInput
		title string
	)

	cmd := &cobra.Command{
		Use:   "save [QUERY]",
		Short: "Save a query",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := input.text(cmd, args)
			if err != nil {
				return err
			}
			if title == "" && input.file != "" && input.file != "-" {
				title = titleFromPath(input.file)
			}
			if title == "" {
				return fmt.Errorf("--title is required")
			}

			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			saved, err := app.client.SaveQuery(cmd.Context(), savedquery.Query{Title: title, QueryString: query})
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), opts.jsonOutput)
			if p.json {
				return p.JSON(saved)
			}
			p.Line("saved %d %s", saved.ID, saved.Key)
			return nil
		},
	}
	input.register(cmd)
	cmd.Flags().StringVarP(&title, "title", "t", "", "Title (default from the file name)")
	return cmd
}

func savedDeleteCmd(opts *globalOptions) *cobra.Command {
	var byKey bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved query by position, or by key with --key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if byKey {
				return app.client.DeleteQueryByKey(ctx, args[0])
			}

			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid query id %q", args[0])
			}
			return app.client.DeleteQuery(ctx, id)
		},
	}
	cmd.Flags().BoolVar(&byKey, "key", false, "Treat the argument as a stable key")
	return cmd
}

func savedImportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import PATTERN...",
		Short: "Save every query file matching the patterns",
		Long: `Save every file matching the glob patterns as a query titled after
its path. Patterns support ** for any number of directories, e.g.

  sparqlgate saved import 'queries/**/*.rq'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			for _, pattern := range args {
				matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
				if err != nil {
					return fmt.Errorf("glob error: %w", err)
				}
				files = append(files, matches...)
			}
			if len(files) == 0 {
				return fmt.Errorf("no files match %s", strings.Join(args, " "))
			}

			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			p := newPrinter(cmd.OutOrStdout(), opts.jsonOutput)
			var imported []savedquery.Query
			for _, path := range files {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				if strings.TrimSpace(string(data)) == "" {
					app.logger.Warn("Skipping empty query file", "path", path)
					continue
				}

				saved, err := app.client.SaveQuery(cmd.Context(), savedquery.Query{
					Title:       titleFromPath(path),
					QueryString: string(data),
				})
				if err != nil {
					return fmt.Errorf("save %s: %w", path, err)
				}
				imported = append(imported, saved)
				if !p.json {
					p.Line("saved %d %s", saved.ID, saved.Title)
				}
			}

			if p.json {
				return p.JSON(imported)
			}
			return nil
		},
	}
}

// titleFromPath turns "queries/people/by-name.rq" into "queries/people/by-name".
func titleFromPath(path string) string {
	path = filepath.ToSlash(filepath.Clean(path))
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i]) + " ..."
	}
	return s
}
