package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360studio/sparqlgate/export"
	"github.com/c360studio/sparqlgate/iri"
	"github.com/c360studio/sparqlgate/sparql"
)

// traversal is one of the client's subject traversals.
type traversal func(ctx context.Context, a *App, subjectIRI string) (*sparql.SelectResult, error)

func traverseDescription(ctx context.Context, a *App, subjectIRI string) (*sparql.SelectResult, error) {
	return a.client.SubjectDescription(ctx, subjectIRI)
}

func traverseReferences(ctx context.Context, a *App, subjectIRI string) (*sparql.SelectResult, error) {
	return a.client.SubjectReferences(ctx, subjectIRI)
}

func traverseMentions(ctx context.Context, a *App, subjectIRI string) (*sparql.SelectResult, error) {
	return a.client.SubjectMentions(ctx, subjectIRI)
}

// codecIf returns the repository codec when want is set, nil otherwise.
func (a *App) codecIf(ctx context.Context, want bool) *iri.Codec {
	if !want {
		return nil
	}
	codec := a.client.Codec(ctx)
	if codec.Degraded() {
		a.logger.Warn("Using default prefixes only", "error", codec.Err())
	}
	return codec
}

func traversalCmd(opts *globalOptions, name, short string, fn traversal) *cobra.Command {
	var (
		format  string
		compact bool
	)

	cmd := &cobra.Command{
		Use:   name + " IRI",
		Short: short,
		Long: short + `.

IRI may be written in full or as prefix:local using the repository
namespaces. --format selects table (default), turtle or nquads.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			codec := app.client.Codec(ctx)
			subject := codec.Expand(args[0])
			if !sparql.ValidIRIRef(subject) {
				return fmt.Errorf("%q is not a valid IRI", subject)
			}

			result, err := fn(ctx, app, subject)
			if err != nil {
				return err
			}
			return writeTraversal(cmd.OutOrStdout(), newPrinter(cmd.OutOrStdout(), opts.jsonOutput), result, codec, format, compact)
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, turtle or nquads")
	cmd.Flags().BoolVar(&compact, "compact", true, "Show IRIs as prefix:local in table output")
	return cmd
}

// writeTraversal prints traversal rows in the requested form.
func writeTraversal(w io.Writer, p *printer, result *sparql.SelectResult, codec *iri.Codec, format string, compact bool) error {
	if format == "table" || p.json {
		if !compact {
			codec = nil
		}
		return p.SelectResult(result, codec, false)
	}

	info, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	statements, err := export.RowsToStatements(result)
	if err != nil {
		return err
	}

	switch info.Name {
	case export.FormatTurtle:
		return export.WriteTurtle(w, codec, statements)
	case export.FormatNQuads:
		return export.WriteNQuads(w, statements)
	default:
		return fmt.Errorf("traversal output supports table, turtle and nquads, not %s", info.Name)
	}
}

func valueCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "value SUBJECT PROPERTY",
		Short: "Read one property value through the subject resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			codec := app.client.Codec(ctx)
			v, err := app.client.SubjectValue(ctx, codec.Expand(args[0]), codec.Expand(args[1]))
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), opts.jsonOutput)
			if p.json {
				return p.JSON(v)
			}
			p.Line("%s", formatValue(*v, codec))
			return nil
		},
	}
}

func contextsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contexts",
		Short: "List and manage named graphs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the named graphs of the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			contexts, err := app.client.Contexts(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout(), opts.jsonOutput)
			if p.json {
				return p.JSON(contexts)
			}
			rows := make([][]string, 0, len(contexts))
			for _, c := range contexts {
				rows = append(rows, []string{c.IRI})
			}
			return p.Table([]string{"CONTEXT"}, rows)
		},
	})

	var (
		exportFormat string
		outPath      string
	)
	exportCmd := &cobra.Command{
		Use:   "export IRI",
		Short: "Write the statements of a named graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := resolveFormat(exportFormat, outPath)
			if err != nil {
				return err
			}
			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			graph := app.client.Codec(ctx).Expand(args[0])

			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			n, err := app.client.ExportContext(ctx, graph, info.MIMEType, w)
			if err != nil {
				return err
			}
			app.logger.Info("Exported context", "context", graph, "format", info.Name, "bytes", n)
			return nil
		},
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Format name or MIME type (default from --output extension, else turtle)")
	exportCmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to this file instead of stdout")
	cmd.AddCommand(exportCmd)

	var replaceFormat string
	replaceCmd := &cobra.Command{
		Use:   "replace IRI FILE",
		Short: "Replace the statements of a named graph with the contents of FILE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := resolveFormat(replaceFormat, args[1])
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open data file: %w", err)
			}
			defer f.Close()

			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			graph := app.client.Codec(ctx).Expand(args[0])
			if err := app.client.ReplaceContext(ctx, graph, info.MIMEType, f); err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout(), false).Line("replaced %s", graph)
			return nil
		},
	}
	replaceCmd.Flags().StringVar(&replaceFormat, "format", "", "Format name or MIME type (default from FILE extension)")
	cmd.AddCommand(replaceCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete IRI",
		Short: "Remove all statements of a named graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			graph := app.client.Codec(ctx).Expand(args[0])
			ok, err := app.client.DeleteContext(ctx, graph)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("server did not confirm deleting %s", graph)
			}
			newPrinter(cmd.OutOrStdout(), false).Line("deleted %s", graph)
			return nil
		},
	})

	return cmd
}

// resolveFormat picks the format from an explicit flag, then the file
// extension, then Turtle.
func resolveFormat(flag, path string) (export.FormatInfo, error) {
	if flag != "" {
		return export.ParseFormat(flag)
	}
	if path != "" {
		return export.FormatFromFilename(path)
	}
	info, _ := export.GetFormatInfo(export.FormatTurtle)
	return info, nil
}

func reposCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repos",
		Short: "List the repositories on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			repos, err := app.client.Repositories(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout(), opts.jsonOutput)
			if p.json {
				return p.JSON(repos)
			}
			rows := make([][]string, 0, len(repos))
			for _, r := range repos {
				rows = append(rows, []string{r.ID, r.Title, fmt.Sprint(r.Readable), fmt.Sprint(r.Writable)})
			}
			return p.Table([]string{"ID", "TITLE", "READABLE", "WRITABLE"}, rows)
		},
	}
}

func namespacesCmd(opts *globalOptions) *cobra.Command {
	var overlaps bool

	cmd := &cobra.Command{
		Use:   "namespaces",
		Short: "List the prefixes used to compact IRIs",
		Long: `List the codec prefix table: the built-in rdf, rdfs, xsd and owl
prefixes overlaid with the repository namespaces.

--overlaps reports namespace pairs where one IRI starts with another; for
those the earlier prefix in the table wins when compacting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			codec := app.client.Codec(cmd.Context())
			if codec.Degraded() {
				return fmt.Errorf("fetch namespaces: %w", codec.Err())
			}

			p := newPrinter(cmd.OutOrStdout(), opts.jsonOutput)
			if overlaps {
				found := codec.Overlaps()
				if p.json {
					return p.JSON(found)
				}
				rows := make([][]string, 0, len(found))
				for _, o := range found {
					rows = append(rows, []string{o.First.Prefix, o.First.IRI, o.Second.Prefix, o.Second.IRI})
				}
				return p.Table([]string{"WINS", "NAMESPACE", "SHADOWED", "NAMESPACE"}, rows)
			}

			namespaces := codec.Namespaces()
			if p.json {
				return p.JSON(namespaces)
			}
			rows := make([][]string, 0, len(namespaces))
			for _, ns := range namespaces {
				rows = append(rows, []string{ns.Prefix, ns.IRI})
			}
			return p.Table([]string{"PREFIX", "NAMESPACE"}, rows)
		},
	}
	cmd.Flags().BoolVar(&overlaps, "overlaps", false, "Show namespaces that shadow each other when compacting")
	return cmd
}

func expandCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "expand NAME...",
		Short: "Expand prefix:local names to full IRIs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mapWithCodec(cmd, opts, args, (*iri.Codec).Expand)
		},
	}
}

func compactCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compact IRI...",
		Short: "Compact full IRIs to prefix:local names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mapWithCodec(cmd, opts, args, (*iri.Codec).Compact)
		},
	}
}

// mapWithCodec prints fn applied to each argument, one per line.
func mapWithCodec(cmd *cobra.Command, opts *globalOptions, args []string, fn func(*iri.Codec, string) string) error {
	app, err := opts.newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	codec := app.codecIf(cmd.Context(), true)
	p := newPrinter(cmd.OutOrStdout(), opts.jsonOutput)
	if p.json {
		out := make(map[string]string, len(args))
		for _, a := range args {
			out[a] = fn(codec, a)
		}
		return p.JSON(out)
	}
	for _, a := range args {
		p.Line("%s", fn(codec, a))
	}
	return nil
}
