package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/sparqlgate/export"
	"github.com/c360studio/sparqlgate/gateway"
	"github.com/c360studio/sparqlgate/sparql"
)

// queryInput is where a command reads its query text from.
type queryInput struct {
	file string
}

func (q *queryInput) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&q.file, "file", "f", "", "Read the query from this file (- for stdin)")
}

// text returns the query from the positional argument or the --file flag.
func (q *queryInput) text(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case len(args) > 0 && q.file != "":
		return "", fmt.Errorf("give the query as an argument or with --file, not both")
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case q.file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case q.file != "":
		data, err := os.ReadFile(q.file)
		if err != nil {
			return "", fmt.Errorf("read query file: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("no query given")
	}
}

func selectCmd(opts *globalOptions) *cobra.Command {
	var (
		input   queryInput
		limit   int
		compact bool
		native  bool
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "select [QUERY]",
		Short: "Run a SELECT query",
		Long: `Run a SELECT query and print the bindings as a table.

With --watch the query file is re-run every time it changes, until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch && (input.file == "" || input.file == "-") {
				return fmt.Errorf("--watch needs --file")
			}

			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			p := newPrinter(cmd.OutOrStdout(), opts.jsonOutput)
			runOnce := func(ctx context.Context) error {
				query, err := input.text(cmd, args)
				if err != nil {
					return err
				}
				var qopts []gateway.QueryOption
				if limit > 0 {
					qopts = append(qopts, gateway.WithLimit(limit))
				}
				result, err := app.client.Select(ctx, query, qopts...)
				if err != nil {
					return err
				}
				return p.SelectResult(result, app.codecIf(ctx, compact), native)
			}

			if !watch {
				return runOnce(cmd.Context())
			}
			return watchFile(cmd.Context(), app.logger, input.file, runOnce)
		},
	}

	input.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Row limit sent to the server (default from config)")
	cmd.Flags().BoolVar(&compact, "compact", false, "Show IRIs as prefix:local")
	cmd.Flags().BoolVar(&native, "native", false, "With --json, print rows as plain objects with typed values")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-run whenever the query file changes")
	return cmd
}

func askCmd(opts *globalOptions) *cobra.Command {
	var input queryInput

	cmd := &cobra.Command{
		Use:   "ask [QUERY]",
		Short: "Run an ASK query",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := input.text(cmd, args)
			if err != nil {
				return err
			}
			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.ask(cmd.Context(), newPrinter(cmd.OutOrStdout(), opts.jsonOutput), query)
		},
	}
	input.register(cmd)
	return cmd
}

func constructCmd(opts *globalOptions) *cobra.Command {
	var (
		input  queryInput
		format string
	)

	cmd := &cobra.Command{
		Use:   "construct [QUERY]",
		Short: "Run a CONSTRUCT or DESCRIBE query and print the graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := input.text(cmd, args)
			if err != nil {
				return err
			}
			info, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.construct(cmd.Context(), cmd.OutOrStdout(), query, info)
		},
	}
	input.register(cmd)
	cmd.Flags().StringVar(&format, "format", string(export.FormatTurtle), "Output format name or MIME type")
	return cmd
}

func updateCmd(opts *globalOptions) *cobra.Command {
	var input queryInput

	cmd := &cobra.Command{
		Use:   "update [UPDATE]",
		Short: "Run a SPARQL UPDATE",
		RunE: func(cmd *cobra.Command, args []string) error {
			update, err := input.text(cmd, args)
			if err != nil {
				return err
			}
			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.update(cmd.Context(), newPrinter(cmd.OutOrStdout(), opts.jsonOutput), update)
		},
	}
	input.register(cmd)
	return cmd
}

func runCmd(opts *globalOptions) *cobra.Command {
	var (
		input   queryInput
		format  string
		compact bool
	)

	cmd := &cobra.Command{
		Use:   "run [QUERY]",
		Short: "Run any query or update, dispatching on its form",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := input.text(cmd, args)
			if err != nil {
				return err
			}
			app, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			p := newPrinter(cmd.OutOrStdout(), opts.jsonOutput)

			kind := sparql.DetectKind(query)
			app.logger.Debug("Detected query form", "kind", kind)

			switch kind {
			case sparql.KindSelect:
				result, err := app.client.Select(ctx, query)
				if err != nil {
					return err
				}
				return p.SelectResult(result, app.codecIf(ctx, compact), false)
			case sparql.KindAsk:
				return app.ask(ctx, p, query)
			case sparql.KindConstruct, sparql.KindDescribe:
				info, err := export.ParseFormat(format)
				if err != nil {
					return err
				}
				return app.construct(ctx, cmd.OutOrStdout(), query, info)
			case sparql.KindUpdate:
				return app.update(ctx, p, query)
			default:
				return fmt.Errorf("cannot tell the query form; use select, ask, construct or update")
			}
		},
	}
	input.register(cmd)
	cmd.Flags().StringVar(&format, "format", string(export.FormatTurtle), "Graph output format for CONSTRUCT and DESCRIBE")
	cmd.Flags().BoolVar(&compact, "compact", false, "Show IRIs as prefix:local")
	return cmd
}

func (a *App) ask(ctx context.Context, p *printer, query string) error {
	result, err := a.client.Ask(ctx, query)
	if err != nil {
		return err
	}
	if p.json {
		return p.JSON(result)
	}
	p.Line("%t", result.Boolean)
	return nil
}

func (a *App) construct(ctx context.Context, w io.Writer, query string, info export.FormatInfo) error {
	body, err := a.client.Construct(ctx, query, info.MIMEType)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, body)
	return err
}

func (a *App) update(ctx context.Context, p *printer, update string) error {
	result, err := a.client.Update(ctx, update)
	if err != nil {
		return err
	}
	if p.json {
		return p.JSON(result)
	}
	p.Line("ok")
	return nil
}
