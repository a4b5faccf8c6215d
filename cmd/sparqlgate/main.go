// Package main provides the sparqlgate binary entry point.
// sparqlgate is a command-line client for RDF4J triple stores: SPARQL
// queries and updates, named-graph management and saved queries.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sparqlgate"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath  string
	server      string
	repository  string
	username    string
	password    string
	logLevel    string
	jsonOutput  bool
	metricsAddr string
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "RDF4J triple store client",
		Long: `sparqlgate talks to an RDF4J server over its REST protocol.

It provides:
- SELECT, ASK, CONSTRUCT and UPDATE against a repository
- Subject traversal across the default graph and all named graphs
- Named-graph export, replace and delete
- Prefix expansion and compaction from the repository namespaces
- Saved queries in a local directory or a NATS key-value bucket`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	flags.StringVar(&opts.server, "server", "", "RDF4J server URL")
	flags.StringVarP(&opts.repository, "repo", "r", "", "Repository id")
	flags.StringVarP(&opts.username, "user", "u", "", "Basic-auth username")
	flags.StringVarP(&opts.password, "password", "p", "", "Basic-auth password")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	cmd.AddCommand(
		reposCmd(opts),
		namespacesCmd(opts),
		selectCmd(opts),
		askCmd(opts),
		constructCmd(opts),
		updateCmd(opts),
		runCmd(opts),
		traversalCmd(opts, "describe", "Show the triples with IRI as subject", traverseDescription),
		traversalCmd(opts, "references", "Show the triples with IRI as object", traverseReferences),
		traversalCmd(opts, "mentions", "Show every triple mentioning IRI and the graph named IRI", traverseMentions),
		valueCmd(opts),
		contextsCmd(opts),
		expandCmd(opts),
		compactCmd(opts),
		savedCmd(opts),
		configCmd(opts),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

// newLogger builds a text logger on w at the named level.
func newLogger(w io.Writer, logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
