package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "github.com/hanpama/gqlserve/internal/config"
	executor "github.com/hanpama/gqlserve/internal/executor"
	introspection "github.com/hanpama/gqlserve/internal/introspection"
	logging "github.com/hanpama/gqlserve/internal/logging"
	persons "github.com/hanpama/gqlserve/internal/persons"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gqlserve",
		Short: "Serve the persons GraphQL schema over HTTP",
		Long: `gqlserve answers GraphQL requests sent as GET query strings,
application/graphql bodies or JSON bodies on /graphql.

Settings come from flags, GQLSERVE_* environment variables and an optional
config file, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Config file (yaml, json or toml).")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd(), newSchemaCmd(), newQueryCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(cmd.Flags(), file)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
}

// newExecutor builds the persons executor, with introspection answered or
// refused according to cfg.
func newExecutor(cfg *config.Config) (*executor.Executor, error) {
	sch := persons.Schema()
	var rt executor.Runtime = persons.NewRuntime()
	if cfg.GraphQL.Introspection {
		rt = introspection.Wrap(rt, sch)
	} else {
		rt = introspection.Disable(rt, sch)
	}
	return executor.NewExecutor(rt, sch, executor.WithDocumentCache(cfg.GraphQL.CacheSize))
}
