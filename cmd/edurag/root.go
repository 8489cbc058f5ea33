package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/config"
	logpkg "github.com/kailas-cloud/edurag/internal/logger"
	"github.com/kailas-cloud/edurag/internal/version"
)

const serviceName = "edurag"

type rootOptions struct {
	env     string
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Course-grounded retrieval and material generation API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// A missing .env is normal outside local development.
			_ = godotenv.Load(opts.envFile)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.env, "env", "", "config environment (default: $ENV or local)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before config")

	root.AddCommand(
		newServeCmd(opts),
		newIndexCmd(opts),
		newIngestCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s version %s\n", serviceName, version.String())
		},
	}
}

// bootstrap resolves the environment, loads config and builds the logger.
func bootstrap(opts *rootOptions) (string, config.Config, *zap.Logger, error) {
	env := opts.env
	if env == "" {
		env = config.GetEnv()
	}

	cfg, err := config.Load(env)
	if err != nil {
		return "", config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.New(env, logpkg.Options{
		Level:   cfg.Logging.Level,
		Service: serviceName,
		Version: version.Version,
	})
	if err != nil {
		return "", config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return env, cfg, logger, nil
}
