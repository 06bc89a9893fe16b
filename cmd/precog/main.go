package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blackcoderx/precog/pkg/credentials"
	"github.com/blackcoderx/precog/pkg/executor"
	"github.com/blackcoderx/precog/pkg/manifest"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(2)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PRECOG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "precog <manifest-file> <output-dir>",
		Short: "Run a declarative API-extraction manifest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], args[1], runFlags{
				Debug:        v.GetBool("debug"),
				RedirectPort: v.GetInt("redirect-port"),
				RedirectURI:  v.GetString("redirect-uri"),
				ForceReauth:  v.GetBool("force-reauth"),
			})
		},
	}

	cmd.Flags().Bool("debug", false, "emit a trace line per traversal decision to stderr")
	cmd.Flags().Int("redirect-port", 3000, "local OAuth2 callback listener port")
	cmd.Flags().String("redirect-uri", "", "override the derived OAuth2 redirect URI")
	cmd.Flags().Bool("force-reauth", false, "clear persisted auth state before running")

	// PRECOG_DEBUG, PRECOG_REDIRECT_PORT, etc. override the flag defaults;
	// an explicit flag on the command line still wins because BindPFlag
	// only supplies viper's fallback, not cobra's own parsing.
	v.BindPFlag("debug", cmd.Flags().Lookup("debug"))
	v.BindPFlag("redirect-port", cmd.Flags().Lookup("redirect-port"))
	v.BindPFlag("redirect-uri", cmd.Flags().Lookup("redirect-uri"))
	v.BindPFlag("force-reauth", cmd.Flags().Lookup("force-reauth"))

	return cmd
}

type runFlags struct {
	Debug        bool
	RedirectPort int
	RedirectURI  string
	ForceReauth  bool
}

func run(ctx context.Context, manifestPath, outputDir string, flags runFlags) error {
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env.local: %w", err)
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
		return nil
	}

	creds, err := credentials.Load(m)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
		return nil
	}

	ex := executor.New(m, ".", executor.Options{
		OutputDir:    outputDir,
		RedirectPort: flags.RedirectPort,
		RedirectURI:  flags.RedirectURI,
		ForceReauth:  flags.ForceReauth,
		Debug:        flags.Debug,
	})

	result, err := ex.Run(ctx, creds)
	if err != nil {
		return err
	}

	printSummary(result)
	return nil
}
