// Package cli is the command line front end of the substitution engine.
package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-substitute/internal/bootstrap"
	"github.com/noah-isme/sma-substitute/pkg/config"
	"github.com/noah-isme/sma-substitute/pkg/logger"
)

// AppLoader builds the application a command operates on.
type AppLoader func(ctx context.Context) (*bootstrap.App, error)

// LoadFromEnv reads configuration the same way the HTTP server does.
func LoadFromEnv(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, logr)
}

// NewRootCmd returns the substitute command tree.
func NewRootCmd(version string, load AppLoader) *cobra.Command {
	if load == nil {
		load = LoadFromEnv
	}
	var asJSON bool

	cmd := &cobra.Command{
		Use:          "substitute",
		Short:        "Assign substitute teachers to the classes of absent teachers",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	env := &cmdEnv{load: load, json: &asJSON}
	cmd.AddCommand(newRunCmd(env))
	cmd.AddCommand(newVerifyCmd(env))
	cmd.AddCommand(newExportCmd(env))
	cmd.AddCommand(newTeachersCmd(env))

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}
	return cmd
}

type cmdEnv struct {
	load AppLoader
	json *bool
}

// with loads the app, hands it to fn and closes it afterwards.
func (e *cmdEnv) with(cmd *cobra.Command, fn func(app *bootstrap.App) error) error {
	app, err := e.load(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return fn(app)
}

func (e *cmdEnv) printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func today() string {
	return time.Now().Format("2006-01-02")
}
