package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/leapstack-labs/leapview/internal/cli/config"
	"github.com/leapstack-labs/leapview/internal/clipboard"
	"github.com/leapstack-labs/leapview/internal/document"
	"github.com/leapstack-labs/leapview/internal/metrics"
	"github.com/leapstack-labs/leapview/internal/ui"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Host      string
	NoBrowser bool
	Watch     bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Explore a CSV or Parquet file in the browser",
		Long: `Start a local web server exploring one CSV or Parquet file.

Each browser gets its own query session on the server. Its page is redrawn
over the /api/events stream and its actions are posted to /api/run,
/api/more and the other action endpoints. Prometheus metrics are served on
/metrics.`,
		Example: `  # Serve on the default port
  leapview serve people.csv

  # Custom port, no browser
  leapview serve events.parquet --port 3000 --no-browser`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args[0], opts)
		},
	}

	cmd.Flags().Int("port", 0, "Port to serve on (default: 8766)")
	cmd.Flags().StringVar(&opts.Host, "host", "localhost", "Interface to listen on")
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Reload the view when the file changes")

	return cmd
}

func runServe(cmd *cobra.Command, path string, opts *ServeOptions) error {
	if err := config.ValidateSource(path); err != nil {
		return err
	}

	cmdCtx := NewCommandContext(cmd)
	uiCfg := cmdCtx.Cfg.GetUIConfig()
	if cmd.Flags().Changed("port") {
		uiCfg.Port, _ = cmd.Flags().GetInt("port")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	router := ui.NewRouter(nil, cmdCtx.Logger)
	collector := metrics.New()
	doc, err := document.Open(ctx, document.Config{
		Path:      path,
		Session:   cmdCtx.Cfg.Session(),
		Engine:    cmdCtx.Cfg.Engine(),
		Poster:    router,
		Clipboard: clipboard.Detect(),
		Metrics:   collector,
		Notify:    router.Notify,
		Logger:    cmdCtx.Logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = doc.Close() }()

	store, err := cmdCtx.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	secret, err := sessionSecret(uiCfg.SessionSecret)
	if err != nil {
		return err
	}

	server := ui.NewServer(ui.Config{
		Document:      doc,
		Router:        router,
		Store:         store,
		Metrics:       collector,
		Host:          opts.Host,
		Port:          uiCfg.Port,
		Watch:         opts.Watch,
		SessionSecret: secret,
		Logger:        cmdCtx.Logger,
	})

	url := "http://" + server.Addr()
	if !opts.NoBrowser {
		go openBrowser(url)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", doc.Source().Path, url)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	return server.Serve(ctx)
}

// sessionSecret returns the configured secret, or a random one that lasts
// for this process.
func sessionSecret(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
