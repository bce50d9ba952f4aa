// Command pubfront serves or exports a pubfront blog.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"

	"github.com/eringen/pubfront"
	"github.com/eringen/pubfront/scaffold"
	"github.com/eringen/pubfront/views"
)

// version is set at build time via ldflags.
var version = "dev"

// CLI is the command line. Configuration comes from the environment (and
// the optional env file); keys present in the YAML config file win.
type CLI struct {
	Config  string           `short:"c" help:"YAML configuration file (default pubfront.yaml when present)" type:"path"`
	EnvFile string           `name:"env-file" help:"Environment file to load" default:".env" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve  ServeCmd  `cmd:"" default:"1" help:"Serve the site over HTTP"`
	Export ExportCmd `cmd:"" help:"Render the site as static files"`
	Paths  PathsCmd  `cmd:"" help:"List the post paths rendered ahead of time"`
	Init   InitCmd   `cmd:"" help:"Write starter configuration for a new site"`
}

// AfterApply runs after flag parsing and sets up logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", c.EnvFile, err)
	}
	return nil
}

func (c *CLI) app() (*pubfront.App, error) {
	cfg := pubfront.ConfigFromEnv()
	if c.Config == "" {
		if _, err := os.Stat("pubfront.yaml"); err == nil {
			c.Config = "pubfront.yaml"
		}
	}
	if c.Config != "" {
		if err := pubfront.LoadConfigFile(c.Config, &cfg); err != nil {
			return nil, err
		}
	}
	app := pubfront.New(cfg, views.Default())
	if c.Verbose {
		app.Echo.Logger.SetLevel(log.DEBUG)
	} else {
		app.Echo.Logger.SetLevel(log.INFO)
	}
	return app, nil
}

type ServeCmd struct {
	Addr string `help:"Listen address, overrides the configured one"`
}

func (s *ServeCmd) Run(cli *CLI) error {
	app, err := cli.app()
	if err != nil {
		return err
	}
	if s.Addr != "" {
		app.Config.Addr = s.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start(ctx)
	}()
	slog.Info("pubfront starting", "addr", app.Config.Addr, "version", version)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

type ExportCmd struct {
	Out string `short:"o" help:"Output directory" default:"./out" type:"path"`
}

func (e *ExportCmd) Run(cli *CLI) error {
	app, err := cli.app()
	if err != nil {
		return err
	}
	start := time.Now()
	res, err := app.Export(context.Background(), e.Out)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	slog.Info("export complete",
		"out", e.Out,
		"listing_pages", res.ListingPages,
		"posts", res.Posts,
		"took", time.Since(start).Round(time.Millisecond))
	return nil
}

type PathsCmd struct{}

func (PathsCmd) Run(cli *CLI) error {
	app, err := cli.app()
	if err != nil {
		return err
	}
	if err := app.Setup(); err != nil {
		return err
	}
	slugs, err := app.StaticPaths(context.Background())
	if err != nil {
		return err
	}
	for _, slug := range slugs {
		fmt.Println(pubfront.PostURL(slug))
	}
	return nil
}

type InitCmd struct {
	Dir      string `arg:"" optional:"" help:"Site directory" default:"." type:"path"`
	Endpoint string `short:"e" help:"Content API endpoint" default:"https://your-repo.cdn.prismic.io/api/v2"`
	Force    bool   `help:"Overwrite existing files"`
}

func (i *InitCmd) Run() error {
	created, err := scaffold.Write(i.Dir, scaffold.NewData(i.Dir, i.Endpoint), i.Force)
	if err != nil {
		return err
	}
	for _, path := range created {
		fmt.Printf("  created %s\n", path)
	}
	fmt.Println("\nEdit pubfront.yaml, copy .env.example to .env, then run 'pubfront serve'.")
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pubfront"),
		kong.Description("A server-rendered blog front-end for a headless CMS."),
		kong.UsageOnError(),
		kong.Vars{"version": "pubfront " + version},
	)
	if err := ctx.Run(&cli); err != nil {
		slog.Error("command failed", "command", ctx.Command(), "error", err)
		os.Exit(1)
	}
}
