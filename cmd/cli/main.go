package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/victornm/portal/internal/auth"
	"github.com/victornm/portal/internal/backend"
	"github.com/victornm/portal/internal/catalog"
	"github.com/victornm/portal/internal/cli"
	"github.com/victornm/portal/internal/compiler"
	"github.com/victornm/portal/internal/config"
	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/execution"
	"github.com/victornm/portal/internal/submission"
	"github.com/victornm/portal/internal/telemetry"
)

type Config struct {
	Log telemetry.LogConfig

	Backend struct {
		BaseURL string
		Timeout time.Duration
		Token   string
	}

	ApplicantID string
	HistoryFile string
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	baseURL := flag.String("base", "", "Override backend base URL")
	timeout := flag.Duration("timeout", 0, "Override backend timeout (e.g. 10s)")
	applicant := flag.String("applicant", "", "Override applicant id")
	flag.Parse()

	c, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		c.Backend.BaseURL = *baseURL
	}
	if *timeout > 0 {
		c.Backend.Timeout = *timeout
	}
	if *applicant != "" {
		c.ApplicantID = *applicant
	}
	if c.ApplicantID == "" {
		fmt.Fprintln(os.Stderr, "applicant id is required")
		os.Exit(1)
	}

	flush, err := telemetry.InitLogger(c.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	// The token is never taken from a flag so it stays out of the shell history.
	token := c.Backend.Token
	if t := os.Getenv("PORTAL_TOKEN"); t != "" {
		token = t
	}

	bc := backend.NewClient(backend.Config{
		BaseURL:     c.Backend.BaseURL,
		Timeout:     c.Backend.Timeout,
		Credentials: auth.Static(token),
	})

	cs := catalog.NewService(catalog.Config{Backend: bc})
	applicantID := domain.ID(c.ApplicantID)

	repl := cli.New(cli.Config{
		ApplicantID: applicantID,
		Catalog:     cs,
		Session: compiler.NewSession(compiler.Config{
			ApplicantID: applicantID,
			Catalog:     cs,
			Executor:    execution.NewService(execution.Config{Backend: bc}),
			Recorder:    submission.NewService(submission.Config{Backend: bc}),
		}),
		HistoryFile: c.HistoryFile,
	})

	// Ctrl-C is handled by the line editor: it clears the line, or leaves on an empty one.
	if err := repl.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (Config, error) {
	var c Config
	c.Log.Level = "warn"
	c.Log.Format = "console"
	c.Backend.BaseURL = "http://localhost:8080"
	c.Backend.Timeout = 30 * time.Second
	c.HistoryFile = ".portal_history"

	if err := config.LoadDotEnv(); err != nil {
		return c, err
	}

	if path == "" {
		return c, nil
	}

	if err := config.Load(path, &c); err != nil {
		return c, err
	}
	return c, nil
}
