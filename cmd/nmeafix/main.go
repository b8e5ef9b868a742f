package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"nmeafix/internal/config"
	"nmeafix/internal/nmea"
)

type options struct {
	ConfigPath   string
	Input        string
	Capture      bool
	CompleteOnly bool
	Quality      bool
	Summary      bool
	Checksum     string
	LogLevel     string
}

var errHelp = errors.New("help requested")

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("nmeafix", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to YAML config.")
	fs.StringVarP(&opts.Input, "input", "i", "", "Parse this file once and exit; - reads stdin.")
	fs.BoolVar(&opts.Capture, "capture", false, "Input is a capture log written by gps.record.")
	fs.BoolVar(&opts.CompleteOnly, "complete-only", false, "Print only records with date, time and position.")
	fs.BoolVar(&opts.Quality, "quality", false, "Print only records that pass the quality thresholds.")
	fs.BoolVar(&opts.Summary, "summary", false, "Print a text summary instead of JSON records.")
	fs.StringVar(&opts.Checksum, "checksum", "", "Checksum mode override: present, require or ignore.")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level override: debug, info, warn or error.")
	help := fs.BoolP("help", "h", false, "Display help text.")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: nmeafix [options]\n\n")
		fmt.Fprintf(stderr, "Without --input, runs the configured source until interrupted.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if *help {
		fs.Usage()
		return options{}, errHelp
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if opts.Input == "" && opts.ConfigPath == "" {
		return options{}, fmt.Errorf("--config is required without --input")
	}
	if opts.Input == "" && (opts.Capture || opts.CompleteOnly || opts.Quality || opts.Summary) {
		return options{}, fmt.Errorf("--capture, --complete-only, --quality and --summary need --input")
	}
	return opts, nil
}

// loadConfig reads the config file, or starts from defaults for one-shot
// runs without one, then applies flag overrides.
func loadConfig(opts options) (config.Config, error) {
	var cfg config.Config
	if opts.ConfigPath != "" {
		var err error
		cfg, err = config.Load(opts.ConfigPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("config load failed: %w", err)
		}
	} else {
		cfg = config.Default()
	}

	if opts.Checksum != "" {
		if _, err := nmea.ParseChecksumMode(opts.Checksum); err != nil {
			return config.Config{}, fmt.Errorf("--checksum: %w", err)
		}
		cfg.GPS.Checksum = opts.Checksum
	}
	if opts.LogLevel != "" {
		if _, err := log.ParseLevel(opts.LogLevel); err != nil {
			return config.Config{}, fmt.Errorf("--log-level: %w", err)
		}
		cfg.Log.Level = opts.LogLevel
	}
	return cfg, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, errHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "nmeafix: %v\n", err)
		return 2
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "nmeafix: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.Input != "" {
		closeLogs, err := setupLogging(cfg.Log, stderr, nil)
		if err != nil {
			fmt.Fprintf(stderr, "nmeafix: %v\n", err)
			return 1
		}
		defer closeLogs()
		if err := runOneShot(ctx, cfg, opts, stdin, stdout); err != nil {
			log.Error("parse failed", "input", opts.Input, "err", err)
			return 1
		}
		return 0
	}

	if err := runService(ctx, cfg, stderr); err != nil {
		log.Error("nmeafix stopped", "err", err)
		return 1
	}
	return 0
}
