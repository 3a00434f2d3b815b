// rangefetch extracts the metadata fragments of a remote archive into a
// single <archive-id>.xml file using byte-range requests.
//
// Usage:
//
//	rangefetch [flags] <archive-id> <offset-table>
//	rangefetch --all [flags] <offset-table>
//
// The offset table maps archive ids to fragment names and byte ranges:
//
//	{"ARCHIVE1": {"manifest.safe": {"offset_start": 0, "offset_stop": 1024}}}
//
// The S3 strategy reads credentials from AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/meigma/rangefetch"
	"github.com/meigma/rangefetch/offsets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	strategy    string
	codec       string
	workers     int
	urlTemplate string
	outDir      string
	all         bool
	stdout      bool
	overwrite   bool
	logLevel    string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("rangefetch", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML configuration file")
	flagSet.StringVarP(&opts.strategy, "strategy", "s", "s3", "range transport: s3 or http")
	flagSet.StringVar(&opts.codec, "codec", "deflate", "fragment compression: deflate, zstd or store")
	flagSet.IntVarP(&opts.workers, "workers", "w", rangefetch.DefaultWorkers, "concurrent range requests")
	flagSet.StringVar(&opts.urlTemplate, "url-template", "", "download URL template containing {archive}")
	flagSet.StringVarP(&opts.outDir, "out-dir", "o", ".", "directory for <archive-id>.xml")
	flagSet.BoolVar(&opts.all, "all", false, "extract every archive in the offset table")
	flagSet.BoolVar(&opts.stdout, "stdout", false, "write the document to stdout instead of a file")
	flagSet.BoolVar(&opts.overwrite, "overwrite", false, "replace an existing output file")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  rangefetch [flags] <archive-id> <offset-table>\n  rangefetch --all [flags] <offset-table>\n\nFlags:\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", opts.logLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(flagSet, &opts)
	if err != nil {
		return err
	}

	positional := flagSet.Args()
	var archiveID, tablePath string
	switch {
	case opts.all && len(positional) == 1:
		tablePath = positional[0]
	case !opts.all && len(positional) == 2:
		archiveID, tablePath = positional[0], positional[1]
	default:
		flagSet.Usage()
		return fmt.Errorf("%w: expected %s", rangefetch.ErrConfig, expectedArgs(opts.all))
	}
	if opts.all && opts.stdout {
		return fmt.Errorf("%w: --stdout cannot be combined with --all", rangefetch.ErrConfig)
	}

	x, err := rangefetch.New(ctx, cfg,
		rangefetch.WithLogger(logger),
		rangefetch.WithProgress(func(ev rangefetch.ProgressEvent) {
			logger.Debug("progress",
				"stage", ev.Stage.String(),
				"fragment", ev.Fragment,
				"done", ev.FragmentsDone,
				"total", ev.FragmentsTotal,
				"bytes", ev.BytesDone)
		}),
	)
	if err != nil {
		return err
	}

	var sinkOpts []rangefetch.FileSinkOption
	if opts.overwrite {
		sinkOpts = append(sinkOpts, rangefetch.WithOverwrite(true))
	}

	switch {
	case opts.all:
		table, err := offsets.Load(tablePath)
		if err != nil {
			return err
		}
		results, err := x.ExtractAll(ctx, table, rangefetch.NewFileSink(opts.outDir, sinkOpts...))
		if err != nil {
			return err
		}
		for _, r := range results {
			logger.Info("wrote artifact", "archive", r.ArchiveID, "bytes", r.Bytes)
		}
	case opts.stdout:
		table, err := offsets.Load(tablePath)
		if err != nil {
			return err
		}
		set, err := table.FragmentSet(archiveID)
		if err != nil {
			return err
		}
		if _, err := x.Extract(ctx, set, rangefetch.NewWriterSink(stdout)); err != nil {
			return err
		}
	default:
		path, err := x.ExtractArchive(ctx, tablePath, archiveID, opts.outDir, sinkOpts...)
		if err != nil {
			return err
		}
		logger.Info("wrote artifact", "path", path)
	}
	return nil
}

// loadConfig reads the configuration file, if any, and applies the flags
// that were set explicitly on top of it.
func loadConfig(flagSet *pflag.FlagSet, opts *options) (rangefetch.Config, error) {
	cfg := rangefetch.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = rangefetch.LoadConfig(opts.configPath); err != nil {
			return cfg, err
		}
	}

	if opts.configPath == "" || flagSet.Changed("strategy") {
		strategy, err := rangefetch.ParseStrategy(opts.strategy)
		if err != nil {
			return cfg, err
		}
		cfg.Strategy = strategy
	}
	if opts.configPath == "" || flagSet.Changed("codec") {
		codec, err := rangefetch.ParseCodec(opts.codec)
		if err != nil {
			return cfg, err
		}
		cfg.Codec = codec
	}
	if opts.configPath == "" || flagSet.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flagSet.Changed("url-template") {
		cfg.URLTemplate = opts.urlTemplate
	}
	return cfg, cfg.Validate()
}

func expectedArgs(all bool) string {
	if all {
		return "<offset-table>"
	}
	return "<archive-id> <offset-table>"
}
