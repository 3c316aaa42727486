// bundler builds the asset bundles declared in a YAML config file, writes a
// manifest mapping bundle names to fingerprinted artifacts and optionally
// uploads the artifacts to S3-compatible object storage.
//
// Usage:
//
//	bundler --config bundler.yaml [--env production] [--tags] [--publish]
//
// Exit codes: 0 on success, 1 when a bundle fails to build or publish, 2 on
// usage or configuration errors.
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

	"github.com/gophersatwork/bundler"
	"github.com/gophersatwork/bundler/internal/config"
	"github.com/gophersatwork/bundler/internal/publish"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

const (
	exitOK    = 0
	exitBuild = 1
	exitUsage = 2
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type flags struct {
	config   string
	env      string
	manifest string
	logLevel string
	publish  bool
	tags     bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var f flags

	flagSet := pflag.NewFlagSet("bundler", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&f.config, "config", "", "path to bundler.yaml (default: $"+config.EnvConfig+")")
	flagSet.StringVar(&f.env, "env", "", "environment to build for (default: $"+config.EnvEnvironment+", then the file)")
	flagSet.StringVar(&f.manifest, "manifest", "", "write the manifest here instead of the configured path")
	flagSet.BoolVar(&f.publish, "publish", false, "upload artifacts to the configured bucket")
	flagSet.BoolVar(&f.tags, "tags", false, "print the tags of every bundle to stdout")
	flagSet.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if flagSet.NArg() > 0 {
		fmt.Fprintf(stderr, "error: unexpected argument: %s\n", flagSet.Arg(0))
		return exitUsage
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		fmt.Fprintf(stderr, "error: invalid --log-level %q\n", f.logLevel)
		return exitUsage
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(f.config, f.env)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	if f.manifest != "" {
		cfg.Manifest = f.manifest
	}
	if f.publish && !cfg.Publish.Enabled() {
		fmt.Fprintln(stderr, "error: --publish requires publish.bucket in the config")
		return exitUsage
	}

	if err := build(ctx, cfg, f, logger, stdout); err != nil {
		logger.Error("build failed", "error", err)
		return exitBuild
	}
	return exitOK
}

func build(ctx context.Context, cfg *config.Config, f flags, logger *slog.Logger, stdout io.Writer) error {
	fs := afero.NewOsFs()

	options, err := cfg.Options()
	if err != nil {
		return err
	}
	options = append(options, bundler.WithFs(fs), bundler.WithLogger(logger))
	assets := bundler.NewAssets(cfg.AssetsConfig(), options...)

	var publisher *publish.S3Publisher
	if f.publish {
		publisher, err = publish.NewS3Publisher(publish.S3Config{
			Endpoint:  cfg.Publish.Endpoint,
			Region:    cfg.Publish.Region,
			AccessKey: cfg.Publish.AccessKey,
			SecretKey: cfg.Publish.SecretKey,
			Bucket:    cfg.Publish.Bucket,
			Prefix:    cfg.Publish.Prefix,
			UseSSL:    cfg.Publish.UseSSL,
		}, fs, logger)
		if err != nil {
			return err
		}
	}

	if cfg.Ignored() {
		logger.Info("building disabled", "environment", cfg.Environment)
	}

	manifest := bundler.NewManifest()
	for _, b := range cfg.Bundles {
		kind, err := b.KindOf()
		if err != nil {
			return fmt.Errorf("bundle %s: %w", b.Name, err)
		}

		var res *bundler.BuildResult
		if b.Dir != "" {
			res, err = assets.BuildDir(ctx, kind, b.Dir, b.Attrs())
		} else {
			res, err = assets.Build(ctx, kind, b.Files, b.Attrs())
		}
		if err != nil {
			return fmt.Errorf("bundle %s: %w", b.Name, err)
		}

		if f.tags {
			fmt.Fprint(stdout, res.Markup)
		}
		if cfg.Ignored() {
			continue
		}
		logger.Info("bundle ready", "bundle", b.Name, "file", res.Filename, "built", res.Built)
		manifest.Record(b.Name, res)

		if publisher != nil {
			for _, path := range artifactPaths(res.Path, cfg.Precompress) {
				if _, err := publisher.Publish(ctx, path); err != nil {
					return fmt.Errorf("bundle %s: %w", b.Name, err)
				}
			}
		}
	}

	path := cfg.ManifestPath()
	if path == "" || len(manifest.Bundles) == 0 {
		return nil
	}
	if err := manifest.Save(fs, path); err != nil {
		return err
	}
	logger.Info("manifest written", "path", path, "bundles", len(manifest.Bundles))
	return nil
}

// artifactPaths lists an artifact and its precompressed copies.
func artifactPaths(path string, precompress config.PrecompressConfig) []string {
	paths := []string{path}
	if precompress.Gzip {
		paths = append(paths, path+".gz")
	}
	if precompress.Zstd {
		paths = append(paths, path+".zst")
	}
	return paths
}
