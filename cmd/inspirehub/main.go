package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"

	"thde.io/inspirehub"
	"thde.io/inspirehub/config"
	"thde.io/inspirehub/storage"
)

func main() {
	var cli CLI

	kctx := kong.Parse(
		&cli,
		kong.UsageOnError(),
		kong.Name("inspirehub"),
		kong.Description("Command line client for the InspireHub social feed"),
	)

	// See respective commands Run() methods
	err := run(kctx, &cli)
	if cli.Debug && err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", trace.DebugReport(err))
	}
	kctx.FatalIfErrorf(err)
}

func run(kctx *kong.Context, cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return trace.Wrap(err)
	}

	logger := log.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger.SetLevel(cfg.Level())
	if cli.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	store, err := storage.NewDiskStore(cfg.StorageDir, logger)
	if err != nil {
		return trace.Wrap(err)
	}

	client, err := inspirehub.New(cfg.APIBaseURL,
		inspirehub.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		inspirehub.WithAuthScheme(cfg.AuthScheme),
		inspirehub.WithCredentialStore(store),
		inspirehub.WithLogger(logger),
	)
	if err != nil {
		return trace.Wrap(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if _, err := client.Session().Restore(ctx); err != nil {
		return trace.Wrap(err)
	}

	return kctx.Run(&app{
		ctx:    ctx,
		client: client,
		cfg:    cfg,
		out:    os.Stdout,
		log:    logger,
	})
}
