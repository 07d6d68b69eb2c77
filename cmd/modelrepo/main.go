package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/config"
	"github.com/kurobon/modelrepo/internal/engine"
	"github.com/kurobon/modelrepo/internal/event"
	"github.com/kurobon/modelrepo/internal/jobs"
	"github.com/kurobon/modelrepo/internal/server"
)

const usage = `Usage: modelrepo [-config file] <command> [arguments]

Commands:
  serve                      run the HTTP API
  init <repo>                create a repository in the repository folder
  status <repo>              show branches and uncommitted changes
  import <repo>              read the model from the working tree
  export <repo> <model.json> write a model document into the working tree
  commit -m <message> <repo> commit the working tree
  switch [-force] <repo> <branch>
  fetch <repo>
  push <repo>
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("modelrepo", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", "", "TOML configuration file")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	setupLogging(cfg, stderr)

	c := &cli{cfg: cfg, out: stdout, bus: event.NewBus()}
	c.engine = engine.New(engine.WithAuthor(cfg.Author()), engine.WithPublisher(c.bus))

	cmd, rest := global.Arg(0), global.Args()[1:]
	if cmd == "serve" {
		err = c.serve(ctx, rest)
	} else {
		err = c.dispatch(ctx, cmd, rest)
	}
	var uerr usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &uerr):
		fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
		return 2
	default:
		log.Debug().Err(err).Str("command", cmd).Msg("command failed")
		fmt.Fprintf(stderr, "Error: %s\n", engine.UserMessage(err))
		return 1
	}
}

func setupLogging(cfg *config.Config, w io.Writer) {
	zerolog.SetGlobalLevel(cfg.Level())
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
}

func (c *cli) serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", c.cfg.Listen, "address to listen on")
	watchTrees := fs.Bool("watch", true, "watch working trees for outside changes")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}

	c.bus.Subscribe(event.ListenerFunc(func(e event.Event) {
		name := ""
		if e.Repository != nil {
			name = e.Repository.Name()
		}
		log.Info().Str("repo", name).Stringer("event", e.Kind).Msg("repository event")
	}))

	runner := jobs.NewRunner()
	go func() {
		for res := range runner.Results() {
			if res.Err != nil {
				log.Warn().Str("job", res.Job.Name).Msg(engine.UserMessage(res.Err))
			}
		}
	}()
	ws := server.NewWorkspace(c.cfg, c.bus, *watchTrees)
	srv := &http.Server{
		Addr:              *listen,
		Handler:           server.NewServer(ws, c.engine, runner, c.bus),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", *listen).Str("folder", c.cfg.UserRepositoryFolder()).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		runner.Close()
		ws.Close()
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	runner.Close()
	ws.Close()
	return err
}
