package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kurobon/modelrepo/internal/config"
	"github.com/kurobon/modelrepo/internal/engine"
	"github.com/kurobon/modelrepo/internal/event"
	"github.com/kurobon/modelrepo/internal/grafico"
	"github.com/kurobon/modelrepo/internal/model"
	"github.com/kurobon/modelrepo/internal/repo"
)

type cli struct {
	cfg    *config.Config
	out    io.Writer
	bus    *event.Bus
	engine *engine.Engine
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

type command func(ctx context.Context, args []string) error

func (c *cli) dispatch(ctx context.Context, name string, args []string) error {
	commands := map[string]command{
		"init":   c.initRepo,
		"status": c.status,
		"import": c.importModel,
		"export": c.export,
		"commit": c.commit,
		"switch": c.switchBranch,
		"fetch":  c.fetch,
		"push":   c.push,
	}
	cmd, ok := commands[name]
	if !ok {
		return usagef("unknown command %q", name)
	}
	return cmd(ctx, args)
}

func (c *cli) open(name string) (*repo.Handle, error) {
	return repo.Open(c.cfg.RepositoryPath(name), c.cfg.RepoOptions())
}

// loadHost reads the committed model of h into a live model. A working
// tree without a model gives an empty one.
func loadHost(h *repo.Handle) (*model.Live, error) {
	g, err := grafico.New(grafico.WithIgnore(h.Ignore())).Import(h.FS())
	if err != nil && !grafico.IsNoModel(err) {
		return nil, err
	}
	return model.NewLive(g), nil
}

func oneArg(args []string, what string) (string, error) {
	if len(args) != 1 {
		return "", usagef("expected %s", what)
	}
	return args[0], nil
}

func (c *cli) initRepo(_ context.Context, args []string) error {
	name, err := oneArg(args, "a repository name")
	if err != nil {
		return err
	}
	h, err := repo.Init(c.cfg.RepositoryPath(name), "", c.cfg.RepoOptions())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Initialised empty model repository in %s\n", h.Root())
	return nil
}

func (c *cli) status(ctx context.Context, args []string) error {
	name, err := oneArg(args, "a repository")
	if err != nil {
		return err
	}
	h, err := c.open(name)
	if err != nil {
		return err
	}
	snap, err := c.engine.State(ctx, h)
	if err != nil {
		return err
	}
	st, err := c.engine.Tracker().ComputeStatus(h)
	if err != nil {
		return err
	}

	if snap.Branch == "" {
		fmt.Fprintln(c.out, "HEAD detached")
	} else {
		fmt.Fprintf(c.out, "On branch %s (%s)\n", snap.Branch, snap.State)
	}
	if d := snap.Divergence; d.Upstream != "" {
		fmt.Fprintf(c.out, "Upstream %s: %s, ahead %d, behind %d\n", d.Upstream, snap.Tracking(), d.Ahead, d.Behind)
	}
	if cands := st.SwitchCandidates(); len(cands) > 0 {
		fmt.Fprintln(c.out, "\nOther branches:")
		for _, b := range cands {
			fmt.Fprintf(c.out, "  %s\n", b.Label())
		}
	}
	if !snap.Changes.Empty() {
		fmt.Fprintln(c.out, "\nUncommitted changes:")
		for _, ch := range snap.Changes {
			fmt.Fprintf(c.out, "  %-9s %s\n", ch.Kind.String()+":", ch.Path)
		}
	}
	return nil
}

func (c *cli) importModel(ctx context.Context, args []string) error {
	name, err := oneArg(args, "a repository")
	if err != nil {
		return err
	}
	h, err := c.open(name)
	if err != nil {
		return err
	}
	g, err := c.engine.ImportFromDisk(ctx, model.NewLive(nil), h, engine.ImportOptions{})
	if err != nil {
		return err
	}
	els, rels := g.Len()
	fmt.Fprintf(c.out, "Model %q: %d elements, %d relationships\n", g.Info().Name, els, rels)
	return nil
}

func (c *cli) export(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usagef("expected a repository and a model document")
	}
	h, err := c.open(args[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("read %s: %w", args[1], err)
	}
	g, err := doc.Graph()
	if err != nil {
		return fmt.Errorf("read %s: %w", args[1], err)
	}
	host := model.NewLive(g)
	host.MarkDirty(true)
	changes, err := c.engine.ExportAndStage(ctx, host, h)
	if err != nil {
		return err
	}
	for _, ch := range changes {
		fmt.Fprintf(c.out, "%-9s %s\n", ch.Kind.String()+":", ch.Path)
	}
	fmt.Fprintf(c.out, "%d file(s) staged\n", len(changes))
	return nil
}

func (c *cli) commit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("commit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	msg := fs.String("m", "", "commit message")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	name, err := oneArg(fs.Args(), "a repository")
	if err != nil {
		return err
	}
	if *msg == "" {
		return usagef("a commit message is required (-m)")
	}
	h, err := c.open(name)
	if err != nil {
		return err
	}
	id, err := c.engine.Commit(ctx, h, *msg)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Committed %s\n", id.Short())
	return nil
}

func (c *cli) switchBranch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("switch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	force := fs.Bool("force", false, "discard uncommitted changes")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	if fs.NArg() != 2 {
		return usagef("expected a repository and a branch")
	}
	h, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	st, err := c.engine.Tracker().ComputeStatus(h)
	if err != nil {
		return err
	}
	target, ok := st.Find(fs.Arg(1))
	if !ok {
		return &engine.UnknownBranchError{Name: fs.Arg(1)}
	}
	host, err := loadHost(h)
	if err != nil && !*force {
		return err
	}
	if host == nil {
		host = model.NewLive(nil)
	}
	g, err := c.engine.SwitchBranch(ctx, host, h, target, engine.SwitchOptions{Force: *force})
	if err != nil {
		return err
	}
	els, rels := g.Len()
	fmt.Fprintf(c.out, "Switched to %s: %d elements, %d relationships\n", target.ShortName(), els, rels)
	return nil
}

func (c *cli) fetch(ctx context.Context, args []string) error {
	name, err := oneArg(args, "a repository")
	if err != nil {
		return err
	}
	h, err := c.open(name)
	if err != nil {
		return err
	}
	if err := c.engine.Fetch(ctx, h); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Fetched from %s\n", h.RemoteName())
	return nil
}

func (c *cli) push(ctx context.Context, args []string) error {
	name, err := oneArg(args, "a repository")
	if err != nil {
		return err
	}
	h, err := c.open(name)
	if err != nil {
		return err
	}
	if err := c.engine.Push(ctx, h); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Pushed to %s\n", h.RemoteName())
	return nil
}
