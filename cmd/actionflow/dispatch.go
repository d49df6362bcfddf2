package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/engine"
	loader "github.com/alexisbeaulieu97/actionflow/internal/infrastructure/config"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/state"
	"github.com/alexisbeaulieu97/actionflow/internal/session"
	"github.com/alexisbeaulieu97/actionflow/internal/tui"
	"github.com/alexisbeaulieu97/actionflow/internal/validation"
	"github.com/alexisbeaulieu97/actionflow/pkg/diff"
)

type dispatchOptions struct {
	Raw             string
	State           string
	Owner           string
	UserAgent       string
	Variant         string
	AllowCustomHTML bool
	JSON            bool
	Diff            bool
	NonInteractive  bool
}

// target is what a dispatch run resolves its arguments to.
type target struct {
	title string
	root  action.Action
	raw   map[string]any
	seed  map[string]any
}

var dispatchCmdRunner = runDispatch

func newDispatchCmd(a *app) *cobra.Command {
	opts := dispatchOptions{}

	cmd := &cobra.Command{
		Use:   "dispatch [document] [action]",
		Short: "Dispatch an action from a document or raw JSON",
		Long: "Dispatch the root action of a document, one of its named actions, or a raw\n" +
			"JSON action given with --raw, against an in-memory session.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Raw == "" && len(args) == 0 {
				return errors.New("a document path or --raw action is required")
			}
			if opts.Raw != "" && len(args) > 0 {
				return errors.New("--raw cannot be combined with a document")
			}
			if !cmd.Flags().Changed("user-agent") {
				opts.UserAgent = a.cfg.UserAgent
			}
			if !cmd.Flags().Changed("variant") {
				opts.Variant = a.cfg.Variant
			}
			if !cmd.Flags().Changed("allow-custom-html") {
				opts.AllowCustomHTML = a.cfg.AllowCustomHTML
			}
			opts.NonInteractive = opts.JSON || !isTerminal(cmd.OutOrStdout())
			return dispatchCmdRunner(cmd.Context(), a, cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Raw, "raw", "", "Raw JSON action to dispatch")
	cmd.Flags().StringVar(&opts.State, "state", "", "JSON object merged over the document's initial state")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "Owner id bound to cancellable work")
	cmd.Flags().StringVar(&opts.UserAgent, "user-agent", "", "User agent seen by userAgent conditions")
	cmd.Flags().StringVar(&opts.Variant, "variant", "", "Experiment variant")
	cmd.Flags().BoolVar(&opts.AllowCustomHTML, "allow-custom-html", false, "Allow customHtml actions")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&opts.Diff, "diff", false, "Print a diff of the session state")

	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runDispatch(ctx context.Context, a *app, out io.Writer, args []string, opts dispatchOptions) error {
	tgt, err := resolveTarget(ctx, a, args, opts)
	if err != nil {
		return err
	}

	reg, handlers, err := a.registry()
	if err != nil {
		return err
	}
	// The interactive feed owns the terminal, so log lines wait in a buffer
	// until the program exits.
	logger := a.logger
	var buffered *logging.Buffer
	if !opts.NonInteractive {
		buffered = logging.NewBuffer(0)
		logger = logging.NewBufferedLogger(buffered)
	}

	sess := session.New(state.NewMemoryStore(tgt.seed), logger,
		session.WithUserAgent(opts.UserAgent),
		session.WithVariant(opts.Variant),
		session.WithCustomHTML(opts.AllowCustomHTML),
	)
	before := sess.State()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Owner != "" {
		ctx = engine.WithOwner(ctx, opts.Owner)
	}

	feed := newFeed(tgt.title, tgt.root, opts.NonInteractive)
	d := engine.New(reg, sess.Capabilities(),
		engine.WithLogger(logger),
		engine.WithObserver(func(_ context.Context, kind action.Kind, res action.Result, elapsed time.Duration) {
			feed.send(tui.SettledMsg{Kind: kind, Success: res.Success, Elapsed: elapsed})
		}),
	)
	unsubscribe := tui.Subscribe(d.Events(), feed.send)

	feed.start(func() {
		cancel()
		d.CancelAll()
	})
	var res action.Result
	if tgt.raw != nil {
		res = d.DispatchRaw(ctx, tgt.raw)
	} else {
		res = d.Dispatch(ctx, tgt.root)
	}
	handlers.Wait()
	unsubscribe()
	err = feed.finish(res)
	if buffered != nil {
		buffered.Flush(a.logger)
	}
	if err != nil {
		return err
	}

	if err := report(out, sess, before, res, feed, opts); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("dispatch failed: %w", res.Err)
	}
	return nil
}

func resolveTarget(ctx context.Context, a *app, args []string, opts dispatchOptions) (target, error) {
	var tgt target
	if opts.Raw != "" {
		if err := json.Unmarshal([]byte(opts.Raw), &tgt.raw); err != nil {
			return tgt, fmt.Errorf("parse --raw: %w", err)
		}
		tgt.title, _ = tgt.raw["type"].(string)
		if act, err := validation.Decode(tgt.raw); err == nil {
			tgt.root = act
		}
	} else {
		doc, err := loader.NewLoader(a.logger).Load(ctx, args[0])
		if err != nil {
			return tgt, err
		}
		name := ""
		if len(args) > 1 {
			name = args[1]
		}
		act, ok := doc.Lookup(name)
		if !ok {
			if name == "" {
				return tgt, fmt.Errorf("document %s has no root action; name one of: %s", args[0], strings.Join(doc.Order, ", "))
			}
			return tgt, fmt.Errorf("document %s: %w", args[0], action.NewNotFoundError(name))
		}
		tgt.root = act
		tgt.title = doc.Name
		if name != "" {
			tgt.title = name
		}
		tgt.seed = copyState(doc.State)
	}

	if opts.State != "" {
		var extra map[string]any
		if err := json.Unmarshal([]byte(opts.State), &extra); err != nil {
			return tgt, fmt.Errorf("parse --state: %w", err)
		}
		if tgt.seed == nil {
			tgt.seed = map[string]any{}
		}
		for k, v := range extra {
			tgt.seed[k] = v
		}
	}
	return tgt, nil
}

func copyState(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func report(out io.Writer, sess *session.Session, before map[string]any, res action.Result, feed *feed, opts dispatchOptions) error {
	after := sess.State()

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"result":  res,
			"effects": sess.Effects(),
			"state":   after,
		})
	}

	if opts.NonInteractive {
		fmt.Fprintln(out, feed.view())
	}
	for _, e := range sess.Effects() {
		fmt.Fprintf(out, "%s %s\n", e.Kind, e.Target)
	}
	if opts.Diff {
		text, err := diff.Snapshots(before, after, "state before", "state after")
		if err != nil {
			return err
		}
		if text == "" {
			text = "state unchanged\n"
		}
		fmt.Fprint(out, text)
	}
	return nil
}

// feed drives the TUI model, either through a bubbletea program or by
// applying messages directly when output is not a terminal.
type feed struct {
	interactive bool

	mu    sync.Mutex
	model tui.Model

	program *tea.Program
	done    chan struct{}
	runErr  error
	final   tea.Model
}

func newFeed(title string, root action.Action, nonInteractive bool) *feed {
	return &feed{
		interactive: !nonInteractive,
		model:       tui.NewModel(title, root, nonInteractive),
	}
}

func (f *feed) start(onCancel func()) {
	if !f.interactive {
		return
	}
	f.program = tea.NewProgram(f.model)
	f.done = make(chan struct{})
	go func() {
		defer close(f.done)
		f.final, f.runErr = f.program.Run()
		if m, ok := f.final.(tui.Model); ok && m.Cancelled() {
			onCancel()
		}
	}()
}

func (f *feed) send(msg tea.Msg) {
	if f.interactive {
		if f.program != nil {
			f.program.Send(msg)
		}
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	updated, _ := f.model.Update(msg)
	if m, ok := updated.(tui.Model); ok {
		f.model = m
	}
}

func (f *feed) finish(res action.Result) error {
	f.send(tui.DoneMsg{Result: res})
	if f.interactive && f.done != nil {
		<-f.done
		return f.runErr
	}
	return nil
}

func (f *feed) view() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model.View()
}
