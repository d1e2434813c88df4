package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/robfig/cron/v3"

	"github.com/flowdeck/flowdeck/pkg/auth"
	"github.com/flowdeck/flowdeck/pkg/calendar"
	"github.com/flowdeck/flowdeck/pkg/capture"
	"github.com/flowdeck/flowdeck/pkg/config"
	"github.com/flowdeck/flowdeck/pkg/focus"
	"github.com/flowdeck/flowdeck/pkg/storage"
	"github.com/flowdeck/flowdeck/pkg/tasks"
)

func main() {
	// 1. Parse flags
	doAuth := flag.Bool("auth", false, "Re-run the Google authorization flow")
	addTitle := flag.String("add", "", "Create a todo with the given title")
	addDesc := flag.String("desc", "", "Description for -add")
	addDue := flag.String("due", "", "Due date for -add (RFC 3339)")
	addPrio := flag.String("priority", "", "Priority for -add: low, medium or high")
	toggleID := flag.String("toggle", "", "Toggle completion for the todo with this id")
	list := flag.Bool("list", false, "Print the priority view of the todo collection")
	stats := flag.Bool("stats", false, "Print the weekly completion histogram")
	agenda := flag.Bool("agenda", false, "Show events and todos for a date")
	date := flag.String("date", "", "Date for -agenda (YYYY-MM-DD, default today)")
	focusMin := flag.Int("focus", 0, "Run a focus session of the given length in minutes")
	watch := flag.Bool("watch", false, "Keep refreshing the agenda on the configured schedule")
	flag.Parse()

	logger := newLogger()
	slog.SetDefault(logger)

	cfgPath, err := config.Path()
	if err != nil {
		logger.Error("could not locate config", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("could not load config", "path", cfgPath, "err", err)
		os.Exit(1)
	}

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	switch {
	case *doAuth:
		err = app.authorize(ctx)
	case *addTitle != "":
		err = app.addTodo(*addTitle, *addDesc, *addDue, *addPrio)
	case *toggleID != "":
		err = app.toggleTodo(*toggleID)
	case *list:
		app.printTodos()
	case *stats:
		app.printStats()
	case *focusMin > 0:
		err = app.runFocus(ctx, *focusMin)
	case *watch:
		err = app.watch(ctx, *date)
	case *agenda:
		err = app.printAgenda(ctx, *date)
	default:
		flag.Usage()
	}
	if err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		TimeFormat: time.Kitchen,
	}))
}

// app wires the stores and clients once per invocation. The auth
// provider is constructed here, explicitly, from the loaded config.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	loc      *time.Location
	store    *tasks.Store
	tracker  *focus.Tracker
	queue    *capture.Queue
	provider *auth.Provider
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, err
	}
	kv, err := storage.NewFileStore(dataDir)
	if err != nil {
		return nil, err
	}

	secrets, err := cfg.ResolvePath(cfg.ClientSecretsFile)
	if err != nil {
		return nil, err
	}
	tokenPath, err := cfg.ResolvePath(cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	provider, err := auth.NewProvider(auth.Config{
		ClientSecretsPath: secrets,
		TokenPath:         tokenPath,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	tracker := focus.NewTracker(kv, focus.WithLogger(logger))
	return &app{
		cfg:      cfg,
		log:      logger,
		loc:      loc,
		store:    tasks.NewStore(kv, tasks.WithLogger(logger)),
		tracker:  tracker,
		queue:    capture.NewQueue(kv, capture.WithLogger(logger), capture.WithHoldGate(tracker.Running)),
		provider: provider,
	}, nil
}

func (a *app) authorize(ctx context.Context) error {
	if err := a.provider.ClearToken(); err != nil {
		return err
	}
	if _, err := a.provider.Token(ctx); err != nil {
		return err
	}
	fmt.Println("Authentication successful.")
	return nil
}

func (a *app) addTodo(title, desc, due, prio string) error {
	in := tasks.CreateInput{
		Title:       title,
		Description: desc,
		Priority:    tasks.Priority(prio),
	}
	if due != "" {
		t, err := time.Parse(time.RFC3339, due)
		if err != nil {
			return fmt.Errorf("invalid -due value: %w", err)
		}
		in.DueDate = &t
	}
	todo, err := a.store.Create(in)
	if err != nil {
		return err
	}
	fmt.Printf("Created todo %s: %s\n", todo.ID, todo.Title)
	return nil
}

func (a *app) toggleTodo(id string) error {
	if _, err := a.store.ToggleCompleted(id); err != nil {
		return err
	}
	a.printTodos()
	return nil
}

func (a *app) printTodos() {
	todos := a.store.PriorityView()
	if len(todos) == 0 {
		fmt.Println("No todos.")
		return
	}
	for _, t := range todos {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		fmt.Printf("[%s] %s  %s %s\n", mark, priorityColor(t.Priority), t.ID, t.Title)
	}
}

func priorityColor(p tasks.Priority) string {
	switch p {
	case tasks.PriorityHigh:
		return color.New(color.FgRed, color.Bold).Sprint("high")
	case tasks.PriorityLow:
		return color.New(color.FgGreen).Sprint("low ")
	default:
		return color.New(color.FgYellow).Sprint("med ")
	}
}

func (a *app) printStats() {
	bars := a.store.CompletionHistogram(7, 6)
	fmt.Println("Completions over the last 7 days:")
	for i, b := range bars {
		day := time.Now().AddDate(0, 0, -(len(bars) - 1 - i)).Format("Mon")
		fmt.Printf("%s ", day)
		for j := 0; j < b; j++ {
			fmt.Print("█")
		}
		fmt.Println()
	}
	if streak := a.tracker.Streak(); streak > 0 {
		fmt.Printf("Focus streak: %d day(s)\n", streak)
	}
}

func (a *app) newAggregator(ctx context.Context) (*calendar.Aggregator, error) {
	token, err := a.provider.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	client, err := calendar.NewClient(ctx, token,
		calendar.WithCalendarID(a.cfg.CalendarID),
		calendar.WithLocation(a.loc),
	)
	if err != nil {
		return nil, err
	}
	return calendar.NewAggregator(client), nil
}

func (a *app) printAgenda(ctx context.Context, date string) error {
	agg, err := a.newAggregator(ctx)
	if err != nil {
		return err
	}
	if _, err := agg.Refresh(ctx, a.cfg.MaxResults); err != nil {
		return describeFailure(err)
	}
	a.renderAgenda(agg, date)
	return nil
}

func (a *app) renderAgenda(agg *calendar.Aggregator, date string) {
	key := date
	if key == "" {
		key = time.Now().In(a.loc).Format("2006-01-02")
	}

	heading := color.New(color.FgCyan, color.Bold)
	heading.Printf("Events for %s\n", key)
	events := agg.DisplayEvents(key)
	if len(events) == 0 {
		fmt.Println("  (none)")
	}
	for _, ev := range events {
		fmt.Printf("  %s  %s\n", calendar.DateKey(ev.Start, a.loc), ev.Summary)
	}

	heading.Println("Todos")
	a.printTodos()
}

// describeFailure turns the typed calendar failure into actionable text.
func describeFailure(err error) error {
	var f *calendar.Failure
	if !errors.As(err, &f) {
		return err
	}
	switch f.Kind {
	case calendar.KindAuth:
		return fmt.Errorf("credential expired, run with -auth to sign in again: %w", err)
	case calendar.KindPermission:
		return fmt.Errorf("missing calendar permission, re-run -auth and grant access: %w", err)
	case calendar.KindNetwork:
		return fmt.Errorf("network problem, try again: %w", err)
	}
	return err
}

// runFocus blocks for one focus session: interrupt stops it early,
// running to the end completes it. Held notifications are released and
// listed when the session ends.
func (a *app) runFocus(ctx context.Context, minutes int) error {
	session, err := a.tracker.Start(focus.StartInput{Minutes: minutes, DND: true})
	if err != nil {
		return err
	}
	fmt.Printf("Focus session started: %d minutes\n", session.Minutes)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	select {
	case <-time.After(a.tracker.Remaining()):
		if _, err := a.tracker.Complete(); err != nil {
			return err
		}
		fmt.Println("Session complete.")
	case <-interrupt:
		if _, err := a.tracker.Stop(); err != nil {
			return err
		}
		fmt.Println("Session stopped early.")
	case <-ctx.Done():
		a.tracker.Stop()
		return ctx.Err()
	}

	held, err := a.queue.Release()
	if err != nil {
		return err
	}
	if len(held) > 0 {
		fmt.Printf("%d notification(s) held during the session:\n", len(held))
		for _, item := range held {
			fmt.Printf("  [%s] %s: %s\n", item.Category, item.App, item.Title)
		}
	}
	return nil
}

// watch re-renders the agenda on the configured cron schedule and
// whenever the todo collection changes.
func (a *app) watch(ctx context.Context, date string) error {
	agg, err := a.newAggregator(ctx)
	if err != nil {
		return err
	}

	render := func() {
		if _, err := agg.Refresh(ctx, a.cfg.MaxResults); err != nil {
			a.log.Error("refresh failed", "err", describeFailure(err))
			return
		}
		a.renderAgenda(agg, date)
	}
	render()

	cancel := a.store.Subscribe(func() {
		a.log.Info("todos changed, re-rendering")
		a.renderAgenda(agg, date)
	})
	defer cancel()

	c := cron.New()
	if _, err := c.AddFunc(a.cfg.RefreshCron, render); err != nil {
		return fmt.Errorf("invalid refresh_cron %q: %w", a.cfg.RefreshCron, err)
	}
	c.Start()
	defer c.Stop()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	select {
	case <-interrupt:
	case <-ctx.Done():
	}
	return nil
}
