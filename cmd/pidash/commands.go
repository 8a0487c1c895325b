package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	flag "github.com/spf13/pflag"

	"github.com/nhle/pi-productivity/internal/credential"
	"github.com/nhle/pi-productivity/internal/model"
	"github.com/nhle/pi-productivity/internal/source/motion"
	"github.com/nhle/pi-productivity/internal/store"
	"github.com/nhle/pi-productivity/internal/sync"
)

const (
	flagDescription = "description"
	flagDue         = "due"
	flagLabels      = "labels"
	flagDuration    = "duration"
	flagAll         = "all"
	flagStatus      = "status"
	flagQuery       = "query"
	flagSort        = "sort"
	flagDesc        = "desc"
	flagLimit       = "limit"
)

func (a *app) newPoller() (*sync.Poller, error) {
	s, err := a.openStore()
	if err != nil {
		return nil, err
	}

	var renderers []sync.Renderer
	if a.cfg.Display.SnapshotPath != "" {
		renderers = append(renderers, sync.NewSnapshotRenderer(a.cfg.Display.SnapshotPath))
	}

	return sync.New(a.client(), s, sync.Config{
		Schedule:     a.cfg.Sync.Schedule,
		Timeout:      a.cfg.Sync.Timeout,
		Limit:        a.cfg.Sync.Limit,
		DisplayLimit: a.cfg.Display.Limit,
		Location:     a.cfg.Location(),
	}, renderers...)
}

func syncCmd(ctx context.Context, a *app, _ []string) error {
	p, err := a.newPoller()
	if err != nil {
		return err
	}
	n, err := p.SyncOnce(ctx)
	if err != nil {
		return err
	}
	total, err := a.store.CountTasks(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "synced %d tasks, %d stored\n", n, total)
	return nil
}

func runCmd(ctx context.Context, a *app, _ []string) error {
	p, err := a.newPoller()
	if err != nil {
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	log.Info().Str("schedule", a.cfg.Sync.Schedule).Msg("starting sync loop")

	wg := pool.New().WithContext(ctx).WithCancelOnError()
	wg.Go(p.Run)
	wg.Go(func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				log.Info().Msg("refresh requested")
				p.Refresh()
			}
		}
	})
	return wg.Wait()
}

func tasksFlags(f *flag.FlagSet) {
	f.Bool(flagAll, false, "list stored tasks instead of the compact view")
	f.String(flagStatus, "", "only tasks with this status")
	f.String(flagQuery, "", "only tasks whose title or subtitle contains this text")
	f.String(flagSort, "", "sort by title, status, due_date or updated_at")
	f.Bool(flagDesc, false, "sort descending")
	f.Int(flagLimit, 0, "max tasks to list, 0 for all")
}

func tasksCmd(ctx context.Context, a *app, _ []string) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	filter, listAll := a.taskFilter()
	if !listAll {
		for _, item := range s.FetchItemsForDisplay(ctx, a.cfg.Display.Limit) {
			fmt.Fprintf(w, "%s\t%s\t%s\n", item.Right, item.Title, item.Subtitle)
		}
		return w.Flush()
	}

	tasks, err := s.GetTasks(ctx, filter)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		due := ""
		if t.HasDueDate() {
			due = *t.DueDate
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Status, due, t.Title)
	}
	return w.Flush()
}

// taskFilter builds the GetTasks filter from the tasks flags. It reports
// false when no listing flag was given.
func (a *app) taskFilter() (store.TaskFilter, bool) {
	var filter store.TaskFilter
	listAll, _ := a.flags.GetBool(flagAll)
	if status, _ := a.flags.GetString(flagStatus); status != "" {
		filter.Status = &status
		listAll = true
	}
	if query, _ := a.flags.GetString(flagQuery); query != "" {
		filter.Query = &query
		listAll = true
	}
	filter.SortBy, _ = a.flags.GetString(flagSort)
	filter.SortDesc, _ = a.flags.GetBool(flagDesc)
	filter.Limit, _ = a.flags.GetInt(flagLimit)
	if filter.SortBy != "" || filter.Limit > 0 {
		listAll = true
	}
	return filter, listAll
}

func showCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("show needs exactly one task id")
	}
	s, err := a.openStore()
	if err != nil {
		return err
	}

	task, err := s.GetTaskByID(ctx, args[0])
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no stored task with id %q", args[0])
	}
	if err != nil {
		return err
	}
	var raw json.RawMessage
	if task.Raw != "" {
		raw = json.RawMessage(task.Raw)
	}
	return a.printJSON(struct {
		*model.Task
		Raw json.RawMessage `json:"raw"`
	}{Task: task, Raw: raw})
}

func weekCmd(ctx context.Context, a *app, _ []string) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	return a.printJSON(s.FetchWeekCalendar(ctx, 0))
}

func findCmd(ctx context.Context, a *app, args []string) error {
	needle := strings.Join(args, " ")
	if strings.TrimSpace(needle) == "" {
		return errors.New("find needs the text to search for")
	}

	task, ok, err := a.client().FindTaskByName(ctx, needle)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(a.out, "no task matches %q\n", needle)
		return nil
	}
	return a.printJSON(task)
}

func addFlags(f *flag.FlagSet) {
	f.String(flagDescription, "", "task description")
	f.String(flagDue, "", "due date, e.g. 2025-06-10 or 2025-06-10T17:00:00-03:00")
	f.StringSlice(flagLabels, nil, "comma separated labels")
	f.Int(flagDuration, 0, "estimated duration in minutes")
}

func addCmd(ctx context.Context, a *app, args []string) error {
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return errors.New("add needs a task name")
	}

	// Lookup errors are impossible: the flags are declared by addFlags.
	description, _ := a.flags.GetString(flagDescription)
	due, _ := a.flags.GetString(flagDue)
	labels, _ := a.flags.GetStringSlice(flagLabels)
	duration, _ := a.flags.GetInt(flagDuration)

	created, err := a.client().CreateTask(ctx, motion.NewTask{
		Name:            name,
		Description:     description,
		DueDate:         due,
		Labels:          labels,
		DurationMinutes: duration,
	})
	if err != nil {
		return err
	}
	a.storeLocally(ctx, created)
	return a.printJSON(created)
}

func completeCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("complete needs exactly one task id")
	}

	updated, err := a.client().CompleteTask(ctx, args[0])
	if err != nil {
		return err
	}
	a.storeLocally(ctx, updated)
	return a.printJSON(updated)
}

func loginCmd(_ context.Context, a *app, _ []string) error {
	key := a.cfg.Motion.APIKey
	if key == "" {
		fmt.Fprint(os.Stderr, "API key: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading API key: %w", err)
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		return errors.New("empty API key")
	}

	creds, err := openCredentials()
	if err != nil {
		return err
	}
	if err := creds.Set(credential.MotionAPIKey, key); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "API key saved")
	return nil
}

func logoutCmd(_ context.Context, a *app, _ []string) error {
	creds, err := openCredentials()
	if err != nil {
		return err
	}
	err = creds.Delete(credential.MotionAPIKey)
	if errors.Is(err, credential.ErrNotFound) {
		fmt.Fprintln(a.out, "no API key stored")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "API key removed")
	return nil
}

// storeLocally upserts a task returned by a write call so the local views
// reflect it before the next sync.
func (a *app) storeLocally(ctx context.Context, p model.Payload) {
	if len(p) == 0 {
		return
	}
	id, err := store.TaskID(p)
	if err != nil {
		log.Warn().Err(err).Msg("remote task payload is not serializable")
		return
	}
	s, err := a.openStore()
	if err == nil {
		_, err = s.UpsertTasks(ctx, []model.Payload{p})
	}
	if err != nil {
		log.Warn().Err(err).Str("task_id", id).Msg("task changed remotely but not stored locally")
		return
	}
	log.Debug().Str("task_id", id).Msg("stored remote change")
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
