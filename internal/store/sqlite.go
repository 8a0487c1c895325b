package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/pi-productivity/internal/model"
)

// timestampLayout is fixed width so text order matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

const memoryPath = ":memory:"

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db      *sqlx.DB
	writeMu sync.Mutex
	now     func() time.Time
	loc     *time.Location
}

var _ Store = (*SQLiteStore)(nil)

// Option customizes a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock overrides the time source used for ingestion timestamps and
// for "today" in the display views.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		s.now = now
	}
}

// WithLocation sets the local time zone. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *SQLiteStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creating
// its parent directory, enables WAL mode, and runs any pending schema
// migrations. A leading "~/" in dbPath is the user's home directory.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	if strings.HasPrefix(dbPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[2:])
	}
	if dbPath != memoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if dbPath == memoryPath {
		// Every pooled connection would otherwise get its own database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// UpsertTasks normalizes payloads and inserts or overwrites them by task
// id in a single transaction. Concurrent callers are serialized.
func (s *SQLiteStore) UpsertTasks(ctx context.Context, payloads []model.Payload) (int, error) {
	if len(payloads) == 0 {
		return 0, nil
	}

	now := s.now().UTC()
	tasks := make([]model.Task, 0, len(payloads))
	for i, p := range payloads {
		t, err := Normalize(p, now, s.loc)
		if err != nil {
			return 0, fmt.Errorf("normalizing task %d: %w", i, err)
		}
		tasks = append(tasks, t)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO tasks (task_id, title, subtitle, due_date, status, raw, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			title = excluded.title,
			subtitle = excluded.subtitle,
			due_date = excluded.due_date,
			status = excluded.status,
			raw = excluded.raw,
			updated_at = excluded.updated_at`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		_, err = stmt.ExecContext(ctx,
			t.ID, t.Title, t.Subtitle, t.DueDate, t.Status, t.Raw,
			t.UpdatedAt.Format(timestampLayout),
		)
		if err != nil {
			return 0, fmt.Errorf("upserting task %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing upsert: %w", err)
	}
	return len(tasks), nil
}

// GetTasks retrieves tasks matching the provided filter options.
func (s *SQLiteStore) GetTasks(ctx context.Context, opts TaskFilter) ([]model.Task, error) {
	var conditions []string
	var args []interface{}

	if opts.Status != nil {
		conditions = append(conditions, "LOWER(status) = LOWER(?)")
		args = append(args, *opts.Status)
	}
	if opts.Query != nil && *opts.Query != "" {
		conditions = append(conditions, "(title LIKE ? OR subtitle LIKE ?)")
		q := "%" + *opts.Query + "%"
		args = append(args, q, q)
	}
	if opts.PendingOnly {
		conditions = append(conditions, pendingCondition)
		args = append(args, model.ExcludedStatuses)
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	sortBy := "updated_at"
	if opts.SortBy != "" {
		allowedSorts := map[string]bool{
			"title":      true,
			"status":     true,
			"due_date":   true,
			"updated_at": true,
		}
		if allowedSorts[opts.SortBy] {
			sortBy = opts.SortBy
		}
	}

	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}
	order := sortBy + " " + direction
	if sortBy == "due_date" {
		order = strings.ReplaceAll(dueOrder, ",", " "+direction+",") + " " + direction
	}
	query += " ORDER BY " + order + ", task_id ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", opts.Offset)
		}
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("expanding task query: %w", err)
	}

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	return toTasks(rows), nil
}

// GetTaskByID retrieves a single task by its ID.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, "SELECT "+taskColumns+" FROM tasks WHERE task_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	task := row.toModel()
	return &task, nil
}

// CountTasks returns the number of stored tasks.
func (s *SQLiteStore) CountTasks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM tasks"); err != nil {
		return 0, fmt.Errorf("counting tasks: %w", err)
	}
	return n, nil
}

const taskColumns = "task_id, title, subtitle, due_date, status, raw, updated_at"

// dueOrder sorts by local due day, date-only values first, then by instant.
// Text order alone is wrong across the repeated hour of a DST fall-back,
// where the offset in the stored value changes.
const dueOrder = "substr(due_date, 1, 10), length(due_date) > 10, datetime(due_date)"

// pendingCondition filters out excluded statuses; a NULL status counts as
// pending. Its placeholder is expanded by sqlx.In.
const pendingCondition = "COALESCE(LOWER(status), 'pending') NOT IN (?)"

// taskRow mirrors the tasks table.
type taskRow struct {
	TaskID    string         `db:"task_id"`
	Title     string         `db:"title"`
	Subtitle  sql.NullString `db:"subtitle"`
	DueDate   sql.NullString `db:"due_date"`
	Status    sql.NullString `db:"status"`
	Raw       sql.NullString `db:"raw"`
	UpdatedAt string         `db:"updated_at"`
}

func (r taskRow) toModel() model.Task {
	t := model.Task{
		ID:       r.TaskID,
		Title:    r.Title,
		Subtitle: r.Subtitle.String,
		Status:   r.Status.String,
		Raw:      r.Raw.String,
	}
	if r.DueDate.Valid && r.DueDate.String != "" {
		due := r.DueDate.String
		t.DueDate = &due
	}
	if ts, err := time.Parse(timestampLayout, r.UpdatedAt); err == nil {
		t.UpdatedAt = ts
	}
	return t
}

func toTasks(rows []taskRow) []model.Task {
	tasks := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.toModel())
	}
	return tasks
}
