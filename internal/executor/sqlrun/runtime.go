// Package sqlrun executes SQL submissions against a private in-memory SQLite database.
package sqlrun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	appErr "codeexec/pkg/errors"

	_ "modernc.org/sqlite"
)

const (
	driverName            = "sqlite"
	memoryDSN             = ":memory:"
	defaultOutputMaxBytes = 64 * 1024
)

// Config controls the SQL runtime.
type Config struct {
	OutputMaxBytes int64
}

// Result is the outcome of one script.
type Result struct {
	Output          string
	KilledByTimeout bool
	OutputTruncated bool
	Duration        time.Duration
}

// Runtime runs SQL scripts. Every call gets a fresh database that is discarded afterwards.
type Runtime struct {
	cfg Config
}

// New creates a runtime.
func New(cfg Config) *Runtime {
	if cfg.OutputMaxBytes <= 0 {
		cfg.OutputMaxBytes = defaultOutputMaxBytes
	}
	return &Runtime{cfg: cfg}
}

// Run executes setup (output discarded) then code, printing each result row
// with columns joined by "|" and NULL as an empty field.
func (r *Runtime) Run(ctx context.Context, setup, code string) (Result, error) {
	start := time.Now()
	db, err := sql.Open(driverName, memoryDSN)
	if err != nil {
		return Result{}, appErr.Wrapf(err, appErr.JudgeSystemError, "open sqlite failed")
	}
	defer db.Close()
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		return r.finish(ctx, Result{}, start, err)
	}
	defer conn.Close()

	discard := newOutput(0)
	for _, stmt := range SplitStatements(setup) {
		if err := execStatement(ctx, conn, stmt, discard); err != nil {
			return r.finish(ctx, Result{}, start, fmt.Errorf("setup: %w", err))
		}
	}

	out := newOutput(r.cfg.OutputMaxBytes)
	for _, stmt := range SplitStatements(code) {
		if err := execStatement(ctx, conn, stmt, out); err != nil {
			return r.finish(ctx, Result{Output: out.String(), OutputTruncated: out.truncated}, start, err)
		}
	}
	return r.finish(ctx, Result{Output: out.String(), OutputTruncated: out.truncated}, start, nil)
}

func (r *Runtime) finish(ctx context.Context, res Result, start time.Time, err error) (Result, error) {
	res.Duration = time.Since(start)
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			res.KilledByTimeout = true
			return res, nil
		}
		return res, appErr.Wrapf(ctxErr, appErr.JudgeSystemError, "sql execution canceled")
	}
	if err != nil {
		return res, appErr.Wrapf(err, appErr.RuntimeError, "%s", err.Error())
	}
	return res, nil
}

// execStatement steps every statement through Query so that any statement
// producing a result set, RETURNING clauses included, has its rows printed.
func execStatement(ctx context.Context, conn *sql.Conn, stmt string, out *output) error {
	rows, err := conn.QueryContext(ctx, stmt)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	fields := make([]string, len(cols))
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		for i, v := range values {
			fields[i] = formatValue(v)
		}
		out.writeLine(strings.Join(fields, "|"))
	}
	return rows.Err()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		s := strconv.FormatFloat(val, 'g', 15, 64)
		if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") && !strings.Contains(s, "NaN") {
			s += ".0"
		}
		return s
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(val)
	}
}

type output struct {
	b         strings.Builder
	max       int64
	lines     int
	truncated bool
}

// newOutput returns a sink keeping at most max bytes; max 0 discards everything.
func newOutput(max int64) *output {
	return &output{max: max}
}

func (o *output) writeLine(line string) {
	if o.max <= 0 {
		return
	}
	if o.lines > 0 {
		line = "\n" + line
	}
	remaining := o.max - int64(o.b.Len())
	if remaining <= 0 {
		o.truncated = true
		return
	}
	if int64(len(line)) > remaining {
		cut := int(remaining)
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		line = line[:cut]
		o.truncated = true
	}
	o.b.WriteString(line)
	o.lines++
}

func (o *output) String() string {
	return o.b.String()
}
