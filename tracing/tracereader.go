package tracing

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/sarchlab/cachesim/sim"
)

// TaskQuery is used to define the tasks to be queried. Not all the field has to
// be set. If the fields are empty, the criteria is ignored.
type TaskQuery struct {
	// Use ID to select a single task by its ID.
	ID string

	// Use ParentID to select all the tasks that are children of a task.
	ParentID string

	// Use Kind to select all the tasks that are of a kind.
	Kind string

	// Use What to select all the tasks that perform an action.
	What string

	// Use Where to select all the tasks that are executed at a location.
	Where string

	// Enable time range selection.
	EnableTimeRange bool

	// Use StartTime to select tasks that overlaps with the given task range.
	StartTime, EndTime float64

	// EnableSteps also loads the steps of the selected tasks.
	EnableSteps bool
}

// TraceReader can read the tasks that a tracer has recorded.
type TraceReader interface {
	// ListComponents returns all the locations used in the trace.
	ListComponents() ([]string, error)

	// ListTasks queries tasks.
	ListTasks(query TaskQuery) ([]Task, error)
}

// DBTraceReader reads the tasks that a DBTracer has recorded.
type DBTraceReader struct {
	*sql.DB
}

// NewDBTraceReader opens a database written by a DBTracer.
func NewDBTraceReader(filename string) (*DBTraceReader, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	return &DBTraceReader{DB: db}, nil
}

// ListComponents returns the locations of the recorded tasks.
func (r *DBTraceReader) ListComponents() ([]string, error) {
	rows, err := r.Query(
		"SELECT DISTINCT Location FROM trace ORDER BY Location")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var components []string

	for rows.Next() {
		var component string
		if err := rows.Scan(&component); err != nil {
			return nil, err
		}

		components = append(components, component)
	}

	return components, rows.Err()
}

// ListTasks returns the tasks that match the query, ordered by start time.
func (r *DBTraceReader) ListTasks(query TaskQuery) ([]Task, error) {
	sqlStr, args := prepareTaskQuery(query)

	rows, err := r.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []Task{}

	for rows.Next() {
		var (
			t          Task
			start, end float64
		)

		err := rows.Scan(
			&t.ID, &t.ParentID, &t.Kind, &t.What, &t.Location, &start, &end)
		if err != nil {
			return nil, err
		}

		t.StartTime = sim.VTimeInSec(start)
		t.EndTime = sim.VTimeInSec(end)
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if query.EnableSteps {
		for i := range tasks {
			if tasks[i].Steps, err = r.listSteps(tasks[i].ID); err != nil {
				return nil, err
			}
		}
	}

	return tasks, nil
}

func (r *DBTraceReader) listSteps(taskID string) ([]TaskStep, error) {
	rows, err := r.Query(
		"SELECT What, Time FROM trace_steps WHERE TaskID = ? ORDER BY rowid",
		taskID)
	if err != nil {
		return nil, fmt.Errorf("listing steps of %s: %w", taskID, err)
	}
	defer rows.Close()

	var steps []TaskStep

	for rows.Next() {
		var (
			step TaskStep
			time float64
		)

		if err := rows.Scan(&step.What, &time); err != nil {
			return nil, err
		}

		step.Time = sim.VTimeInSec(time)
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

func prepareTaskQuery(query TaskQuery) (string, []any) {
	conditions := []string{"1=1"}
	args := []any{}

	add := func(column, value string) {
		if value != "" {
			conditions = append(conditions, column+" = ?")
			args = append(args, value)
		}
	}

	add("ID", query.ID)
	add("ParentID", query.ParentID)
	add("Kind", query.Kind)
	add("What", query.What)
	add("Location", query.Where)

	if query.EnableTimeRange {
		conditions = append(conditions, "EndTime > ?", "StartTime < ?")
		args = append(args, query.StartTime, query.EndTime)
	}

	sqlStr := `SELECT ID, ParentID, Kind, What, Location, StartTime, EndTime
		FROM trace
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY StartTime, rowid`

	return sqlStr, args
}
