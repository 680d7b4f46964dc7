// Package status provides Status
package status

// spellchecker:words rewritable

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/tkw1536/pkglib/perf"
)

// Status tracks the stages of a long-running operation, such as opening the platform or importing data.
// Updating the status writes out detailed information to an underlying io.Writer.
//
// Status is safe to access concurrently, however the caller is responsible for only logging to one stage at a time.
//
// A nil Status is valid, and discards any information written to it.
type Status struct {
	done atomic.Bool
	m    sync.RWMutex // m protects changes to current and all

	logger     *slog.Logger
	rewritable *Rewritable

	current StageStats   // current holds information about the current stage
	all     []StageStats // all hold information about the old stages
}

// New creates a new status which writes output to the given io.Writer.
// When debug is set, debug messages are written as well.
// If w is nil, returns a nil Status.
func New(w io.Writer, debug bool) *Status {
	if w == nil {
		return nil
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return &Status{
		logger:     slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})),
		rewritable: &Rewritable{Writer: w, FlushInterval: DefaultFlushInterval},
	}
}

// Logger returns the logger of this status.
// A nil status returns a logger discarding all output.
func (status *Status) Logger() *slog.Logger {
	if status == nil || status.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return status.logger
}

// Rewritable returns the rewritable associated with this status.
// It is reset at the end of each stage.
func (status *Status) Rewritable() *Rewritable {
	if status == nil {
		return nil
	}
	return status.rewritable
}

// Log logs an informational message with the provided key, value field pairs.
// When status or the associated logger are nil, no logging occurs.
func (status *Status) Log(message string, fields ...any) {
	if status == nil || status.logger == nil {
		return
	}
	status.logger.Info(message, fields...)
}

// LogDebug logs a debug message with the provided key, value field pairs.
// When status or the associated logger are nil, no logging occurs.
func (status *Status) LogDebug(message string, fields ...any) {
	if status == nil || status.logger == nil {
		return
	}
	status.logger.Debug(message, fields...)
}

// LogError logs an error message containing the provided error and the provided key, value field pairs.
func (status *Status) LogError(message string, err error, fields ...any) {
	if status == nil || status.logger == nil {
		return
	}

	status.logger.Error("FAILED "+message, append([]any{"err", err}, fields...)...)
}

// LogFatal is like LogError followed by os.Exit(1).
// When status or the associated logger are nil, os.Exit(1) is called immediately.
func (status *Status) LogFatal(message string, err error) {
	status.LogError(message, err)
	os.Exit(1)
}

// Close marks this status as done.
// Future edits will have no effect.
func (status *Status) Close() {
	if status == nil {
		return
	}
	status.done.Store(true)
}

// Done checks if further edits made to this status have any effect.
func (status *Status) Done() bool {
	return status == nil || status.done.Load()
}

// All returns the finished stages followed by the current one, if any.
func (status *Status) All() []StageStats {
	if status == nil {
		return nil
	}

	status.m.RLock()
	defer status.m.RUnlock()

	all := append([]StageStats{}, status.all...)
	if status.current.Stage != StageInitial {
		all = append(all, status.current)
	}
	return all
}

// Diff returns a performance diff starting at the first, and ending at the last stage.
// If status is nil, a nil diff is returned.
func (status *Status) Diff() perf.Diff {
	if status == nil {
		var zero perf.Diff
		return zero
	}

	status.m.RLock()
	defer status.m.RUnlock()

	min := status.current.Start
	max := status.current.End

	for _, ss := range status.all {
		if min.Time.IsZero() || ss.Start.Time.Before(min.Time) {
			min = ss.Start
		}
		if max.Time.IsZero() || ss.End.Time.After(max.Time) {
			max = ss.End
		}
	}

	return max.Sub(min)
}

// Start starts a new stage, ending the current one.
//
// If status is nil or done, this function has no effect.
func (status *Status) Start(stage Stage) {
	if status.Done() {
		return
	}

	status.m.Lock()
	defer status.m.Unlock()

	status.end()

	status.current.Stage = stage
	status.current.Start = perf.Now()

	if status.logger != nil {
		status.logger.Info("start", "stage", stage)
	}
}

// End ends the current stage if any.
//
// If status is nil or done, this function has no effect.
func (status *Status) End() (prev StageStats) {
	if status.Done() {
		return
	}

	status.m.Lock()
	defer status.m.Unlock()

	return status.end()
}

// end implements End.
// status.m must be held for writing.
func (status *Status) end() (prev StageStats) {
	if status.current.Stage != StageInitial {
		status.current.End = perf.Now()
		status.all = append(status.all, status.current)
		prev = status.current
	}

	status.current = StageStats{}

	if prev.Stage == StageInitial {
		return
	}

	// write the final progress and reset it
	if status.rewritable != nil {
		status.rewritable.Flush(true)
		status.rewritable.Close()
	}

	if status.logger != nil {
		if prev.Total != 0 || prev.Current != 0 {
			status.logger.Info("end", "stage", prev.Stage, "took", prev.Diff(), "current", prev.Current, "total", prev.Total)
		} else {
			status.logger.Info("end", "stage", prev.Stage, "took", prev.Diff())
		}
	}
	return
}

// DoStage is a convenience wrapper to start a new stage, call f, and log the resulting error if any.
//
// If status is nil, immediately invokes f.
func (status *Status) DoStage(stage Stage, f func() error) error {
	if status.Done() {
		return f()
	}

	status.Start(stage)

	err := f()

	status.m.Lock()
	status.end()
	status.m.Unlock()

	if err != nil {
		status.LogError("stage", err, "stage", stage)
	}
	return err
}

// SetCT sets the current and total for the current stage.
// If the status is nil or done, has no effect.
func (status *Status) SetCT(current, total int) {
	if status.Done() {
		return
	}

	var progress string

	status.m.Lock()
	{
		status.current.Current = current
		status.current.Total = total
		progress = status.current.Progress()
	}
	status.m.Unlock()

	if status.rewritable != nil {
		status.rewritable.Write(progress)
	}
}

// StageStats holds the stats for a specific stage
type StageStats struct {
	Stage Stage

	Start perf.Snapshot // At the start of the stage
	End   perf.Snapshot // At the end of the stage

	Current int
	Total   int
}

// Progress returns a string holding progress information on the current stage
func (ss StageStats) Progress() string {
	switch {
	case ss.Total == 0 && ss.Current == 0:
		return ""
	case ss.Current < ss.Total:
		return fmt.Sprintf("%s: %d/%d", string(ss.Stage), ss.Current, ss.Total)
	default:
		return fmt.Sprintf("%s: %d", string(ss.Stage), ss.Current)
	}
}

// Diff returns a diff of the given stage
func (ss StageStats) Diff() perf.Diff {
	return ss.End.Sub(ss.Start)
}

// Stage represents a stage of a long-running operation
type Stage string

const (
	StageInitial  Stage = ""
	StageConfig   Stage = "config"
	StageOpen     Stage = "open"
	StageOntology Stage = "ontology"
	StageImport   Stage = "import"
	StageExport   Stage = "export"
	StageConvert  Stage = "convert"
	StageMessages Stage = "messages"
	StageServe    Stage = "serve"
)
