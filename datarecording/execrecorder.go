package datarecording

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExecTable is the table that records how the simulator was launched.
const ExecTable = "exec_info"

// ExecInfo is one property of the simulator execution.
type ExecInfo struct {
	Property string
	Value    string
}

// execRecorder records program execution. Entries are written when the
// recorder closes.
type execRecorder struct {
	recorder *sqliteWriter
	entries  []ExecInfo
}

// Start log current execution.
func (e *execRecorder) Start() {
	startTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	e.entries = append(e.entries, ExecInfo{"Start Time", startTime})

	cmd := strings.Join(os.Args, " ")
	e.entries = append(e.entries, ExecInfo{"Command", cmd})

	cwd, err := os.Getwd()
	if err != nil {
		ex, exErr := os.Executable()
		if exErr != nil {
			panic(exErr)
		}

		cwd = filepath.Dir(ex)
	}

	e.entries = append(e.entries, ExecInfo{"Working Directory", cwd})
}

// End queues the execution entries along with program exit time. The writer
// lock must be held.
func (e *execRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.insert(ExecTable, entry)
	}

	endTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	e.recorder.insert(ExecTable, ExecInfo{"End Time", endTime})

	e.entries = nil
}
