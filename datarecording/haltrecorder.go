package datarecording

import (
	"sync/atomic"

	"github.com/sarchlab/vpsim/sim/timing"
)

// HaltTable is the table that records every engine halt.
const HaltTable = "halts"

// HaltEntry is a row of the halt table.
type HaltEntry struct {
	Seq  uint64
	Time int64
}

// HaltRecorder is an exec notifier that records the time of each halt.
type HaltRecorder struct {
	recorder DataRecorder
	seq      atomic.Uint64
}

// NewHaltRecorder creates the halt table in recorder.
func NewHaltRecorder(recorder DataRecorder) *HaltRecorder {
	recorder.CreateTable(HaltTable, HaltEntry{})

	return &HaltRecorder{recorder: recorder}
}

// Notify implements timing.Notifier.
func (h *HaltRecorder) Notify(now timing.VTime) error {
	h.recorder.InsertData(HaltTable, HaltEntry{
		Seq:  h.seq.Add(1),
		Time: int64(now),
	})

	return nil
}
