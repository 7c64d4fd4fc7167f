package sync

import (
	"fmt"
	"io"
	"sync"
)

type ReportOp string

const (
	ReportGet    ReportOp = "get"
	ReportRemove ReportOp = "remove"
)

// Reporter receives one call per change applied by the poller.
type Reporter interface {
	Synced(op ReportOp, key string)
}

// LineReporter writes `Synced: get '<key>' from remote theme` and
// `Synced: remove '<key>' from local theme` lines.
type LineReporter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineReporter(w io.Writer) *LineReporter {
	return &LineReporter{w: w}
}

func (r *LineReporter) Synced(op ReportOp, key string) {
	side := "remote"
	if op == ReportRemove {
		side = "local"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "Synced: %s '%s' from %s theme\n", op, key, side)
}

type nopReporter struct{}

func (nopReporter) Synced(ReportOp, string) {}
