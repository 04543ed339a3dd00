package core

import (
	"io"
	"sync"

	"skyctl/util"
)

const tid = "01006A800016E000"

func quietLogger() *util.Logger {
	l := util.NewLogger(3)
	l.SetOutput(io.Discard)
	return l
}

// recorder is a Reporter that keeps every line it is given.
type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) add(kind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, kind+": "+msg)
}

func (r *recorder) Status(msg string)  { r.add("status", msg) }
func (r *recorder) Success(msg string) { r.add("success", msg) }
func (r *recorder) Warning(msg string) { r.add("warning", msg) }

func (r *recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}
