// Package progress reports how far a controller run has got.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sink receives progress after every batch.
type Sink interface {
	Report(label string, elapsed time.Duration, total, processed int)
}

// Nop discards progress.
type Nop struct{}

func (Nop) Report(string, time.Duration, int, int) {}

// Log emits progress as debug-level log events.
type Log struct {
	log zerolog.Logger
}

// NewLog returns a Sink writing to log.
func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Report(label string, elapsed time.Duration, total, processed int) {
	l.log.Debug().
		Str("phase", label).
		Dur("elapsed", elapsed).
		Int("total", total).
		Int("processed", processed).
		Msg("progress")
}

// Terminal redraws a single status line per label:
//
//	translate fr | Completed 42% | ETA: 00:01:05
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal returns a Sink drawing on w, usually stderr.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Report(label string, elapsed time.Duration, total, processed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "\r%s | Completed %d%% | ETA: %s   ", label, Percent(total, processed), FormatDuration(ETA(elapsed, total, processed)))
	if total > 0 && processed >= total {
		fmt.Fprintln(t.w)
	}
}

// Multi fans progress out to several sinks.
type Multi []Sink

func (m Multi) Report(label string, elapsed time.Duration, total, processed int) {
	for _, s := range m {
		s.Report(label, elapsed, total, processed)
	}
}

// Percent is processed/total rounded down, 100 for an empty total.
func Percent(total, processed int) int {
	if total <= 0 {
		return 100
	}
	return processed * 100 / total
}

// ETA extrapolates the remaining time from the average time per unit so far.
func ETA(elapsed time.Duration, total, processed int) time.Duration {
	if processed <= 0 || processed >= total {
		return 0
	}
	perUnit := elapsed / time.Duration(processed)
	return (perUnit * time.Duration(total-processed)).Round(time.Second)
}

// FormatDuration renders d as hh:mm:ss.
func FormatDuration(d time.Duration) string {
	s := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
