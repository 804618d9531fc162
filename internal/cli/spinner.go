package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Spinner is a progress indicator for long resolutions. It redraws one line
// with the message and a live status, and stops when its context is done.
//
// A nil *Spinner is valid and does nothing, so callers need not check
// whether a terminal is attached.
type Spinner struct {
	w       io.Writer
	message string
	status  func() string
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	started sync.Once
	stopped chan struct{}
	frames  []string

	mu       sync.Mutex
	width    int // length of the last line drawn
	stopOnce sync.Once
}

// newSpinner creates a spinner writing to w. status may be nil; otherwise
// its result is appended to the message on every frame.
func newSpinner(ctx context.Context, w io.Writer, message string, status func() string) *Spinner {
	spinnerCtx, cancel := context.WithCancel(ctx)
	return &Spinner{
		w:       w,
		message: message,
		status:  status,
		parent:  ctx,
		ctx:     spinnerCtx,
		cancel:  cancel,
		stopped: make(chan struct{}),
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	if s == nil {
		return
	}
	s.started.Do(func() { go s.run() })
}

func (s *Spinner) run() {
	defer close(s.stopped)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.ctx.Done():
			s.clearLine()
			return
		case <-ticker.C:
			s.draw(s.frames[i%len(s.frames)])
		}
	}
}

func (s *Spinner) draw(frame string) {
	line := s.message
	if s.status != nil {
		if st := s.status(); st != "" {
			line += " · " + st
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(line))
	s.width = max(s.width, len(line)+2)
}

// Stop stops the spinner and clears the line. It may be called more than once.
func (s *Spinner) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		s.cancel()
		ran := true
		s.started.Do(func() { ran = false })
		if ran {
			<-s.stopped
		}
	})
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width > 0 {
		fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width+2))
	}
}

// Cancelled reports whether the parent context ended the spinner.
func (s *Spinner) Cancelled() bool {
	return s != nil && s.parent.Err() != nil
}
