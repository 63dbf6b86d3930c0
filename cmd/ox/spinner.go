package main

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// spinner animates a status line on a terminal while the model works.
type spinner struct {
	w       io.Writer
	message string
	parts   []string

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func newSpinner(w io.Writer, message string) *spinner {
	s := &spinner{
		w:       w,
		message: message,
		parts:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *spinner) run() {
	defer close(s.done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for i := 0; ; i++ {
		fmt.Fprintf(s.w, "\r%s %s ", s.parts[i%len(s.parts)], s.message)
		select {
		case <-s.stop:
			// clear the line
			fmt.Fprint(s.w, "\r\033[K")
			return
		case <-ticker.C:
		}
	}
}

// Stop clears the status line. It may be called more than once.
func (s *spinner) Stop() {
	s.mu.Lock()
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.mu.Unlock()
	<-s.done
}
