package cli

import (
	"testing"
	"time"
)

func TestSpinnerStartStop(t *testing.T) {
	s := newSpinner("working")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()
}

func TestSpinnerDoubleStop(t *testing.T) {
	s := newSpinner("working")
	s.Start()
	s.Stop()
	s.Stop() // must not panic
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	s := newSpinner("working")

	done := make(chan struct{})
	go func() {
		s.Stop() // must return even though no goroutine was started
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without a prior Start")
	}
}

func TestSpinnerDoubleStart(t *testing.T) {
	s := newSpinner("working")
	s.Start()
	s.Start() // must not spawn a second animation goroutine
	s.Stop()
}
