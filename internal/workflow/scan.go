package workflow

import "context"

// Scan is an in-flight NFC scan for one door.
type Scan struct {
	DoorID string

	done chan struct{}
	tag  string
	err  error
}

func newScan(doorID string) *Scan {
	return &Scan{DoorID: doorID, done: make(chan struct{})}
}

// Done is closed once the scan completed, failed or was discarded.
func (s *Scan) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the scan finishes or ctx is done.
func (s *Scan) Wait(ctx context.Context) (string, error) {
	select {
	case <-s.done:
		return s.tag, s.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Scan) finish(tag string, err error) {
	s.tag, s.err = tag, err
	close(s.done)
}
