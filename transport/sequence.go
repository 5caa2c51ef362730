package transport

// Sequence runs the continuations of a single connection one after another. Tasks posted
// while another one is running are queued instead of being nested, so long chains of
// completions never grow the stack. It isn't safe for concurrent use: all the tasks must be
// posted from the goroutine (or the event loop) owning the connection.
type Sequence struct {
	queue   []func()
	running bool
}

func (s *Sequence) Post(task func()) {
	s.queue = append(s.queue, task)
	if s.running {
		return
	}

	s.running = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		next()
	}

	s.queue = s.queue[:0]
	s.running = false
}

// Idle reports whether there's nothing left to run.
func (s *Sequence) Idle() bool {
	return !s.running && len(s.queue) == 0
}
