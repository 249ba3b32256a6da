package feed

import "sync"

// subscription hands deliveries to its callback on a dedicated goroutine so
// publishers never wait on a slow subscriber. Order is preserved.
type subscription struct {
	handle Handle
	cb     Callback

	mu      sync.Mutex
	pending []Delivery
	wake    chan struct{}
	quit    chan struct{}
	once    sync.Once
}

func newSubscription(h Handle, cb Callback) *subscription {
	return &subscription{
		handle: h,
		cb:     cb,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
}

func (s *subscription) push(d Delivery) {
	s.mu.Lock()
	s.pending = append(s.pending, d)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.quit) })
}

func (s *subscription) run() {
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			d := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()

			select {
			case <-s.quit:
				return
			default:
			}
			s.cb(d)
		}
	}
}
