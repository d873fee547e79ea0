package swarm

// Waker is the non-blocking readiness signal behaviours, handlers and
// transports use in place of a futures-style task waker: a suspended
// Poll call arranges to be re-polled by holding a Waker and calling
// TryWake when progress becomes possible, instead of parking a
// std::task::Waker.
type Waker struct {
	c chan struct{}
}

func NewWaker() *Waker {
	return &Waker{c: make(chan struct{}, 1)}
}

// TryWake schedules a wakeup without blocking; redundant wakes collapse.
func (w *Waker) TryWake() {
	select {
	case w.c <- struct{}{}:
	default:
	}
}

// C exposes the underlying channel for select-based waiting.
func (w *Waker) C() <-chan struct{} { return w.c }

// Drain clears a pending wake without waiting, used by a poll loop
// that is about to re-scan state anyway.
func (w *Waker) Drain() {
	select {
	case <-w.c:
	default:
	}
}
