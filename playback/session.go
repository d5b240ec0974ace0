package playback

import (
	"sync"

	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

// Ticket identifies one outstanding fetch. Tickets increase monotonically per Session.
type Ticket uint64

// Session guards a Controller against late fetch responses: only the result of
// the most recently issued ticket is loaded, anything older is discarded.
// All methods are goroutine-safe.
type Session struct {
	mu      sync.Mutex
	ctrl    *Controller
	latest  Ticket
	lastErr error
}

// NewSession wraps c. The Session must be the only writer of c from then on.
func NewSession(c *Controller) *Session {
	return &Session{ctrl: c}
}

// Begin issues a new ticket, superseding all earlier ones.
func (s *Session) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	return s.latest
}

// Latest returns the most recently issued ticket (0 before the first Begin).
func (s *Session) Latest() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Deliver loads t if tk is still the latest ticket. Returns false when the
// response is stale; the controller is then left untouched.
func (s *Session) Deliver(tk Ticket, t *trace.Trace) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tk != s.latest {
		return false
	}
	s.ctrl.Load(t)
	s.lastErr = nil
	return true
}

// Fail records err for tk if it is still current. The controller keeps whatever
// trace it had, so a failed fetch never disturbs the visualization.
func (s *Session) Fail(tk Ticket, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tk != s.latest {
		return false
	}
	s.lastErr = err
	return true
}

// Err returns the failure of the latest ticket, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Navigate runs fn with exclusive access to the controller.
func (s *Session) Navigate(fn func(c *Controller)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.ctrl)
}

// View returns the controller's current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.View()
}
