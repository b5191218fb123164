package session

import "bytes"

// emit records a chunk and delivers it to the primary observer, then to
// subscribers in registration order. Delivery happens under the output lock
// so every observer sees chunks in production order.
func (s *Session) emit(chunk []byte) {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	s.output = append(s.output, chunk...)
	if over := len(s.output) - s.maxOutput; over > 0 {
		s.output = append(s.output[:0:0], s.output[over:]...)
	}
	if s.primary != nil {
		s.primary(chunk)
	}
	for _, sub := range s.subs {
		sub.fn(chunk)
	}
}

// Output returns a copy of the retained output history.
func (s *Session) Output() []byte {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return bytes.Clone(s.output)
}

// Attach makes fn the primary observer, replacing any previous one. With
// replay set, the retained history is delivered to fn before any new chunk.
// fn must not call back into the session's output methods.
func (s *Session) Attach(replay bool, fn func([]byte)) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if replay && len(s.output) > 0 {
		fn(bytes.Clone(s.output))
	}
	s.primary = fn
}

// Detach removes the primary observer.
func (s *Session) Detach() {
	s.outMu.Lock()
	s.primary = nil
	s.outMu.Unlock()
}

// Subscribe adds an additional observer and returns a function removing it.
func (s *Session) Subscribe(replay bool, fn func([]byte)) (unsubscribe func()) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if replay && len(s.output) > 0 {
		fn(bytes.Clone(s.output))
	}
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.outMu.Lock()
		defer s.outMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}
