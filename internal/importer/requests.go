package importer

import (
	"errors"
	"sync"
)

// RequestToken correlates a picker launch with its result.
type RequestToken int

const (
	// FirstRequestToken is the first token handed out.
	FirstRequestToken RequestToken = 2002

	// Host platforms reject request codes outside the lower 16 bits.
	maxRequestToken RequestToken = 0xffff
)

// ErrNotAwaiting is returned when a result names a token that no picker
// launch is waiting on.
var ErrNotAwaiting = errors.New("importer: request not awaiting a result")

// RequestState is the lifecycle position of a token.
type RequestState int

const (
	RequestUnknown RequestState = iota
	RequestAwaiting
	RequestResolved
)

func (s RequestState) String() string {
	switch s {
	case RequestAwaiting:
		return "awaiting"
	case RequestResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// requests tracks tokens through awaiting -> resolved. A token is
// resolved exactly once.
type requests struct {
	mu     sync.Mutex
	first  RequestToken
	next   RequestToken
	states map[RequestToken]RequestState
}

func newRequests(first RequestToken) *requests {
	if first <= 0 || first > maxRequestToken {
		first = FirstRequestToken
	}
	return &requests{
		first:  first,
		next:   first,
		states: make(map[RequestToken]RequestState),
	}
}

// allocate returns a fresh token marked awaiting. Tokens still awaiting
// from a previous wrap are skipped unless every token is taken.
func (r *requests) allocate() RequestToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	for tries := RequestToken(0); ; tries++ {
		tok := r.next
		r.next++
		if r.next > maxRequestToken {
			r.next = r.first
		}
		if r.states[tok] != RequestAwaiting || tries > maxRequestToken {
			r.states[tok] = RequestAwaiting
			return tok
		}
	}
}

// resolve moves tok from awaiting to resolved.
func (r *requests) resolve(tok RequestToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.states[tok] != RequestAwaiting {
		return ErrNotAwaiting
	}
	r.states[tok] = RequestResolved
	return nil
}

func (r *requests) state(tok RequestToken) RequestState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[tok]
}

func (r *requests) awaiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.states {
		if s == RequestAwaiting {
			n++
		}
	}
	return n
}
