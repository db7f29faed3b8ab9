// Package flow implements the per-user multi-step input collector shared by
// the astrology intake and settings editing conversations.
package flow

import "sync"

// Field is one step of a flow: a key for the collected value, the prompt the
// bot asks with, and a validator for the user's answer.
type Field struct {
	Key      string
	Prompt   string
	Validate func(input string) error
}

// Flow is an ordered list of fields to collect.
type Flow struct {
	Name   string
	Fields []Field
}

// ResultKind tells the caller how to react to a submitted input.
type ResultKind int

const (
	// Advance: the input was accepted, prompt for Result.Next.
	Advance ResultKind = iota
	// Reject: the input failed validation, re-prompt with Result.Reason.
	// The session keeps its step and data untouched.
	Reject
	// Complete: the final field was accepted; Result.Data holds everything
	// collected. The session is in its processing state until End.
	Complete
	// NoSession: the user has no active session.
	NoSession
)

// Result is the outcome of Submit.
type Result struct {
	Kind   ResultKind
	Next   Field             // valid when Kind == Advance
	Reason string            // valid when Kind == Reject
	Data   map[string]string // valid when Kind == Complete
}

type session struct {
	flow       Flow
	step       int
	data       map[string]string
	processing bool
}

// Sessions tracks at most one form session per user. All access is
// mutex-guarded; no lock is held across any blocking call.
type Sessions struct {
	mu sync.Mutex
	m  map[int64]*session
}

// NewSessions creates an empty session table.
func NewSessions() *Sessions {
	return &Sessions{m: make(map[int64]*session)}
}

// Start creates a session for the user at the flow's first field, silently
// replacing any previous session, and returns the field to prompt for.
func (s *Sessions) Start(userID int64, flow Flow) Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = &session{flow: flow, data: make(map[string]string)}
	return flow.Fields[0]
}

// Active reports whether the user has a session in progress.
func (s *Sessions) Active(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[userID]
	return ok
}

// FlowName returns the active flow's name, or "" without a session.
func (s *Sessions) FlowName(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.m[userID]; ok {
		return sess.flow.Name
	}
	return ""
}

// Submit feeds one text input into the user's session.
//
// A validator failure leaves the step and collected data exactly as they
// were. Accepting the last field moves the session into processing and hands
// the collected data to the caller, who commits it and then calls End.
func (s *Sessions) Submit(userID int64, input string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.m[userID]
	if !ok || sess.processing {
		return Result{Kind: NoSession}
	}

	field := sess.flow.Fields[sess.step]
	if field.Validate != nil {
		if err := field.Validate(input); err != nil {
			return Result{Kind: Reject, Reason: err.Error()}
		}
	}

	sess.data[field.Key] = input
	sess.step++

	if sess.step < len(sess.flow.Fields) {
		return Result{Kind: Advance, Next: sess.flow.Fields[sess.step]}
	}

	sess.processing = true
	data := make(map[string]string, len(sess.data))
	for k, v := range sess.data {
		data[k] = v
	}
	return Result{Kind: Complete, Data: data}
}

// Cancel destroys the user's session. Idempotent.
func (s *Sessions) Cancel(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}

// End destroys the session after the caller committed the collected data.
func (s *Sessions) End(userID int64) {
	s.Cancel(userID)
}
