package rotor

import "time"

// Session is the explicit handle over one remote radio session. It is
// owned by the Client; renewal replaces the whole value rather than
// mutating shared state.
type Session struct {
	ID       string
	BatchID  string
	From     string
	Seeds    []string
	OpenedAt time.Time
}

const defaultFrom = "radio-mobile-user-onyourwave-default"

func newSession(seeds []string, resp *sessionResponse) *Session {
	s := &Session{
		ID:       resp.Result.RadioSessionID,
		BatchID:  resp.Result.BatchID,
		Seeds:    append([]string(nil), seeds...),
		OpenedAt: time.Now(),
	}
	if from := resp.Result.Wave.IDForFrom; from != "" {
		s.From = "radio-mobile-" + from + "-default"
	} else {
		s.From = defaultFrom
	}
	return s
}
