package model

import "github.com/goccy/go-json"

// FetchStatus names the state a collection store is in.
type FetchStatus string

const (
	StatusIdle      FetchStatus = "idle"
	StatusLoading   FetchStatus = "loading"
	StatusReady     FetchStatus = "ready"
	StatusFailed    FetchStatus = "failed"
	StatusUnmounted FetchStatus = "unmounted"
)

// FetchState is the view of one collection handed to watchers.
//
// Loading is true while the newest issued fetch has not landed. Data always holds
// the result of the most recently applied fetch and is replaced whole. A
// failed fetch sets Err and keeps the previous Data.
type FetchState struct {
	Collection string      `json:"collection"`
	Data       []Record    `json:"data"`
	Loading    bool        `json:"loading"`
	Err        error       `json:"-"`
	Status     FetchStatus `json:"status"`
}

// ErrorMessage returns Err as a string, or "" when there is none.
func (s FetchState) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Count returns the number of records in the snapshot.
func (s FetchState) Count() int {
	return len(s.Data)
}

// Find returns the record with the given id from the snapshot.
func (s FetchState) Find(id string) (Record, bool) {
	for _, rec := range s.Data {
		if rec.ID() == id {
			return rec, true
		}
	}
	return nil, false
}

// MarshalJSON adds the error message, which Err alone would drop.
func (s FetchState) MarshalJSON() ([]byte, error) {
	type plain FetchState
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(s), Error: s.ErrorMessage()})
}
