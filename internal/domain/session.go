package domain

import "time"

// Session is the full state of one visitor conversation.
type Session struct {
	ID          string
	History     []ChatMessage
	Language    string
	Preferences *PreferenceProfile
	UpdatedAt   time.Time
}

// Turns returns the number of completed user/assistant pairs.
func (s Session) Turns() int {
	return len(s.History) / 2
}
