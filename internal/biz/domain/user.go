package domain

import "time"

// LinkCodeLength is the exact length of an account link code
const LinkCodeLength = 9

// UserActivity is the per-user message counter
type UserActivity struct {
	Platform        string
	UserID          string
	DisplayName     string
	MessageCount    int64
	TotalCharacters int64
	LinkedUserID    *string
	UpdatedAt       time.Time
}

// AccountLink binds a platform user to an external account
type AccountLink struct {
	Platform     string
	UserID       string
	DisplayName  string
	LinkedUserID string
}

// ThreadBlacklistEntry marks a thread whose messages are neither stored nor summarized
type ThreadBlacklistEntry struct {
	ThreadID  string
	Reason    string
	CreatedAt time.Time
}

// ValidateLinkCode checks the /link code: exactly nine ASCII letters or
// digits with at least one of each.
func ValidateLinkCode(code string) bool {
	if len(code) != LinkCodeLength {
		return false
	}
	var hasLetter, hasDigit bool
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			hasLetter = true
		default:
			return false
		}
	}
	return hasLetter && hasDigit
}
