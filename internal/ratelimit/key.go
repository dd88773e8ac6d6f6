package ratelimit

import "fmt"

// KeyForUser builds the limiter key for one chat principal.
func KeyForUser(userID int64) string {
	if userID == 0 {
		return ""
	}
	return fmt.Sprintf("u:%d", userID)
}
