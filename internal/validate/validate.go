package validate

import (
	"fmt"
	"regexp"
)

// Text field length limits, shared by the CLI's pre-flight checks and the
// stub backend's handlers.
const (
	MaxTitleLength        = 200
	MaxDescriptionLength  = 2000
	MaxTagLength          = 50
	MaxCommentLength      = 1000
	MaxUsernameLength     = 40
	MaxLocationNameLength = 200
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Title(s string) string        { return checkLen(s, MaxTitleLength, "title") }
func Description(s string) string  { return checkLen(s, MaxDescriptionLength, "description") }
func Tag(s string) string          { return checkLen(s, MaxTagLength, "tag") }
func Comment(s string) string      { return checkLen(s, MaxCommentLength, "comment") }
func Username(s string) string     { return checkLen(s, MaxUsernameLength, "username") }
func LocationName(s string) string { return checkLen(s, MaxLocationNameLength, "location name") }

var roomIDPattern = regexp.MustCompile(`^WP-[A-Z0-9]{6}$`)

// RoomID reports whether s looks like a shareable watch-party room code.
func RoomID(s string) bool {
	return roomIDPattern.MatchString(s)
}
