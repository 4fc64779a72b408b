package room

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var roomIDPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

// DefaultModes is the mode enumeration used when none is configured.
var DefaultModes = []int{1, 2}

// DefaultCapacity is the per-(room, mode) member limit.
const DefaultCapacity = 4

// ValidRoomID reports whether s is two 4-digit groups joined by a hyphen.
func ValidRoomID(s string) bool {
	return roomIDPattern.MatchString(s)
}

// ParseMode returns the numeric mode in s if it belongs to modes.
func ParseMode(s string, modes []int) (int, bool) {
	m, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	if !slices.Contains(modes, m) {
		return 0, false
	}
	return m, true
}
