package model

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TaskIDPrefix starts every composed task id.
const TaskIDPrefix = "ONB"

// taskIDSeparator joins prefix, subject id and short code.
const taskIDSeparator = "-"

var shortCodePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidShortCode reports whether code can be used in a task id.
// Short codes never contain the separator, so the last "-" in a task id
// always splits subject from short code.
func ValidShortCode(code string) bool {
	return shortCodePattern.MatchString(code)
}

// ComposeTaskID derives the task id for a (subject, template) pair.
// Inputs are NFC-normalized so visually identical ids compare equal.
func ComposeTaskID(subjectID, shortCode string) string {
	return TaskIDPrefix + taskIDSeparator +
		norm.NFC.String(subjectID) + taskIDSeparator +
		norm.NFC.String(shortCode)
}

// ParseTaskID splits a composed task id back into subject id and short code.
func ParseTaskID(id string) (subjectID, shortCode string, err error) {
	rest, ok := strings.CutPrefix(id, TaskIDPrefix+taskIDSeparator)
	if !ok {
		return "", "", fmt.Errorf("task id %q: missing %s prefix", id, TaskIDPrefix)
	}
	i := strings.LastIndex(rest, taskIDSeparator)
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("task id %q: expected %s-<subject>-<code>", id, TaskIDPrefix)
	}
	subjectID, shortCode = rest[:i], rest[i+1:]
	if !ValidShortCode(shortCode) {
		return "", "", fmt.Errorf("task id %q: invalid short code %q", id, shortCode)
	}
	return subjectID, shortCode, nil
}
