package model

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// DisplayTeam strips the region prefix for display: "frc254" -> "254".
func DisplayTeam(id string) string {
	return strings.TrimLeftFunc(strings.TrimSpace(id), unicode.IsLetter)
}

// ParseTeamNumber canonicalises a team id or bare number to its numeric
// form. "FRC254", "frc254", "254" and " 254 " all yield 254.
func ParseTeamNumber(id string) (int, error) {
	digits := DisplayTeam(id)
	if digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTeam, id)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTeam, id)
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTeam, id)
	}
	return n, nil
}

// EventCode is the event key with digits stripped, upper-cased:
// "2020casj" -> "CASJ".
func EventCode(eventKey string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, eventKey))
}
