// Package reference extracts member numbers from free-text payment
// references.
package reference

import (
	"regexp"
	"strconv"
	"strings"
)

// NoMatchScore is returned when no rule matches.
const NoMatchScore = 99

// rules are tried in order; the 1-based index of the first hit is the
// confidence score, so lower is more confident.
//
// The first rule's separator class is '.' plus the range ':' through '_',
// so ";", "=", "@" and the like separate id from number too.
var rules = []*regexp.Regexp{
	regexp.MustCompile(`^.*mitgliedsbeitrag\s+id[.:-_](?P<id>\d{1,4})\s.*`),
	regexp.MustCompile(`^.*id\s+(?P<id>\d{1,4})\s+mitgliedsbeitrag.*`),
	regexp.MustCompile(`^.*beitrag\s+mitglied\s+(?P<id>\d{1,4})\s.*`),
	regexp.MustCompile(`^.*mitgliedsbeitrag\s+id\s+(?P<id>\d{1,4})\s.*`),
	regexp.MustCompile(`^.*mitgliedsbeitrag.*id\s+(?P<id>\d{1,4})\s.*`),
	regexp.MustCompile(`^.*mitgliedsbeitrag\s+(?P<id>\d{1,4})\s.*`),
	regexp.MustCompile(`^.*mitgliedsbeitrag.*\s+(?P<id>\d{1,4})[^\d].*`),
}

// Result is the outcome of parsing one reference.
type Result struct {
	MemberNumber int  `json:"member_number"`
	Score        int  `json:"score"`
	Found        bool `json:"found"`
}

// Parse returns the member number named in reference and the score of the
// rule that found it. References nobody can read are not an error; they
// come back with Found false and NoMatchScore.
func Parse(reference string) Result {
	if strings.TrimSpace(reference) == "" {
		return Result{Score: NoMatchScore}
	}
	// Rules expect a separator after the number, even at the very end.
	text := strings.ToLower(reference) + " "

	for i, re := range rules {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[re.SubexpIndex("id")])
		if err != nil {
			continue
		}
		return Result{MemberNumber: id, Score: i + 1, Found: true}
	}
	return Result{Score: NoMatchScore}
}

// RuleCount is the number of rules, i.e. the worst score a hit can have.
func RuleCount() int { return len(rules) }
