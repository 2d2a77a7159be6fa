// Package intent decides from a user's words whether they are asking to be
// handed over to the other agent.
package intent

import (
	"regexp"

	"github.com/ashureev/handoff-voice/internal/domain"
)

// Rule is a single case-insensitive pattern that selects Target.
type Rule struct {
	Target  domain.AgentID
	Name    string
	Pattern *regexp.Regexp
}

func rule(target domain.AgentID, name, expr string) Rule {
	return Rule{Target: target, Name: name, Pattern: regexp.MustCompile(`(?i)` + expr)}
}

// rules is evaluated top to bottom; targets appear in domain.Agents order.
// The bare-name rules are deliberately loose and will fire on sentences
// that merely mention the other agent followed by whitespace.
var rules = []Rule{
	rule(domain.Alice, "transfer", `transfer(?:\s+me)?\s+to\s+alice`),
	rule(domain.Alice, "talk", `(?:talk|speak)\s+(?:to|with)\s+alice`),
	rule(domain.Alice, "get", `(?:get|bring|switch)\s+(?:me\s+)?(?:to\s+)?alice`),
	rule(domain.Alice, "bare-name", `alice\s+(?:please|now)?`),
	rule(domain.Alice, "token", `\[TRANSFER:alice\]`),

	rule(domain.Bob, "transfer", `(?:go\s+back|transfer(?:\s+me)?|switch(?:\s+me)?)\s+(?:back\s+)?to\s+bob`),
	rule(domain.Bob, "talk", `(?:talk|speak)\s+(?:to|with)\s+bob`),
	rule(domain.Bob, "get", `(?:get|bring|switch)\s+(?:me\s+)?(?:to\s+)?bob`),
	rule(domain.Bob, "bare-name", `bob\s+(?:please|now)?`),
	rule(domain.Bob, "token", `\[TRANSFER:bob\]`),
}

// Detector matches utterances against the transfer rule table.
// It holds no state and is safe for concurrent use.
type Detector struct {
	rules []Rule
}

// NewDetector returns a detector over the built-in rule table.
func NewDetector() *Detector {
	return &Detector{rules: rules}
}

// Detect returns the agent the text asks for, skipping current.
func (d *Detector) Detect(text string, current domain.AgentID) (domain.AgentID, bool) {
	r, ok := d.Match(text, current)
	if !ok {
		return "", false
	}
	return r.Target, true
}

// Match is Detect but reports which rule fired.
func (d *Detector) Match(text string, current domain.AgentID) (Rule, bool) {
	for _, r := range d.rules {
		if r.Target == current {
			continue
		}
		if r.Pattern.MatchString(text) {
			return r, true
		}
	}
	return Rule{}, false
}

// Rules returns a copy of the rule table for target.
func (d *Detector) Rules(target domain.AgentID) []Rule {
	var out []Rule
	for _, r := range d.rules {
		if r.Target == target {
			out = append(out, r)
		}
	}
	return out
}
