// Package relevance decides which inbound messages are worth sending to the
// extraction service, using a trusted sender domain list and subject keywords.
package relevance

import (
	"strings"

	"golang.org/x/text/cases"
)

// Rule names the rule that made a message relevant.
type Rule string

const (
	RuleNone          Rule = ""
	RuleEmptySubject  Rule = "empty_subject"
	RuleTrustedDomain Rule = "trusted_domain"
	RuleKeyword       Rule = "keyword"
)

// Decision explains a classification.
type Decision struct {
	Relevant bool
	Rule     Rule
	Match    string
}

// Classifier holds case-folded domain and keyword lists.
type Classifier struct {
	domains  []string
	keywords []string
}

// New builds a classifier. Blank entries are ignored.
func New(trustedDomains, keywords []string) *Classifier {
	return &Classifier{
		domains:  foldAll(trustedDomains),
		keywords: foldAll(keywords),
	}
}

// Classify reports whether a message with subject and sender is relevant.
func (c *Classifier) Classify(subject, sender string) bool {
	return c.Explain(subject, sender).Relevant
}

// Explain applies the rules in order and reports which one decided.
// An empty subject is never relevant, even from a trusted domain.
func (c *Classifier) Explain(subject, sender string) Decision {
	if strings.TrimSpace(subject) == "" {
		return Decision{Rule: RuleEmptySubject}
	}

	foldedSender := fold(sender)
	for _, domain := range c.domains {
		if strings.Contains(foldedSender, domain) {
			return Decision{Relevant: true, Rule: RuleTrustedDomain, Match: domain}
		}
	}

	foldedSubject := fold(subject)
	for _, keyword := range c.keywords {
		if strings.Contains(foldedSubject, keyword) {
			return Decision{Relevant: true, Rule: RuleKeyword, Match: keyword}
		}
	}
	return Decision{Rule: RuleNone}
}

func fold(value string) string {
	return cases.Fold().String(value)
}

func foldAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, fold(value))
		}
	}
	return out
}
