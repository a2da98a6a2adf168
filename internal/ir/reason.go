package ir

import "fmt"

// ReportReason is the moderation category attached to a Report. The numeric
// codes are fixed by the ledger contract.
type ReportReason uint8

const (
	ReasonSexualContent ReportReason = iota
	ReasonViolentOrRepulsive
	ReasonHatefulOrAbusive
	ReasonHarmfulOrDangerous
	ReasonMisinformation
	ReasonChildAbuse
	ReasonSpamOrMisleading
	ReasonLegalIssues
	ReasonOther
)

var reasonNames = [...]string{
	ReasonSexualContent:      "SEXUAL_CONTENT",
	ReasonViolentOrRepulsive: "VIOLENT_OR_REPULSIVE",
	ReasonHatefulOrAbusive:   "HATEFUL_OR_ABUSIVE",
	ReasonHarmfulOrDangerous: "HARMFUL_OR_DANGEROUS",
	ReasonMisinformation:     "MISINFORMATION",
	ReasonChildAbuse:         "CHILD_ABUSE",
	ReasonSpamOrMisleading:   "SPAM_OR_MISLEADING",
	ReasonLegalIssues:        "LEGAL_ISSUES",
	ReasonOther:              "OTHER",
}

var reasonLabels = [...]string{
	ReasonSexualContent:      "Sexual Content",
	ReasonViolentOrRepulsive: "Violent or Repulsive Content",
	ReasonHatefulOrAbusive:   "Hateful or Abusive Content",
	ReasonHarmfulOrDangerous: "Harmful or Dangerous Acts",
	ReasonMisinformation:     "Misinformation",
	ReasonChildAbuse:         "Child Abuse",
	ReasonSpamOrMisleading:   "Spam or Misleading Content",
	ReasonLegalIssues:        "Legal Issues",
	ReasonOther:              "Other",
}

// ReasonFromCode maps a ledger reason code to its category. Codes outside the
// enumeration are a schema violation; they are never folded into Other.
func ReasonFromCode(code uint64) (ReportReason, error) {
	if code >= uint64(len(reasonNames)) {
		return 0, &SchemaError{
			Field:  "reason",
			Value:  fmt.Sprintf("%d", code),
			Reason: fmt.Sprintf("report reason code must be in [0, %d]", len(reasonNames)-1),
		}
	}
	return ReportReason(code), nil
}

// ParseReason maps a category name back to its reason.
func ParseReason(name string) (ReportReason, bool) {
	for i, n := range reasonNames {
		if n == name {
			return ReportReason(i), true
		}
	}
	return 0, false
}

// String returns the category name stored on Report rows.
func (r ReportReason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("ReportReason(%d)", r)
}

// Label returns the human readable label shown to moderators.
func (r ReportReason) Label() string {
	if int(r) < len(reasonLabels) {
		return reasonLabels[r]
	}
	return r.String()
}

// ReportReasons lists every category in code order.
func ReportReasons() []ReportReason {
	out := make([]ReportReason, len(reasonNames))
	for i := range out {
		out[i] = ReportReason(i)
	}
	return out
}
