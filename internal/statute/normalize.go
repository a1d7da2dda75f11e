package statute

import (
	"regexp"
	"strings"
)

// sectionRefRe matches canonical section references: a numeric root with an
// optional letter suffix, followed by zero or more parenthesised sub-parts.
// Examples: "18", "18A", "19(4)", "18(1)(a)".
var sectionRefRe = regexp.MustCompile(`^(\d+[A-Za-z]*)((?:\([0-9A-Za-z]+\))*)$`)

// anchorConstantRe matches the underscore anchor constants emitted by the
// intent-rules step, e.g. "RERA_ACT_SECTION_18_1_A".
var anchorConstantRe = regexp.MustCompile(`(?i)^[A-Z_]*SECTION_(.+)$`)

// leadingLabelRe strips an optional "Section"/"Rule" prefix from a reference.
var leadingLabelRe = regexp.MustCompile(`(?i)^\s*(section|rule)\s*`)

// NormalizeSectionNumber canonicalizes a section or rule reference into the
// bare "18(1)(a)" form used for anchor matching.
//
// Accepted inputs:
//   - "Section 18" / "section18(1)(a)" / "Rule 6"
//   - "RERA_ACT_SECTION_18_1_A"
//   - "18(1)(a)"
//
// Returns "" when the input cannot be read as a section reference.
func NormalizeSectionNumber(ref string) string {
	token := strings.TrimSpace(ref)
	if token == "" {
		return ""
	}

	// Anchor-constant form: SECTION_18_1_A -> 18(1)(a)
	if m := anchorConstantRe.FindStringSubmatch(token); m != nil {
		parts := strings.Split(m[1], "_")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return ""
		}
		ref := strings.ToUpper(out[0])
		for _, sub := range out[1:] {
			ref += "(" + strings.ToLower(sub) + ")"
		}
		token = ref
	}

	token = leadingLabelRe.ReplaceAllString(token, "")
	token = strings.Join(strings.Fields(token), "")
	if token == "" {
		return ""
	}

	if !sectionRefRe.MatchString(token) {
		return ""
	}
	return token
}

// BaseNumberOf strips sub-section notation from a section reference,
// returning the numeric/alpha root: "19(4)" -> "19", "18A(2)(b)" -> "18A".
// Returns "" when the reference is not recognisable.
func BaseNumberOf(ref string) string {
	normalized := NormalizeSectionNumber(ref)
	if normalized == "" {
		return ""
	}
	m := sectionRefRe.FindStringSubmatch(normalized)
	if m == nil {
		return ""
	}
	return m[1]
}

// NormalizeActName canonicalizes act naming so downstream matching is
// insensitive to the many ways the same act is cited.
func NormalizeActName(act string) string {
	trimmed := strings.Join(strings.Fields(act), " ")
	if trimmed == "" {
		return ""
	}
	lowered := strings.ToLower(trimmed)
	if strings.Contains(lowered, "real estate") || strings.Contains(lowered, "rera") {
		if strings.Contains(lowered, "rule") {
			return trimmed
		}
		return "RERA Act, 2016"
	}
	return trimmed
}

// ActKey reduces an act name to a comparison key: lowercased with all
// whitespace and punctuation noise removed. "RERA Act, 2016" and
// "rera act 2016" fold to the same key.
func ActKey(act string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(act) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ActNamesMatch reports whether two act names refer to the same act under
// case/whitespace-insensitive comparison.
func ActNamesMatch(a, b string) bool {
	fa, fb := ActKey(a), ActKey(b)
	if fa == "" || fb == "" {
		return false
	}
	return fa == fb
}
