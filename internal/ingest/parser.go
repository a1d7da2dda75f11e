// Package ingest parses statute text into section-level documents and
// builds the persisted index pair. One document per section keeps anchor
// matching and citations reliable.
package ingest

import (
	"fmt"
	"regexp"
	"strings"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
)

// Section parsing strategies, tried in order:
//
// A: headings like "Section 18. Return of amount and compensation"
// B: bare numbered sections like "18. (1) If the promoter fails ..."
// constant for PDF extractions that drop the word "Section".
var (
	sectionHeadingRe = regexp.MustCompile(`(?im)^[ \t]*(section)[ \t]+(\d+[a-zA-Z]*)\b(?:[ \t]*[.\-:][ \t]*(.*?))?[ \t]*$`)
	numericSectionRe = regexp.MustCompile(`(?m)^[ \t]*(\d{1,4})\.[ \t]+`)

	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
	blankRunsRe     = regexp.MustCompile(`\n{3,}`)
)

// ParsedSection is one statutory section lifted out of the source text.
type ParsedSection struct {
	SectionID string // e.g. "18", "18A"
	Label     string // e.g. "Section 18"
	Title     string // e.g. "Return of amount and compensation", may be empty
	Content   string // full section text including heading
}

// ParseSections splits statute text into sections. It tries the heading
// strategy first, falling back to bare numbered sections; text with no
// detectable sections is an input error.
func ParseSections(fullText string) ([]ParsedSection, error) {
	text := normalizeForParsing(fullText)

	if matches := sectionHeadingRe.FindAllStringSubmatchIndex(text, -1); len(matches) > 0 {
		return parseFromHeadings(text, matches), nil
	}
	if matches := numericSectionRe.FindAllStringSubmatchIndex(text, -1); len(matches) > 0 {
		return parseFromNumbered(text, matches), nil
	}

	return nil, riskerr.New(riskerr.ErrCodeInvalidInput,
		"no statutory sections detected: expected 'Section 18 ...' headings or numbered '18. (1) ...' lines at line starts", nil)
}

func parseFromHeadings(text string, matches [][]int) []ParsedSection {
	sections := make([]ParsedSection, 0, len(matches))
	for i, m := range matches {
		start := m[0]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		block := strings.TrimSpace(text[start:end])

		sectionID := strings.ToUpper(text[m[4]:m[5]])
		label := "Section " + sectionID

		title := ""
		if m[6] >= 0 {
			title = strings.TrimSpace(text[m[6]:m[7]])
		}

		if !strings.HasPrefix(strings.ToLower(block), "section") {
			block = label + "\n" + block
		}

		sections = append(sections, ParsedSection{
			SectionID: sectionID,
			Label:     label,
			Title:     title,
			Content:   block,
		})
	}
	return sections
}

func parseFromNumbered(text string, matches [][]int) []ParsedSection {
	sections := make([]ParsedSection, 0, len(matches))
	for i, m := range matches {
		start := m[0]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		block := strings.TrimSpace(text[start:end])

		sectionID := text[m[2]:m[3]]
		label := "Section " + sectionID

		// Rewrite the leading "18." to "Section 18." so citations and
		// anchor matching see an explicit section marker.
		leadRe := regexp.MustCompile(`(?m)^[ \t]*` + regexp.QuoteMeta(sectionID) + `\.[ \t]+`)
		block = replaceFirst(leadRe, block, label+". ")

		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(block)), "section ") {
			block = label + ".\n" + block
		}

		sections = append(sections, ParsedSection{
			SectionID: sectionID,
			Label:     label,
			Content:   block,
		})
	}
	return sections
}

// replaceFirst replaces only the first regexp match in s.
func replaceFirst(re *regexp.Regexp, s, replacement string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + replacement + s[loc[1]:]
}

// normalizeForParsing unifies line endings and collapses noise while keeping
// headings at line starts.
func normalizeForParsing(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x0c", "\n") // PDF form feed
	text = trailingSpaceRe.ReplaceAllString(text, "\n")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// SectionChunkID builds the stable chunk ID for a parsed section within an
// index.
func SectionChunkID(indexName, sectionID string) string {
	return fmt.Sprintf("%s::section_%s", indexName, sectionID)
}
