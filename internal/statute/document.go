// Package statute defines the atomic statutory document model: the unit of
// retrieval plus the strict metadata schema every index entry must satisfy.
// One Document corresponds to exactly one statutory section or one rule,
// never a range and never multiple sections concatenated.
package statute

import (
	"strings"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
)

// DocumentType classifies the legal authority of an indexed document.
type DocumentType string

const (
	DocTypeActSection  DocumentType = "act-section"
	DocTypeRule        DocumentType = "rule"
	DocTypeModelClause DocumentType = "model-agreement-clause"
	DocTypeCircular    DocumentType = "circular"
	DocTypeCaseLaw     DocumentType = "case-law"
)

// KnownDocumentTypes lists every valid DocumentType value.
var KnownDocumentTypes = []DocumentType{
	DocTypeActSection,
	DocTypeRule,
	DocTypeModelClause,
	DocTypeCircular,
	DocTypeCaseLaw,
}

// IsValidDocumentType reports whether t is one of the enumerated types.
func IsValidDocumentType(t DocumentType) bool {
	for _, known := range KnownDocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsStatutory reports whether t carries statutory authority and therefore
// requires the act/section metadata fields.
func (t DocumentType) IsStatutory() bool {
	return t == DocTypeActSection || t == DocTypeRule
}

// Document is the atomic retrievable unit: the full text of one statutory
// section (or rule, clause, circular, judgment excerpt) plus its citation
// metadata. Documents are immutable once indexed; changing one means
// rebuilding the index pair.
type Document struct {
	Content string `json:"content"`

	// Required for every document.
	Source       string       `json:"source"`   // human-readable citation origin, e.g. "RERA Act, 2016 (Central)"
	ChunkID      string       `json:"chunk_id"` // stable unique id within its index
	Type         DocumentType `json:"document_type"`
	Jurisdiction string       `json:"jurisdiction"`

	// Required for statutory documents (act-section, rule).
	ActOrRuleName       string `json:"act_or_rule_name,omitempty"`
	SectionOrRuleNumber string `json:"section_or_rule_number,omitempty"` // may include sub-section notation, e.g. "19(4)"
	BaseNumber          string `json:"base_number,omitempty"`            // numeric/alpha root, e.g. "19"

	// State is empty for central/national law.
	State string `json:"state,omitempty"`

	// Optional descriptive fields.
	Title   string `json:"title,omitempty"`
	Version string `json:"version,omitempty"`
}

// Validate checks the required metadata schema. It returns a SchemaError
// naming the first missing or malformed field. An index build must reject
// any document that fails validation.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Content) == "" {
		return riskerr.SchemaError("document has empty content", nil).
			WithDetail("chunk_id", d.ChunkID)
	}
	if strings.TrimSpace(d.ChunkID) == "" {
		return riskerr.SchemaError("document is missing chunk_id", nil).
			WithDetail("source", d.Source)
	}
	if strings.TrimSpace(d.Source) == "" {
		return riskerr.SchemaError("document is missing source", nil).
			WithDetail("chunk_id", d.ChunkID)
	}
	if strings.TrimSpace(d.Jurisdiction) == "" {
		return riskerr.SchemaError("document is missing jurisdiction", nil).
			WithDetail("chunk_id", d.ChunkID)
	}
	if !IsValidDocumentType(d.Type) {
		return riskerr.SchemaError("document has unknown document_type", nil).
			WithDetail("chunk_id", d.ChunkID).
			WithDetail("document_type", string(d.Type))
	}
	if d.Type.IsStatutory() {
		if strings.TrimSpace(d.ActOrRuleName) == "" {
			return riskerr.SchemaError("statutory document is missing act_or_rule_name", nil).
				WithDetail("chunk_id", d.ChunkID)
		}
		if strings.TrimSpace(d.SectionOrRuleNumber) == "" {
			return riskerr.SchemaError("statutory document is missing section_or_rule_number", nil).
				WithDetail("chunk_id", d.ChunkID)
		}
		if strings.TrimSpace(d.BaseNumber) == "" {
			return riskerr.SchemaError("statutory document is missing base_number", nil).
				WithDetail("chunk_id", d.ChunkID).
				WithDetail("section_or_rule_number", d.SectionOrRuleNumber)
		}
		if want := BaseNumberOf(d.SectionOrRuleNumber); want != "" && want != d.BaseNumber {
			return riskerr.SchemaError("base_number does not match section_or_rule_number", nil).
				WithDetail("chunk_id", d.ChunkID).
				WithDetail("base_number", d.BaseNumber).
				WithDetail("expected", want)
		}
	}
	return nil
}

// IsSubSection reports whether the document's section number carries
// sub-section notation, e.g. "19(4)" or "18(1)(a)".
func (d *Document) IsSubSection() bool {
	return d.SectionOrRuleNumber != "" && d.SectionOrRuleNumber != d.BaseNumber
}

// Anchor is a statutory citation a clause is legally expected to relate to.
// Anchors are produced by the external intent-classification step and
// consumed per retrieval request; the engine never invents them.
type Anchor struct {
	ActOrRuleName       string `json:"act_or_rule_name"`
	SectionOrRuleNumber string `json:"section_or_rule_number"`
	BaseNumber          string `json:"base_number"`
}

// NewAnchor builds an Anchor, deriving the base number when the caller did
// not supply one.
func NewAnchor(act, section string) Anchor {
	return Anchor{
		ActOrRuleName:       NormalizeActName(act),
		SectionOrRuleNumber: NormalizeSectionNumber(section),
		BaseNumber:          BaseNumberOf(section),
	}
}

// Equal compares anchors under the same normalization used for matching.
func (a Anchor) Equal(other Anchor) bool {
	return ActKey(a.ActOrRuleName) == ActKey(other.ActOrRuleName) &&
		NormalizeSectionNumber(a.SectionOrRuleNumber) == NormalizeSectionNumber(other.SectionOrRuleNumber)
}

// String renders the anchor as a citation, e.g. "RERA Act, 2016 s.18(1)".
func (a Anchor) String() string {
	if a.SectionOrRuleNumber == "" {
		return a.ActOrRuleName
	}
	return a.ActOrRuleName + " s." + a.SectionOrRuleNumber
}
