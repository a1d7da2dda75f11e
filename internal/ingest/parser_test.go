package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
)

const headingStyleAct = `
Section 18. Return of amount and compensation
If the promoter fails to complete or is unable to give possession of an
apartment, he shall be liable to return the amount received with interest.

Section 18A - Interim compensation
Pending final disposal, interim compensation may be directed.

Section 19: Rights and duties of allottees
The allottee shall be entitled to obtain information relating to sanctioned
plans and to claim refund of amount paid.
`

const numberedStyleAct = `
18. (1) If the promoter fails to complete or is unable to give possession
of an apartment, plot or building, he shall be liable on demand to the
allottees to return the amount received by him.

19. (4) The allottee shall be entitled to claim the refund of amount paid
along with interest at such rate as may be prescribed.

40. (1) If a promoter fails to pay any interest or penalty, it shall be
recoverable as an arrears of land revenue.
`

func TestParseSections_HeadingStrategy(t *testing.T) {
	sections, err := ParseSections(headingStyleAct)
	require.NoError(t, err)
	require.Len(t, sections, 3)

	assert.Equal(t, "18", sections[0].SectionID)
	assert.Equal(t, "Section 18", sections[0].Label)
	assert.Equal(t, "Return of amount and compensation", sections[0].Title)
	assert.Contains(t, sections[0].Content, "return the amount received with interest")
	// The next section's text never bleeds into the previous block.
	assert.NotContains(t, sections[0].Content, "Interim compensation")

	assert.Equal(t, "18A", sections[1].SectionID)
	assert.Equal(t, "Interim compensation", sections[1].Title)

	assert.Equal(t, "19", sections[2].SectionID)
	assert.Equal(t, "Rights and duties of allottees", sections[2].Title)
}

func TestParseSections_NumberedStrategy(t *testing.T) {
	sections, err := ParseSections(numberedStyleAct)
	require.NoError(t, err)
	require.Len(t, sections, 3)

	assert.Equal(t, "18", sections[0].SectionID)
	assert.Equal(t, "19", sections[1].SectionID)
	assert.Equal(t, "40", sections[2].SectionID)

	// The bare "18." lead is rewritten to an explicit section marker.
	assert.Contains(t, sections[0].Content, "Section 18.")
	assert.Contains(t, sections[1].Content, "refund of amount paid")
}

func TestParseSections_NoSectionsDetected(t *testing.T) {
	_, err := ParseSections("This text has no statutory structure at all.")
	require.Error(t, err)
	assert.Equal(t, riskerr.ErrCodeInvalidInput, riskerr.GetCode(err))
}

func TestParseSections_NormalizesLineEndings(t *testing.T) {
	text := "Section 3. Registration\r\nEvery promoter shall register the project.\r\n"
	sections, err := ParseSections(text)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "3", sections[0].SectionID)
}

func TestSectionChunkID(t *testing.T) {
	assert.Equal(t, "act-section::section_18A", SectionChunkID("act-section", "18A"))
}
