package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statuteFixture = `Section 18. Return of amount and compensation.
If the promoter fails to complete or is unable to give possession of an
apartment, he shall be liable on demand to return the amount received
with interest and compensation.

Section 19. Rights and duties of allottees.
The allottee shall be entitled to claim the refund of amount paid along
with interest at such rate as may be prescribed.

Section 40. Recovery of interest or penalty or compensation.
The amount of interest, penalty or compensation may be recovered as an
arrears of land revenue.
`

// runRoot executes the root command with args in the current directory.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_BuildListValidateRetrieve(t *testing.T) {
	// Given: a statute text file in an empty working directory
	chdir(t, t.TempDir())
	statutePath := filepath.Join(".", "rera.txt")
	require.NoError(t, os.WriteFile(statutePath, []byte(statuteFixture), 0o644))

	// When: building an index for IN-MH
	out, err := runRoot(t, "build", statutePath,
		"--act", "RERA Act, 2016",
		"--jurisdiction", "IN-MH",
		"--state", "Maharashtra")

	// Then: three sections are indexed
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 3 sections")

	// When: listing the registry
	out, err = runRoot(t, "registry", "list")

	// Then: the jurisdiction appears
	require.NoError(t, err)
	assert.Contains(t, out, "IN-MH")

	// When: validating the registry
	out, err = runRoot(t, "registry", "validate")

	// Then: every index pair loads
	require.NoError(t, err)
	assert.Contains(t, out, "IN-MH/act-section: 3 documents")
	assert.Contains(t, out, "Validated 1 index pairs")

	// When: retrieving evidence for a refund clause with an expected citation
	out, err = runRoot(t, "retrieve",
		"--jurisdiction", "IN-MH",
		"--clause-id", "clause-refund",
		"--intent", "refund",
		"--anchor", "RERA Act, 2016|18",
		"The promoter shall return the amount received with interest if possession is delayed.")

	// Then: the pack is printed as JSON and carries the expected citation
	require.NoError(t, err)
	assert.Contains(t, out, `"clause_id": "clause-refund"`)
	assert.Contains(t, out, `"section_or_rule_number": "18"`)
	assert.Contains(t, out, `"quality_score"`)
}

func TestRootCmd_RetrieveUnknownJurisdictionFails(t *testing.T) {
	// Given: an empty index directory
	chdir(t, t.TempDir())

	// When: retrieving against a jurisdiction with no indexes
	_, err := runRoot(t, "retrieve", "--jurisdiction", "IN-KA", "some clause text")

	// Then: the command fails instead of falling back
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IN-KA")
}

func TestRootCmd_BuildRequiresActFlag(t *testing.T) {
	// Given: a statute file but no --act flag
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("rera.txt", []byte(statuteFixture), 0o644))

	// When: building without the required flag
	_, err := runRoot(t, "build", "rera.txt", "--jurisdiction", "IN-MH")

	// Then: cobra rejects the invocation
	require.Error(t, err)
	assert.Contains(t, err.Error(), "act")
}

func TestRootCmd_RetrieveRejectsMalformedAnchor(t *testing.T) {
	// Given: an anchor flag missing the act/section separator
	chdir(t, t.TempDir())

	// When: retrieving with a malformed --anchor
	_, err := runRoot(t, "retrieve", "--jurisdiction", "IN-MH",
		"--anchor", "Section 18", "clause text")

	// Then: input validation fails before any index work
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Act Name|Section")
}
