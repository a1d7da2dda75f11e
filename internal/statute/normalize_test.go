package statute

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSectionNumber(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare number", "18", "18"},
		{"letter suffix", "18A", "18A"},
		{"sub-section", "19(4)", "19(4)"},
		{"nested sub-section", "18(1)(a)", "18(1)(a)"},
		{"letter suffix with sub-sections", "18A(2)(b)", "18A(2)(b)"},
		{"section label", "Section 18", "18"},
		{"label without space", "section18(1)(a)", "18(1)(a)"},
		{"rule label", "Rule 6", "6"},
		{"anchor constant", "RERA_ACT_SECTION_18_1_A", "18(1)(a)"},
		{"anchor constant letter suffix", "RERA_ACT_SECTION_18A_2_B", "18A(2)(b)"},
		{"surrounding whitespace", "  18(1) ", "18(1)"},
		{"internal whitespace", "18 (1)", "18(1)"},
		{"empty", "", ""},
		{"prose", "the whole act", ""},
		{"leading letter", "A18", ""},
		{"unbalanced parens", "18(1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSectionNumber(tt.in))
		})
	}
}

func TestBaseNumberOf(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already base", "18", "18"},
		{"sub-section", "19(4)", "19"},
		{"nested", "18(1)(a)", "18"},
		{"letter suffix", "18A(2)(b)", "18A"},
		{"section label", "Section 19(4)", "19"},
		{"anchor constant", "RERA_ACT_SECTION_18_1_A", "18"},
		{"unrecognisable", "whereas the promoter", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseNumberOf(tt.in))
		})
	}
}

func TestNormalizeActName(t *testing.T) {
	assert.Equal(t, "RERA Act, 2016", NormalizeActName("Real Estate (Regulation and Development) Act, 2016"))
	assert.Equal(t, "RERA Act, 2016", NormalizeActName("rera act"))
	assert.Equal(t, "Maharashtra RERA Rules, 2017", NormalizeActName("Maharashtra  RERA   Rules, 2017"))
	assert.Equal(t, "Indian Contract Act, 1872", NormalizeActName("Indian Contract Act, 1872"))
	assert.Equal(t, "", NormalizeActName("   "))
}

func TestActKeyAndActNamesMatch(t *testing.T) {
	assert.Equal(t, "reraact2016", ActKey("RERA Act, 2016"))
	assert.Equal(t, ActKey("RERA Act, 2016"), ActKey("rera act 2016"))

	assert.True(t, ActNamesMatch("RERA Act, 2016", "Rera  Act 2016"))
	assert.False(t, ActNamesMatch("RERA Act, 2016", "Indian Contract Act, 1872"))
	assert.False(t, ActNamesMatch("", "RERA Act, 2016"))
}
