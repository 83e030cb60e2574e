package helper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUID(t *testing.T) {
	id, err := GenerateUUID()
	require.NoError(t, err)
	assert.True(t, IsUUID(id))

	other, err := GenerateUUID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID("3f2504e0-4f89-11d3-9a0c-0305e82c3301"))
	assert.False(t, IsUUID("urn:uuid:3f2504e0-4f89-11d3-9a0c-0305e82c3301"))
	assert.False(t, IsUUID("not-a-uuid"))
	assert.False(t, IsUUID(""))
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Report", "Report.docx"},
		{"Q3: Plan/Review", "Q3_ Plan_Review.docx"},
		{`a\b*c?d"e<f>g|h`, "a_b_c_d_e_f_g_h.docx"},
		{"  ..hidden.. ", "hidden.docx"},
		{"line\nbreak", "linebreak.docx"},
		{"", "document.docx"},
		{"\t", "document.docx"},
		{"Übersicht", "Übersicht.docx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeFilename(tt.title, ".docx"), "title %q", tt.title)
	}

	long := SafeFilename(strings.Repeat("x", 300), ".pptx")
	assert.Equal(t, strings.Repeat("x", maxFilenameLen)+".pptx", long)
}
