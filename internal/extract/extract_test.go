package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/docchat/internal/extract/extracttest"
)

func TestIsPDF(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want bool
	}{
		{"guide.pdf", true},
		{"manuals/setup.pdf", true},
		{"faq.txt", false},
		{"pdf-notes.md", false},
		{"GUIDE.PDF", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPDF(tt.key), tt.key)
	}
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	got, err := Extract("faq.txt", []byte("Reset your password from Settings."))
	require.NoError(t, err)
	assert.Equal(t, "Reset your password from Settings.", got)
}

func TestExtractRejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	_, err := Extract("faq.txt", []byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, ErrInvalidText)
}

func TestExtractRejectsGarbagePDF(t *testing.T) {
	t.Parallel()

	_, err := Extract("guide.pdf", []byte("this is not a pdf"))
	assert.ErrorIs(t, err, ErrInvalidPDF)
}

func TestExtractPDFJoinsPagesInOrder(t *testing.T) {
	t.Parallel()

	got, err := Extract("guide.pdf", extracttest.PDF("Hello guide", "Second page"))
	require.NoError(t, err)
	assert.Equal(t, "Hello guide\nSecond page", got)
}

func TestPDFTextSinglePage(t *testing.T) {
	t.Parallel()

	got, err := PDFText(extracttest.PDF("Only page"))
	require.NoError(t, err)
	assert.Equal(t, "Only page", got)
}
