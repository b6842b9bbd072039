package pdftext

import (
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/suma/internal/pkg/errors"
)

func TestIsPDF(t *testing.T) {
	require.True(t, IsPDF([]byte("%PDF-1.7\n...")))
	require.True(t, IsPDF([]byte("\n %PDF-1.4")))
	require.False(t, IsPDF([]byte("PK\x03\x04")))
	require.False(t, IsPDF(nil))
}

func TestExtractTextRejectsEmpty(t *testing.T) {
	_, err := ExtractText(nil)
	require.ErrorIs(t, err, ErrUnreadablePDF)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestExtractTextRejectsNonPDF(t *testing.T) {
	_, err := ExtractText([]byte("hello world, definitely not a pdf"))
	require.ErrorIs(t, err, ErrUnreadablePDF)
}

func TestExtractTextRejectsTruncatedPDF(t *testing.T) {
	_, err := ExtractText([]byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"))
	require.ErrorIs(t, err, ErrUnreadablePDF)
}
