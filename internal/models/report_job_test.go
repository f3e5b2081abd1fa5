package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportJobParamsScan(t *testing.T) {
	var p ReportJobParams
	require.NoError(t, p.Scan([]byte(`{"format":"pdf","days":14}`)))
	assert.Equal(t, ReportFormatPDF, p.Format)
	assert.Equal(t, 14, p.Days)

	require.NoError(t, p.Scan(nil))
	assert.Equal(t, ReportJobParams{}, p)

	require.Error(t, p.Scan(42))
}

func TestReportTypeValid(t *testing.T) {
	assert.True(t, ReportTypeDownloads.Valid())
	assert.False(t, ReportType("grades").Valid())
}
