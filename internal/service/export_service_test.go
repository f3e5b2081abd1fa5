package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rcffuta/elib-api/internal/models"
	"github.com/rcffuta/elib-api/pkg/storage"
)

type exportSourceStub struct {
	top        []models.MaterialWithCourse
	recent     []models.RecentDownload
	courses    []models.Course
	err        error
	lastSince  *time.Time
	lastLimit  int
	lastFilter models.CourseFilter
}

func (s *exportSourceStub) TopByDownloads(ctx context.Context, limit int) ([]models.MaterialWithCourse, error) {
	s.lastLimit = limit
	return s.top, s.err
}

func (s *exportSourceStub) Recent(ctx context.Context, limit int, since *time.Time) ([]models.RecentDownload, error) {
	s.lastLimit = limit
	s.lastSince = since
	return s.recent, s.err
}

func (s *exportSourceStub) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	s.lastFilter = filter
	return s.courses, len(s.courses), s.err
}

func newExportServiceForTest(t *testing.T, src *exportSourceStub) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(src, src, src, store, signer, ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour}, zap.NewNop())
	return svc, store
}

func sampleExportSource() *exportSourceStub {
	return &exportSourceStub{
		top: []models.MaterialWithCourse{
			{Material: models.Material{ID: "m1", Title: "Algorithms PQ", Type: models.MaterialPastQuestion, Year: "2022", DownloadCount: 41}, CourseCode: "CSC301"},
			{Material: models.Material{ID: "m2", Title: "Use of English", Type: models.MaterialNote, Year: "2021", DownloadCount: 12}, CourseCode: "GNS101"},
		},
		recent: []models.RecentDownload{
			{DownloadEvent: models.DownloadEvent{ID: "e1", MaterialID: "m1", UserID: "u1", DownloadedAt: time.Date(2024, 5, 9, 8, 30, 0, 0, time.UTC)}, MaterialTitle: "Algorithms PQ", MaterialType: models.MaterialPastQuestion, FirstName: "Ada", LastName: "Obi", Department: "Computer Science", Level: 300},
			{DownloadEvent: models.DownloadEvent{ID: "e2", MaterialID: "gone", UserID: "u2", DownloadedAt: time.Date(2024, 5, 8, 8, 30, 0, 0, time.UTC)}},
		},
		courses: []models.Course{{ID: "c1", Code: "CSC301", Title: "Algorithms", Department: "Computer Science", Level: 300, MaterialCount: 4}},
	}
}

func readExport(t *testing.T, store *storage.LocalStorage, relPath string) string {
	t.Helper()
	f, err := store.Open(relPath)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func TestExportServiceGenerateTopMaterialsCSV(t *testing.T) {
	src := sampleExportSource()
	svc, store := newExportServiceForTest(t, src)
	job := &models.ReportJob{ID: "0f7d9a52-1111", Type: models.ReportTypeTopMaterials, Params: models.ReportJobParams{Format: models.ReportFormatCSV}}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/admin/reports/download/"))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"))
	assert.Equal(t, defaultReportLimit, src.lastLimit)

	content := readExport(t, store, result.RelativePath)
	assert.Contains(t, content, "Rank,Course,Title,Type,Year,Downloads")
	assert.Contains(t, content, "1,CSC301,Algorithms PQ,PQ,2022,41")

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, job.ID, jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceGenerateDownloadsWindow(t *testing.T) {
	src := sampleExportSource()
	svc, store := newExportServiceForTest(t, src)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	job := &models.ReportJob{ID: "job-downloads", Type: models.ReportTypeDownloads, Params: models.ReportJobParams{Format: models.ReportFormatCSV, Days: 7, Limit: 10000}}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotNil(t, src.lastSince)
	assert.Equal(t, now.Add(-7*24*time.Hour), *src.lastSince)
	assert.Equal(t, maxReportRows, src.lastLimit)

	content := readExport(t, store, result.RelativePath)
	assert.Contains(t, content, "2024-05-09 08:30,Algorithms PQ,PQ,Ada Obi,Computer Science,300")
}

func TestExportServiceGenerateCoursesPDF(t *testing.T) {
	src := sampleExportSource()
	svc, store := newExportServiceForTest(t, src)
	job := &models.ReportJob{ID: "job-courses", Type: models.ReportTypeCourses, Params: models.ReportJobParams{Format: models.ReportFormatPDF, Limit: 50}}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 50, src.lastFilter.PageSize)
	assert.True(t, strings.HasPrefix(readExport(t, store, result.RelativePath), "%PDF"))
}

func TestExportServiceGenerateErrors(t *testing.T) {
	svc, _ := newExportServiceForTest(t, &exportSourceStub{err: errors.New("db down")})
	_, err := svc.Generate(context.Background(), &models.ReportJob{ID: "j", Type: models.ReportTypeCourses, Params: models.ReportJobParams{Format: models.ReportFormatCSV}})
	require.Error(t, err)

	svc, _ = newExportServiceForTest(t, sampleExportSource())
	_, err = svc.Generate(context.Background(), &models.ReportJob{ID: "j", Type: "grades", Params: models.ReportJobParams{Format: models.ReportFormatCSV}})
	require.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ReportJob{ID: "j", Type: models.ReportTypeCourses, Params: models.ReportJobParams{Format: "xlsx"}})
	require.Error(t, err)

	_, err = svc.Generate(context.Background(), nil)
	require.Error(t, err)
}
