package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/rcffuta/elib-api/internal/models"
)

var reportRowColumns = []string{"id", "type", "params", "status", "progress", "result_url", "created_by", "created_at", "finished_at", "error_message"}

func TestReportRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_jobs")).
		WithArgs(sqlmock.AnyArg(), "top_materials", sqlmock.AnyArg(), "QUEUED", 0, nil, "admin-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ReportJob{
		Type:      models.ReportTypeTopMaterials,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV, Limit: 10},
		CreatedBy: "admin-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	rows := sqlmock.NewRows(reportRowColumns).
		AddRow(job.ID, "top_materials", `{"format":"csv","limit":10}`, "QUEUED", 0, nil, "admin-1", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM report_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, fetched.ID)
	require.Equal(t, 10, fetched.Params.Limit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	status := models.ReportStatusFinished
	progress := 100
	result := "/api/v1/admin/reports/download/token"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $1, progress = $2, result_url = $3, finished_at = $4 WHERE id = $5")).
		WithArgs(status, progress, result, now, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateReportJobParams{
		Status:     &status,
		Progress:   &progress,
		ResultURL:  &result,
		FinishedAt: &now,
	}))
	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateReportJobParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListQueuedAndExpire(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows(reportRowColumns).
			AddRow("job-1", "courses", `{"format":"pdf"}`, "QUEUED", 0, nil, "admin-1", time.Now(), nil, nil))
	mock.ExpectExec(regexp.QuoteMeta("SET result_url = NULL, status = 'EXPIRED' WHERE id = $1")).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	jobs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, models.ReportFormatPDF, jobs[0].Params.Format)
	require.NoError(t, repo.MarkExpired(context.Background(), "job-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListFiltersByType(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM report_jobs WHERE type = $1 AND status = $2 ORDER BY created_at DESC, id DESC LIMIT 10 OFFSET 10")).
		WithArgs("downloads", "FINISHED").
		WillReturnRows(sqlmock.NewRows(reportRowColumns).
			AddRow("job-2", "downloads", `{"format":"csv","days":7}`, "FINISHED", 100, nil, "admin-1", now, now, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM report_jobs WHERE type = $1 AND status = $2")).
		WithArgs("downloads", "FINISHED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	jobs, total, err := repo.List(context.Background(), models.ReportJobFilter{
		Type:     models.ReportTypeDownloads,
		Status:   models.ReportStatusFinished,
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, models.ReportTypeDownloads, jobs[0].Type)
	require.Equal(t, 7, jobs[0].Params.Days)
	require.Equal(t, 11, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListUnfiltered(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message FROM report_jobs ORDER BY created_at DESC, id DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(reportRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM report_jobs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	jobs, total, err := repo.List(context.Background(), models.ReportJobFilter{})
	require.NoError(t, err)
	require.NotNil(t, jobs)
	require.Empty(t, jobs)
	require.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
