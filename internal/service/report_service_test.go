package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rcffuta/elib-api/internal/dto"
	"github.com/rcffuta/elib-api/internal/models"
	"github.com/rcffuta/elib-api/internal/repository"
	appErrors "github.com/rcffuta/elib-api/pkg/errors"
	"github.com/rcffuta/elib-api/pkg/jobs"
)

type reportRepoStub struct {
	jobs     map[string]*models.ReportJob
	lookups  []string
	filters  []models.ReportJobFilter
	listErr  error
	finished []models.ReportJob
	expired  []string
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: map[string]*models.ReportJob{}}
}

func (r *reportRepoStub) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *reportRepoStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	r.lookups = append(r.lookups, id)
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (r *reportRepoStub) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *reportRepoStub) List(ctx context.Context, filter models.ReportJobFilter) ([]models.ReportJob, int, error) {
	r.filters = append(r.filters, filter)
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	var out []models.ReportJob
	for _, job := range r.jobs {
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, *job)
	}
	return out, len(out), nil
}

func (r *reportRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var queued []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *reportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	out := r.finished
	r.finished = nil
	return out, nil
}

func (r *reportRepoStub) MarkExpired(ctx context.Context, id string) error {
	r.expired = append(r.expired, id)
	return nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newReportServiceForTest(t *testing.T) (*ReportService, *reportRepoStub, *queueStub, *ExportService) {
	t.Helper()
	repo := newReportRepoStub()
	queue := &queueStub{}
	exportSvc, _ := newExportServiceForTest(t, sampleExportSource())
	svc := NewReportService(repo, queue, exportSvc, nil, nil, zap.NewNop(), ReportServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
	})
	return svc, repo, queue, exportSvc
}

func TestReportServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeDownloads,
		Format: models.ReportFormatCSV,
		Days:   14,
	}, "admin")
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	assert.Equal(t, 14, repo.jobs[resp.ID].Params.Days)
	assert.Equal(t, "admin", repo.jobs[resp.ID].CreatedBy)
}

func TestReportServiceCreateJobValidation(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{Type: "grades", Format: models.ReportFormatCSV}, "admin")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.CreateJob(context.Background(), dto.ReportRequest{Type: models.ReportTypeCourses, Format: "xlsx"}, "admin")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.CreateJob(context.Background(), dto.ReportRequest{Type: models.ReportTypeCourses, Format: models.ReportFormatCSV}, "")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	assert.Empty(t, repo.jobs)
}

func TestReportServiceCreateJobEnqueueFailure(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	queue.err = jobs.ErrQueueClosed

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{Type: models.ReportTypeCourses, Format: models.ReportFormatCSV}, "admin")
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestReportServiceGetStatus(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)
	url := "/api/v1/admin/reports/download/tok"
	jobID := uuid.NewString()
	repo.jobs[jobID] = &models.ReportJob{
		ID:        jobID,
		Type:      models.ReportTypeTopMaterials,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		ResultURL: &url,
		CreatedBy: "admin",
	}
	resp, err := svc.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, resp.Status)
	assert.Equal(t, models.ReportTypeTopMaterials, resp.Type)
	assert.Equal(t, url, *resp.ResultURL)

	_, err = svc.GetStatus(context.Background(), uuid.NewString())
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	repo.lookups = nil
	_, err = svc.GetStatus(context.Background(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Empty(t, repo.lookups, "malformed ids must not reach the store")
}

func TestReportServiceListJobsFiltersByType(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)
	failure := "query timeout"
	repo.jobs["a"] = &models.ReportJob{ID: "a", Type: models.ReportTypeDownloads, Status: models.ReportStatusFinished, CreatedBy: "admin"}
	repo.jobs["b"] = &models.ReportJob{ID: "b", Type: models.ReportTypeCourses, Status: models.ReportStatusFinished}
	repo.jobs["c"] = &models.ReportJob{ID: "c", Type: models.ReportTypeDownloads, Status: models.ReportStatusFailed, ErrorMessage: &failure}

	jobs, page, err := svc.ListJobs(context.Background(), models.ReportJobFilter{Type: " Downloads ", Status: "failed", PageSize: 500})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, &failure, jobs[0].Error)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, page)
	assert.Equal(t, models.ReportJobFilter{Type: models.ReportTypeDownloads, Status: models.ReportStatusFailed, Page: 1, PageSize: 20}, repo.filters[0])

	jobs, _, err = svc.ListJobs(context.Background(), models.ReportJobFilter{Type: models.ReportTypeDownloads})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestReportServiceListJobsRejectsUnknownFilters(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)

	_, _, err := svc.ListJobs(context.Background(), models.ReportJobFilter{Type: "students"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	_, _, err = svc.ListJobs(context.Background(), models.ReportJobFilter{Status: "DONE"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, repo.filters)

	repo.listErr = errors.New("connection refused")
	_, _, err = svc.ListJobs(context.Background(), models.ReportJobFilter{})
	assert.True(t, appErrors.Is(err, appErrors.ErrStoreUnavailable))
}

func TestReportServiceResolveDownload(t *testing.T) {
	svc, repo, _, exportSvc := newReportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-download",
		Type:      models.ReportTypeTopMaterials,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		CreatedBy: "admin",
	}
	repo.jobs[job.ID] = job

	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)

	_, err = svc.ResolveDownload(context.Background(), result.Token)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden), "job without result url must not serve")

	job.ResultURL = &result.URL
	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv", download.ContentType)
	assert.Contains(t, download.Filename, "top_materials_")

	_, err = svc.ResolveDownload(context.Background(), "garbage")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	repo.jobs["a"] = &models.ReportJob{ID: "a", Type: models.ReportTypeCourses, Status: models.ReportStatusQueued}
	repo.jobs["b"] = &models.ReportJob{ID: "b", Type: models.ReportTypeCourses, Status: models.ReportStatusFinished}

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "a", queue.jobs[0].ID)
}

func TestReportServiceCleanupExpired(t *testing.T) {
	svc, repo, _, exportSvc := newReportServiceForTest(t)
	job := &models.ReportJob{ID: "old", Type: models.ReportTypeCourses, Params: models.ReportJobParams{Format: models.ReportFormatCSV}, Status: models.ReportStatusFinished}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL
	repo.finished = []models.ReportJob{*job}

	svc.cleanupExpired(context.Background())
	assert.Equal(t, []string{"old"}, repo.expired)
	_, err = exportSvc.Open(result.RelativePath)
	assert.Error(t, err)
}

type exportStub struct {
	result *ExportResult
	err    error
}

func (e exportStub) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func queuedJobRepo() *reportRepoStub {
	return &reportRepoStub{jobs: map[string]*models.ReportJob{
		"job-1": {
			ID:        "job-1",
			Type:      models.ReportTypeTopMaterials,
			Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
			Status:    models.ReportStatusQueued,
			CreatedBy: "admin",
		},
	}}
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	repo := queuedJobRepo()
	metrics := NewMetricsService()
	worker := NewReportWorker(repo, exportStub{result: &ExportResult{URL: "/api/v1/admin/reports/download/token"}}, metrics, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	assert.Equal(t, models.ReportStatusFinished, repo.jobs["job-1"].Status)
	assert.Equal(t, 100, repo.jobs["job-1"].Progress)
	assert.Equal(t, "/api/v1/admin/reports/download/token", *repo.jobs["job-1"].ResultURL)
}

func TestReportWorkerHandleFailureRetries(t *testing.T) {
	repo := queuedJobRepo()
	worker := NewReportWorker(repo, exportStub{err: errors.New("boom")}, nil, 2, zap.NewNop())

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1}))
	assert.Equal(t, models.ReportStatusQueued, repo.jobs["job-1"].Status)

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2}))
	assert.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
	assert.Equal(t, "boom", *repo.jobs["job-1"].ErrorMessage)
}
