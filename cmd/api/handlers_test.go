package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vrtlab/revmine/engine/domain"
	"github.com/vrtlab/revmine/engine/ledger"
	"github.com/vrtlab/revmine/engine/store"
)

// fakeDispatcher records what the handlers asked to enqueue.
type fakeDispatcher struct {
	crawledVehicle  int64
	crawledMaxPages int
	batches         int
	classifies      int
}

func (d *fakeDispatcher) CrawlChannel(_ context.Context, vehicleChannelID int64, maxPages int) (string, error) {
	d.crawledVehicle = vehicleChannelID
	d.crawledMaxPages = maxPages
	return "task-crawl-1", nil
}

func (d *fakeDispatcher) CrawlBatch(context.Context) (string, error) {
	d.batches++
	return "task-batch-1", nil
}

func (d *fakeDispatcher) Classify(context.Context) (string, error) {
	d.classifies++
	return "task-classify-1", nil
}

func newTestServer(t *testing.T) (*server, *gorm.DB) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := store.InitDB(store.DBConfig{Type: "sqlite", Name: ":memory:"}, log)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	st := store.New(db)
	t.Cleanup(func() { st.Close() })

	return &server{
		store:      st,
		ledger:     ledger.New(st.Job(), log),
		dispatcher: &fakeDispatcher{},
		log:        log,
	}, db
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleJobStatus(t *testing.T) {
	s, _ := newTestServer(t)

	jobID, err := s.ledger.Begin(t.Context(), ledger.TypeManualCrawl, nil, "corr-api-1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var job store.ProcessingJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.Equal(t, jobID, job.ID)
	require.Equal(t, store.JobRunning, job.Status)

	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/999", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTaskStatusNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/no-such-task", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCrawlTrigger(t *testing.T) {
	s, db := newTestServer(t)
	v := store.VehicleChannel{ChannelID: 1, Identifier: "s100", Name: "Model s100"}
	require.NoError(t, db.Create(&v).Error)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"channel_id":1,"source_identifier":"s100","max_pages":3}`)
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/crawl/trigger", body))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"task_id":"task-crawl-1"}`, rec.Body.String())

	d := s.dispatcher.(*fakeDispatcher)
	require.Equal(t, v.ID, d.crawledVehicle)
	require.Equal(t, 3, d.crawledMaxPages)
}

func TestHandleCrawlTriggerByVehicleChannelID(t *testing.T) {
	s, db := newTestServer(t)
	v := store.VehicleChannel{ChannelID: 2, Identifier: "s200", Name: "Model s200"}
	require.NoError(t, db.Create(&v).Error)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"vehicle_channel_id":` + strconv.FormatInt(v.ID, 10) + `}`)
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/crawl/trigger", body))
	require.Equal(t, http.StatusAccepted, rec.Code)

	d := s.dispatcher.(*fakeDispatcher)
	require.Equal(t, v.ID, d.crawledVehicle)
	require.Zero(t, d.crawledMaxPages)
}

func TestHandleCrawlTriggerRejectsBadAddressing(t *testing.T) {
	s, _ := newTestServer(t)

	// Neither addressing mode given.
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/crawl/trigger", strings.NewReader(`{"max_pages":2}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// channel_id without its identifier is not enough either.
	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/crawl/trigger", strings.NewReader(`{"channel_id":1}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Well-formed lookup for a vehicle that does not exist.
	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/crawl/trigger", strings.NewReader(`{"channel_id":1,"source_identifier":"nope"}`)))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCrawlDirectBadRequest(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/crawl/direct", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/crawl/direct", strings.NewReader(`not json`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatistics(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/statistics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statisticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Zero(t, resp.Crawl.TotalVehicles)
	require.Contains(t, resp.Processing.CommentsByState, domain.StateNew)
}
