package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vrtlab/revmine/engine/crawl"
	"github.com/vrtlab/revmine/engine/domain"
	"github.com/vrtlab/revmine/engine/ledger"
	"github.com/vrtlab/revmine/engine/store"
	"github.com/vrtlab/revmine/pkg/metrics"
)

// taskDispatcher is the slice of tasks.Dispatcher the API uses.
type taskDispatcher interface {
	CrawlChannel(ctx context.Context, vehicleChannelID int64, maxPages int) (string, error)
	CrawlBatch(ctx context.Context) (string, error)
	Classify(ctx context.Context) (string, error)
}

type server struct {
	store      store.Store
	ledger     *ledger.Ledger
	crawler    *crawl.Service
	dispatcher taskDispatcher
	reg        *metrics.Registry
	log        *slog.Logger
}

func (s *server) routes() http.Handler {
	if s.reg == nil {
		s.reg = metrics.New()
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.reg.Handler())
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/crawl/trigger", s.handleCrawlTrigger)
	mux.HandleFunc("POST /api/crawl/batch", s.handleCrawlBatch)
	mux.HandleFunc("POST /api/crawl/direct", s.handleCrawlDirect)
	mux.HandleFunc("POST /api/processing/trigger", s.handleProcessingTrigger)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskStatus)
	mux.HandleFunc("GET /api/statistics", s.handleStatistics)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		status = "database unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

// crawlRequest is the JSON body for crawl triggers. The vehicle is named
// either directly by vehicle_channel_id or by channel_id plus its identifier
// on that channel.
type crawlRequest struct {
	VehicleChannelID int64  `json:"vehicle_channel_id"`
	ChannelID        int64  `json:"channel_id"`
	SourceIdentifier string `json:"source_identifier"`
	MaxPages         int    `json:"max_pages"`
}

// resolveVehicle maps a crawl request onto a stored vehicle channel. The
// boolean reports whether a response was already written.
func (s *server) resolveVehicle(w http.ResponseWriter, r *http.Request, req crawlRequest) (*store.VehicleChannel, bool) {
	var (
		vc  *store.VehicleChannel
		err error
	)
	switch {
	case req.VehicleChannelID > 0:
		vc, err = s.store.Vehicle().Get(r.Context(), req.VehicleChannelID)
	case req.ChannelID > 0 && req.SourceIdentifier != "":
		vc, err = s.store.Vehicle().GetByChannelAndIdentifier(r.Context(), req.ChannelID, req.SourceIdentifier)
	default:
		writeError(w, http.StatusBadRequest, "vehicle_channel_id or channel_id+source_identifier is required")
		return nil, true
	}
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "vehicle channel not found")
			return nil, true
		}
		s.internalError(w, "vehicle lookup", err)
		return nil, true
	}
	return vc, false
}

// handleCrawlTrigger enqueues a single-vehicle crawl and returns immediately.
func (s *server) handleCrawlTrigger(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Reject unknown vehicles up front; the task itself would only fail later.
	vc, done := s.resolveVehicle(w, r, req)
	if done {
		return
	}

	taskID, err := s.dispatcher.CrawlChannel(r.Context(), vc.ID, req.MaxPages)
	if err != nil {
		s.internalError(w, "dispatching crawl", err)
		return
	}
	s.countDispatch("crawl_channel")
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// handleCrawlBatch enqueues a full scheduled crawl pass.
func (s *server) handleCrawlBatch(w http.ResponseWriter, r *http.Request) {
	taskID, err := s.dispatcher.CrawlBatch(r.Context())
	if err != nil {
		s.internalError(w, "dispatching batch crawl", err)
		return
	}
	s.countDispatch("crawl_batch")
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// handleCrawlDirect crawls one vehicle synchronously and returns the result.
func (s *server) handleCrawlDirect(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	vc, done := s.resolveVehicle(w, r, req)
	if done {
		return
	}

	res, jobID, err := s.crawler.ManualCrawl(r.Context(), vc.ID, "", req.MaxPages)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrVehicleNotFound), errors.Is(err, domain.ErrChannelNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case domain.IsConfigError(err):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.internalError(w, "direct crawl", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "result": res})
}

// handleProcessingTrigger enqueues a semantic processing pass.
func (s *server) handleProcessingTrigger(w http.ResponseWriter, r *http.Request) {
	taskID, err := s.dispatcher.Classify(r.Context())
	if err != nil {
		s.internalError(w, "dispatching processing", err)
		return
	}
	s.countDispatch("classify_batch")
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := s.ledger.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.internalError(w, "job lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.Task().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.internalError(w, "task lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// statisticsResponse combines processing counts with crawl coverage.
type statisticsResponse struct {
	Processing store.ProcessingStatistics `json:"processing"`
	Crawl      store.CrawlStats           `json:"crawl"`
}

func (s *server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	processing, err := s.store.Statistics(r.Context())
	if err != nil {
		s.internalError(w, "reading statistics", err)
		return
	}
	crawlStats, err := s.store.Vehicle().Stats(r.Context())
	if err != nil {
		s.internalError(w, "reading crawl stats", err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsResponse{Processing: processing, Crawl: crawlStats})
}

func (s *server) countDispatch(kind string) {
	s.reg.Counter(
		metrics.WithLabels("revmine_api_dispatch_total", "kind", kind),
		"Tasks dispatched through the HTTP API.",
	).Inc()
}

func (s *server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error("api: "+op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
