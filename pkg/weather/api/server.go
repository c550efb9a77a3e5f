// Package api serves weather records over HTTP: the nearest record to a point, and inserts.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/pkg/pprof"
	"github.com/mongodb/mongodb-dc-topology/pkg/telemetry"
	"github.com/mongodb/mongodb-dc-topology/pkg/weather"
)

const (
	GetPath  = "/weather/get"
	PostPath = "/weather/post"

	maxBodyBytes = 1 << 20
)

// Store is what the API needs from the cluster.
type Store interface {
	Nearest(ctx context.Context, lon, lat float64) (weather.Record, error)
	Insert(ctx context.Context, rec weather.Record) (weather.InsertResult, error)
}

// Location is the body of a nearest record request.
type Location struct {
	Lon *float64 `json:"lon"`
	Lat *float64 `json:"lat"`
}

// ErrorResponse is the body of every non 2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

type Server struct {
	addr    string
	store   Store
	log     *zap.SugaredLogger
	handler http.Handler
}

// NewServer builds the API. withPprof additionally mounts the profiling endpoints.
func NewServer(addr string, store Store, withPprof bool, log *zap.SugaredLogger) *Server {
	s := &Server{addr: addr, store: store, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+GetPath, s.getWeather)
	mux.HandleFunc("POST "+PostPath, s.postWeather)
	mux.Handle("GET /metrics", promhttp.HandlerFor(telemetry.Registry, promhttp.HandlerOpts{}))
	if withPprof {
		pprof.Register(mux)
	}
	s.handler = instrument(mux)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is done, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler:           s.handler,
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Infof("Starting weather API at %s", s.addr)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return xerrors.Errorf("weather API failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Stopping weather API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return xerrors.Errorf("unable to shutdown weather API: %w", err)
	}
	s.log.Info("Weather API stopped")
	return nil
}

func (s *Server) getWeather(w http.ResponseWriter, r *http.Request) {
	var loc Location
	if !s.decode(w, r, &loc) {
		return
	}
	if loc.Lon == nil || loc.Lat == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "lon and lat are required")
		return
	}
	rec, err := s.store.Nearest(r.Context(), *loc.Lon, *loc.Lat)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) postWeather(w http.ResponseWriter, r *http.Request) {
	var rec weather.Record
	if !s.decode(w, r, &rec) {
		return
	}
	res, err := s.store.Insert(r.Context(), rec)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// fail maps store errors to status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, weather.ErrInvalidRecord):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, weather.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, weather.ErrNoHealthyRouter):
		s.writeError(w, http.StatusInternalServerError, "No routers online")
	default:
		s.log.Errorw("Request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, detail string) {
	s.writeJSON(w, code, ErrorResponse{Detail: detail})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debugw("Failed to write response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests by status code, method and matched route.
func instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		mux.ServeHTTP(rec, r)
		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		telemetry.ApiRequests.WithLabelValues(strconv.Itoa(rec.code), r.Method, pattern).Inc()
	})
}
