package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"TemplateMock/pkg/kit"
)

const (
	Version = "1.0.0"

	maxUploadBody       = 1 << 20
	defaultMaxTestDelay = 10 * time.Second
	readyTimeout        = 1 * time.Second
)

type Server struct {
	Store  Store
	Faults *FaultInjector
	Log    *zap.Logger

	// InstanceID identifies this process in / and /health.
	InstanceID string
	// MaxTestDelay caps /api/test/delay; zero means 10s.
	MaxTestDelay time.Duration
	// RateLimiter, when set, guards every /api route.
	RateLimiter *kit.IPRateLimiter
	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		kit.WriteError(w, r, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		kit.WriteError(w, r, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/", s.info)
	r.Get("/health", s.health)
	r.Get("/readyz", s.ready)

	r.Route("/api", func(api chi.Router) {
		if s.RateLimiter != nil {
			api.Use(s.RateLimiter.Middleware)
		}

		api.Get("/templates", s.list)
		api.Post("/templates/search", s.search)
		api.Post("/templates/upload", s.upload)
		api.Get("/templates/{id}", s.get)
		api.Delete("/templates/{id}", s.delete)

		api.Get("/test/success", s.testSuccess)
		api.Get("/test/error/{status_code}", s.testError)
		api.Get("/test/delay/{seconds}", s.testDelay)
	})

	return r
}

func (s *Server) info(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"service":     ServerName,
		"version":     Version,
		"status":      "running",
		"instance_id": s.InstanceID,
		"timestamp":   s.timestamp(),
		"endpoints": map[string]string{
			"templates":      "/api/templates",
			"template_by_id": "/api/templates/{id}",
			"upload":         "/api/templates/upload",
			"search":         "/api/templates/search?q={query}",
			"delete":         "/api/templates/{id}",
			"test_success":   "/api/test/success",
			"test_error":     "/api/test/error/{status_code}",
			"test_delay":     "/api/test/delay/{seconds}",
			"health":         "/health",
		},
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	n, err := s.Store.Count(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"timestamp":      s.timestamp(),
		"template_count": n,
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Store.Ping(ctx); err != nil {
		s.logger().Warn("readyz failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r, DefaultListLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	all, err := s.Store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page := Paginate(FilterByCategory(all, categoryParam(r)), skip, limit)

	if s.Faults != nil && s.Faults.ShouldFail() {
		s.Faults.recordFault("/api/templates")
		s.writeError(w, r, errSimulatedFault)
		return
	}

	writeTemplates(w, page)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, ok, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, errorf(KindNotFound, "template '%s' not found", id))
		return
	}
	kit.WriteJSON(w, http.StatusOK, t)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("q") {
		s.writeError(w, r, errorf(KindValidation, "query parameter q is required"))
		return
	}

	skip, limit, err := pageParams(r, DefaultSearchLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	all, err := s.Store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	found, err := Search(all, q.Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeTemplates(w, Paginate(found, skip, limit))
}

var validate = validator.New()

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	req, err := decodeUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	t := req.ToTemplate(s.now())
	if err := s.Store.Create(r.Context(), t); err != nil {
		if errors.Is(err, ErrTemplateExists) {
			err = errorf(KindConflict, "template id '%s' already exists", t.ID)
		}
		s.writeError(w, r, err)
		return
	}

	kit.WriteJSON(w, http.StatusOK, APIResponse{
		Success:   true,
		Message:   fmt.Sprintf("template '%s' uploaded successfully", t.Name),
		Data:      map[string]any{"template_id": t.ID},
		Timestamp: s.timestamp(),
	})
}

func decodeUpload(w http.ResponseWriter, r *http.Request) (UploadRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	defer func() { _ = r.Body.Close() }()

	var req UploadRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		return UploadRequest{}, errorf(KindValidation, "invalid request body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return UploadRequest{}, errorf(KindValidation, "invalid request body: extra data after json object")
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return UploadRequest{}, errorf(KindValidation, "field %s failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return UploadRequest{}, errorf(KindValidation, "invalid request body: %v", err)
	}
	return req, nil
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	removed, err := s.Store.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !removed {
		s.writeError(w, r, errorf(KindNotFound, "template '%s' not found", id))
		return
	}

	kit.WriteJSON(w, http.StatusOK, APIResponse{
		Success:   true,
		Message:   fmt.Sprintf("template '%s' deleted successfully", id),
		Timestamp: s.timestamp(),
	})
}

func (s *Server) testSuccess(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"message":   "request succeeded",
		"data":      map[string]string{"test": "value"},
		"timestamp": s.timestamp(),
	})
}

func (s *Server) testError(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "status_code")

	code, err := strconv.Atoi(raw)
	if err != nil {
		s.writeError(w, r, errorf(KindValidation, "status_code must be an integer, got %q", raw))
		return
	}
	// net/http cannot emit codes above 999, and 1xx are informational.
	if code < 200 || code > 999 {
		s.writeError(w, r, errorf(KindValidation, "status_code must be between 200 and 999"))
		return
	}

	s.writeError(w, r, CannedError(code))
}

func (s *Server) testDelay(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "seconds")

	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		s.writeError(w, r, errorf(KindValidation, "seconds must be a number, got %q", raw))
		return
	}

	limit := s.maxTestDelay()
	switch {
	case secs > limit.Seconds():
		s.writeError(w, r, errorf(KindInvalidInput, "delay must not exceed %g seconds", limit.Seconds()))
		return
	case secs < 0:
		s.writeError(w, r, errorf(KindInvalidInput, "delay must not be negative"))
		return
	}

	s.sleep(r.Context(), time.Duration(secs*float64(time.Second)))

	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"message":       fmt.Sprintf("responded after %g seconds", secs),
		"delay_seconds": secs,
		"timestamp":     s.timestamp(),
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		se *StatusError
		e  *Error
	)
	switch {
	case errors.As(err, &se):
		kit.WriteError(w, r, se.Code, se.Message)
	case errors.As(err, &e):
		if e.Kind == KindServerFault {
			s.logger().Warn("injected fault", zap.String("path", r.URL.Path))
		}
		kit.WriteError(w, r, e.HTTPStatus(), e.Message)
	default:
		s.logger().Error("request failed", zap.Error(err), zap.String("path", r.URL.Path))
		kit.WriteError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func writeTemplates(w http.ResponseWriter, ts []Template) {
	if ts == nil {
		ts = []Template{}
	}
	kit.WriteJSON(w, http.StatusOK, ts)
}

func pageParams(r *http.Request, defLimit int) (skip, limit int, err error) {
	if skip, err = intParam(r, "skip", 0); err != nil {
		return 0, 0, err
	}
	if limit, err = intParam(r, "limit", defLimit); err != nil {
		return 0, 0, err
	}
	return skip, limit, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errorf(KindValidation, "%s must be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}

func categoryParam(r *http.Request) *string {
	c := r.URL.Query().Get("category")
	if c == "" {
		return nil
	}
	return &c
}

func (s *Server) sleep(ctx context.Context, d time.Duration) {
	if s.Faults != nil && s.Faults.Sleep != nil {
		s.Faults.Sleep(ctx, d)
		return
	}
	sleepCtx(ctx, d)
}

func (s *Server) maxTestDelay() time.Duration {
	if s.MaxTestDelay > 0 {
		return s.MaxTestDelay
	}
	return defaultMaxTestDelay
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Server) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}
