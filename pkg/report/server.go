package report

import (
	"encoding/json"
	"html/template"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rcxbench/rcxbench/pkg/errors"
	"github.com/rcxbench/rcxbench/pkg/history"
)

// Server serves run reports over HTTP from a build directory.
type Server struct {
	buildDir string
	history  *history.Store
	logger   *log.Logger
}

// NewServer creates a report server over buildDir. The history store is
// optional; when nil the /api/history endpoint reports an empty list.
func NewServer(buildDir string, hist *history.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{buildDir: buildDir, history: hist, logger: logger}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/api/runs", s.handleRuns)
	r.Get("/api/runs/{design}/{job}", s.handleRun)
	r.Get("/api/runs/{design}/{job}/steps/{step}/log", s.handleLog)
	r.Get("/api/history", s.handleHistory)

	// Raw browsing of the build tree.
	fileServer := http.StripPrefix("/files", http.FileServer(http.Dir(s.buildDir)))
	r.Get("/files/*", fileServer.ServeHTTP)

	return r
}

// ListenAndServe blocks serving HTTP on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("report server listening", "addr", addr, "build_dir", s.buildDir)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := Index(s.buildDir)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []Run{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := Load(s.buildDir, chi.URLParam(r, "design"), chi.URLParam(r, "job"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	design := chi.URLParam(r, "design")
	job := chi.URLParam(r, "job")
	step := chi.URLParam(r, "step")

	run, err := Load(s.buildDir, design, job)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := errors.ValidateStepName(step); err != nil {
		s.writeError(w, err)
		return
	}

	// Step directories carry a trailing index; today always 0.
	path := logFile(run.Path, step+"0")
	if path == "" {
		s.writeError(w, errors.New(errors.ErrCodeFileNotFound,
			"no log for step %s in %s/%s", step, design, job))
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "read log"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusOK, []history.Record{})
		return
	}
	records, err := s.history.Recent(r.Context(), 50)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

var indexTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head><title>rcxbench runs</title></head>
<body>
<h1>rcxbench runs</h1>
<table border="1" cellpadding="4">
<tr><th>Design</th><th>Job</th><th>Modified</th><th></th></tr>
{{range .}}
<tr>
  <td>{{.Design}}</td>
  <td>{{.Job}}</td>
  <td>{{.ModTime.Format "2006-01-02 15:04:05"}}</td>
  <td><a href="/api/runs/{{.Design}}/{{.Job}}">details</a>
      <a href="/files/{{.Design}}/{{.Job}}/">files</a></td>
</tr>
{{end}}
</table>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := Index(s.buildDir)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, runs); err != nil {
		s.logger.Error("render index", "err", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

// writeError maps error codes onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeRunNotFound, errors.ErrCodeFileNotFound, errors.ErrCodeStepNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFlow:
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, map[string]string{"error": errors.UserMessage(err)})
}
