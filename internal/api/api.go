// Package api exposes the HTTP surface bert-e runs alongside the webhook
// endpoint: a read-only JSON job/queue view, a handful of mutating
// operator endpoints, and a minimal HTML status page.
//
// The status page follows the teacher's autoupdate.HTTPService pattern
// (embed.FS-backed html/template, registered onto a shared *http.ServeMux
// at a configurable endpoint prefix); the JSON endpoints and mutating
// actions are new, generalizing the teacher's plain-text
// Autoupdater.HTTPHandlerList into structured per-repository queue/job
// views and direct dispatcher.Job submissions.
package api

import (
	"embed"
	"html/template"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/simplesurance/bert-e/internal/dispatcher"
	"github.com/simplesurance/bert-e/internal/queue"
)

//go:embed pages/templates/*
var templFS embed.FS

var templFuncs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
}

// QueueProvider resolves the live queue.Manager for a repository, or nil
// if bert-e does not currently hold one (e.g. the repository is not
// configured).
type QueueProvider func(repository string) *queue.Manager

// Service wires the job dispatcher and the per-repository queue managers
// into the HTTP surface of spec §6.
type Service struct {
	dispatcher *dispatcher.Dispatcher
	queueFor   QueueProvider
	templates  *template.Template
	logger     *zap.Logger

	mu           sync.Mutex
	repositories []string
}

// New returns a Service. repositories lists the repositories managed by
// this instance, in the order the status page lists them.
func New(d *dispatcher.Dispatcher, queueFor QueueProvider, repositories []string) *Service {
	return &Service{
		dispatcher: d,
		queueFor:   queueFor,
		templates: template.Must(
			template.New("").Funcs(templFuncs).ParseFS(templFS, "pages/templates/*"),
		),
		logger:       zap.L().Named("api"),
		repositories: repositories,
	}
}

// RegisterHandlers mounts the API surface under endpoint (e.g. "/").
func (s *Service) RegisterHandlers(mux *http.ServeMux, endpoint string) {
	mux.HandleFunc(endpoint, s.handleStatusPage)
	mux.HandleFunc(endpoint+"api/jobs", s.handleListJobs)
	mux.HandleFunc(endpoint+"api/jobs/", s.handleGetJob)
	mux.HandleFunc(endpoint+"api/pull-requests/", s.handlePostPullRequest)
	mux.HandleFunc(endpoint+"api/queues/", s.handleQueueAction)
	mux.HandleFunc(endpoint+"api/branches/", s.handleBranchAction)
	mux.Handle(endpoint+"metrics", promhttp.Handler())
}
