package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/bert-e/internal/dispatcher"
)

// jobView is the wire representation of a dispatcher.Job returned by the
// read-only job endpoints of spec §6.
type jobView struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Repository string `json:"repository"`
	PRNumber   int    `json:"pr_number,omitempty"`
	Status     string `json:"status"`
	Details    string `json:"details,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func toJobView(j dispatcher.Job) jobView {
	v := jobView{
		ID:         j.ID.String(),
		Kind:       j.Kind.String(),
		Repository: j.Repository,
		PRNumber:   j.PRNumber,
		Status:     j.Status.String(),
		Details:    j.Details,
		CreatedAt:  j.CreatedAt,
	}
	if !j.StartedAt.IsZero() {
		v.StartedAt = &j.StartedAt
	}
	if !j.FinishedAt.IsZero() {
		v.FinishedAt = &j.FinishedAt
	}
	return v
}

// GET /api/jobs
func (s *Service) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobs := s.dispatcher.History().Snapshot()
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, toJobView(j))
	}

	s.writeJSON(w, views)
}

// GET /api/jobs/<id>
func (s *Service) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	for _, j := range s.dispatcher.History().Snapshot() {
		if j.ID.String() == id {
			s.writeJSON(w, toJobView(j))
			return
		}
	}

	http.Error(w, "job not found", http.StatusNotFound)
}

// POST /api/pull-requests/<number>?repository=owner/slug
// Re-enqueues a PullRequest job for the given PR, the manual equivalent
// of bert-e receiving a fresh webhook event for it (spec §6).
func (s *Service) handlePostPullRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	numStr := strings.TrimPrefix(r.URL.Path, "/api/pull-requests/")
	prNumber, err := strconv.Atoi(numStr)
	if err != nil {
		http.Error(w, "invalid pull request number", http.StatusBadRequest)
		return
	}

	repository := r.URL.Query().Get("repository")
	if repository == "" {
		http.Error(w, "missing repository query parameter", http.StatusBadRequest)
		return
	}

	job := dispatcher.NewJob(repository, dispatcher.KindPullRequest, prNumber, nil, requestUser(r), time.Now())
	dedup := s.dispatcher.Enqueue(job)

	s.logger.Info(
		"pull request job enqueued via api",
		zap.String("repository", repository),
		zap.Int("pr_number", prNumber),
		zap.Bool("deduplicated", dedup),
	)

	s.writeJSON(w, toJobView(*job))
}

func requestUser(r *http.Request) string {
	if u, _, ok := r.BasicAuth(); ok {
		return u
	}
	return "api"
}

func (s *Service) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Info("encoding json response failed", zap.Error(err))
	}
}
