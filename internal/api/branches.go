package api

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/bert-e/internal/dispatcher"
)

// POST /api/branches/<branch>?repository=owner/slug
// DELETE /api/branches/<branch>?repository=owner/slug
//
// Enqueues the corresponding CreateBranch/DeleteBranch job (spec §6), the
// operator-triggered counterpart to a destination branch being created or
// deleted directly on the host.
func (s *Service) handleBranchAction(w http.ResponseWriter, r *http.Request) {
	var kind dispatcher.Kind
	switch r.Method {
	case http.MethodPost:
		kind = dispatcher.KindCreateBranch
	case http.MethodDelete:
		kind = dispatcher.KindDeleteBranch
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	branch := strings.TrimPrefix(r.URL.Path, "/api/branches/")
	if branch == "" {
		http.Error(w, "expected /api/branches/<branch>", http.StatusBadRequest)
		return
	}

	repository := r.URL.Query().Get("repository")
	if repository == "" {
		http.Error(w, "missing repository query parameter", http.StatusBadRequest)
		return
	}

	job := dispatcher.NewJob(repository, kind, 0, branch, requestUser(r), time.Now())
	s.dispatcher.Enqueue(job)

	s.logger.Info(
		"branch action enqueued via api",
		zap.String("repository", repository),
		zap.String("branch", branch),
		zap.String("action", kind.String()),
		zap.String("job_id", job.ID.String()),
	)

	s.writeJSON(w, toJobView(*job))
}
