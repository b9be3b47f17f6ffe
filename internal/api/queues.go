package api

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/bert-e/internal/dispatcher"
)

// POST /api/queues/<repository>/rebuild
// POST /api/queues/<repository>/force-merge
// POST /api/queues/<repository>/wipe
//
// These enqueue the corresponding repository-scoped dispatcher.Job
// (spec §4.6's QueueRebuild/ForceMerge/DeleteQueues kinds) rather than
// calling queue.Manager directly, so operator-triggered actions go
// through the same single-writer-per-repository FIFO as webhook events.
func (s *Service) handleQueueAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/queues/")
	idx := strings.LastIndex(path, "/")
	if idx <= 0 || idx == len(path)-1 {
		http.Error(w, "expected /api/queues/<repository>/<action>", http.StatusBadRequest)
		return
	}
	repository, action := path[:idx], path[idx+1:]

	var kind dispatcher.Kind
	switch action {
	case "rebuild":
		kind = dispatcher.KindQueueRebuild
	case "force-merge":
		kind = dispatcher.KindForceMerge
	case "wipe":
		kind = dispatcher.KindDeleteQueues
	default:
		http.Error(w, "unknown queue action: "+action, http.StatusBadRequest)
		return
	}

	job := dispatcher.NewJob(repository, kind, 0, nil, requestUser(r), time.Now())
	s.dispatcher.Enqueue(job)

	s.logger.Info(
		"queue action enqueued via api",
		zap.String("repository", repository),
		zap.String("action", action),
		zap.String("job_id", job.ID.String()),
	)

	s.writeJSON(w, toJobView(*job))
}
