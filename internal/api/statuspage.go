package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/simplesurance/bert-e/internal/queue"
)

type statusPageLane struct {
	Destination string
	Status      string
}

type statusPageItem struct {
	PRNumber int
	Source   string
	Lanes    []statusPageLane
	Admitted string
}

type statusPageQueue struct {
	Repository string
	Items      []statusPageItem
}

type statusPageData struct {
	Queues []statusPageQueue
	Jobs   []jobView
}

// GET /
func (s *Service) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "" {
		http.NotFound(w, r)
		return
	}

	data := statusPageData{
		Jobs: func() []jobView {
			jobs := s.dispatcher.History().Snapshot()
			views := make([]jobView, 0, len(jobs))
			for _, j := range jobs {
				views = append(views, toJobView(j))
			}
			return views
		}(),
	}

	s.mu.Lock()
	repositories := s.repositories
	s.mu.Unlock()

	for _, repo := range repositories {
		mgr := s.queueFor(repo)
		if mgr == nil {
			data.Queues = append(data.Queues, statusPageQueue{Repository: repo})
			continue
		}

		data.Queues = append(data.Queues, statusPageQueue{Repository: repo, Items: toStatusPageItems(mgr.Snapshot())})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "status.html.tmpl", data); err != nil {
		s.logger.Info("applying status page template failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toStatusPageItems(items []queue.Item) []statusPageItem {
	out := make([]statusPageItem, 0, len(items))
	for _, it := range items {
		lanes := make([]statusPageLane, 0, len(it.Lanes))
		for _, l := range it.Lanes {
			lanes = append(lanes, statusPageLane{Destination: l.Destination, Status: l.Status.String()})
		}
		out = append(out, statusPageItem{
			PRNumber: it.PRNumber,
			Source:   it.SourceBranch,
			Lanes:    lanes,
			Admitted: it.AdmittedAt.Format("2006-01-02 15:04"),
		})
	}
	return out
}
