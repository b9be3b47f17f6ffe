package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"go.uber.org/zap"
)

// RepositoryAdmitter is the default Admitter: an event is bert-e's job
// only if its repository is one of the configured repositories, and (if
// that repository carries a filter query) the query evaluates to true
// against the event's raw JSON. The query mechanism is lifted directly
// from the teacher's goordinator.Rule.Match, generalized from "does this
// rule fire" to "should this event become a job".
type RepositoryAdmitter struct {
	known   map[string]bool
	filters map[string]*gojq.Query
	logger  *zap.Logger
}

// NewRepositoryAdmitter builds an Admitter for the given set of managed
// "owner/slug" repositories. filterQueries optionally maps a repository
// to a jq boolean expression evaluated against the webhook JSON payload;
// a repository without an entry is admitted unconditionally once known.
func NewRepositoryAdmitter(repositories []string, filterQueries map[string]string) (*RepositoryAdmitter, error) {
	known := make(map[string]bool, len(repositories))
	for _, r := range repositories {
		known[r] = true
	}

	filters := make(map[string]*gojq.Query, len(filterQueries))
	for repo, q := range filterQueries {
		query, err := gojq.Parse(q)
		if err != nil {
			return nil, fmt.Errorf("webhook: parsing filter query for %q failed: %w", repo, err)
		}
		filters[repo] = query
	}

	return &RepositoryAdmitter{known: known, filters: filters, logger: zap.L().Named("webhook.admitter")}, nil
}

func (a *RepositoryAdmitter) Admit(d *Decoded) bool {
	if !a.known[d.Repository] {
		return false
	}

	query, hasFilter := a.filters[d.Repository]
	if !hasFilter {
		return true
	}

	var unmarshalled any
	if err := json.Unmarshal(d.Raw, &unmarshalled); err != nil {
		a.logger.Warn("unmarshaling event payload for filter query failed, admitting by default", zap.Error(err))
		return true
	}

	iter := query.RunWithContext(context.Background(), unmarshalled)
	result, ok := iter.Next()
	if !ok {
		return false
	}

	if err, isErr := result.(error); isErr {
		a.logger.Warn("filter query returned an error, admitting by default", zap.Error(err))
		return true
	}

	matched, ok := result.(bool)
	return ok && matched
}
