// Package webhook decodes inbound GitHub webhook deliveries and decides
// whether each one becomes a dispatcher.Job or is silently dropped.
//
// Payload validation/parsing is grounded directly on the teacher's
// internal/provider/github.Provider.HttpHandler (ValidatePayload,
// WebHookType, ParseWebHook). The per-repository admission filter
// generalizes the teacher's goordinator.Rule.Match: instead of a
// jq query deciding whether to run a configured action, it decides
// whether the event's destination repository/branch is one bert-e
// manages at all (spec's "NotMyJob" silent-exit error kind).
package webhook

import (
	"net/http"
	"time"

	gh "github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/bert-e/internal/dispatcher"
	"github.com/simplesurance/bert-e/internal/githost"
	"github.com/simplesurance/bert-e/internal/logfields"
)

// Decoded is the provider-neutral shape a webhook delivery is reduced to
// before a Job is created.
type Decoded struct {
	DeliveryID   string
	EventType    string
	Repository   string // "owner/slug"
	PRNumber     int
	SourceBranch string
	CommitSHA    string
	// BuildStatus is set only for "status"/"check_run" deliveries, the
	// CI result jobKind uses to route the delivery to KindBuildStatus.
	BuildStatus githost.CIStatus
	Raw         []byte
}

// Admitter decides, for one decoded delivery, whether bert-e manages the
// repository it targets. It is the generalization of the teacher's
// Rule.Match: "is this my job" instead of "does this rule's filter match".
type Admitter interface {
	Admit(d *Decoded) bool
}

// Handler turns validated webhook deliveries into dispatcher jobs.
type Handler struct {
	secret     []byte
	admitter   Admitter
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger
}

// New returns a Handler validating deliveries with secret, consulting
// admitter to decide NotMyJob, and enqueuing admitted ones onto d.
func New(secret string, admitter Admitter, d *dispatcher.Dispatcher) *Handler {
	return &Handler{
		secret:     []byte(secret),
		admitter:   admitter,
		dispatcher: d,
		logger:     zap.L().Named("webhook"),
	}
}

// ServeHTTP implements http.Handler, the webhook delivery endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	deliveryID := gh.DeliveryID(r)
	eventType := gh.WebHookType(r)

	logger := h.logger.With(
		logfields.EventProvider("github"),
		zap.String("github.delivery_id", deliveryID),
		zap.String("github.webhook_type", eventType),
	)

	payload, err := gh.ValidatePayload(r, h.secret)
	if err != nil {
		logger.Info("webhook payload validation failed", logfields.Event("webhook_validation_failed"), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	event, err := gh.ParseWebHook(eventType, payload)
	if err != nil {
		logger.Info("webhook payload parsing failed", logfields.Event("webhook_parsing_failed"), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	decoded := decode(event, deliveryID, eventType, payload)
	if decoded == nil {
		logger.Debug("ignoring unsupported webhook event type", logfields.Event("webhook_unsupported_event"))
		w.WriteHeader(http.StatusAccepted)
		return
	}

	logger = logger.With(logfields.Repository(decoded.Repository), logfields.PullRequest(decoded.PRNumber))

	if !h.admitter.Admit(decoded) {
		logger.Debug("event is not bert-e's job, dropping silently", logfields.Event("webhook_not_my_job"))
		w.WriteHeader(http.StatusAccepted)
		return
	}

	job := dispatcher.NewJob(decoded.Repository, jobKind(decoded), decoded.PRNumber, decoded, "", time.Now())
	dedup := h.dispatcher.Enqueue(job)

	logger.Info(
		"webhook event enqueued as job",
		logfields.Event("webhook_event_enqueued"),
		logfields.JobID(job.ID.String()),
		zap.Bool("deduplicated", dedup),
	)

	w.WriteHeader(http.StatusAccepted)
}

func jobKind(d *Decoded) dispatcher.Kind {
	switch d.EventType {
	case "status", "check_run":
		return dispatcher.KindBuildStatus
	}

	if d.PRNumber != 0 {
		return dispatcher.KindPullRequest
	}
	return dispatcher.KindCommit
}

// toCIStatus collapses a status/check_run event's state string into the
// provider-neutral tri-state githost.CIStatus.
func toCIStatus(state string) githost.CIStatus {
	switch state {
	case "success":
		return githost.CIStatusSuccess
	case "failure", "error":
		return githost.CIStatusFailure
	default:
		return githost.CIStatusPending
	}
}

func decode(event any, deliveryID, eventType string, raw []byte) *Decoded {
	switch ev := event.(type) {
	case *gh.PullRequestEvent:
		d := &Decoded{
			DeliveryID: deliveryID,
			EventType:  eventType,
			Raw:        raw,
		}
		if repo := ev.GetRepo(); repo != nil {
			d.Repository = repo.GetFullName()
		}
		if pr := ev.GetPullRequest(); pr != nil {
			d.PRNumber = pr.GetNumber()
			if head := pr.GetHead(); head != nil {
				d.CommitSHA = head.GetSHA()
				d.SourceBranch = head.GetRef()
			}
		}
		return d

	case *gh.IssueCommentEvent:
		d := &Decoded{DeliveryID: deliveryID, EventType: eventType, Raw: raw}
		if repo := ev.GetRepo(); repo != nil {
			d.Repository = repo.GetFullName()
		}
		if issue := ev.GetIssue(); issue != nil {
			d.PRNumber = issue.GetNumber()
		}
		return d

	case *gh.StatusEvent:
		d := &Decoded{DeliveryID: deliveryID, EventType: eventType, Raw: raw}
		if repo := ev.GetRepo(); repo != nil {
			d.Repository = repo.GetFullName()
		}
		d.CommitSHA = ev.GetSHA()
		d.BuildStatus = toCIStatus(ev.GetState())
		return d

	case *gh.CheckRunEvent:
		d := &Decoded{DeliveryID: deliveryID, EventType: eventType, Raw: raw}
		if repo := ev.GetRepo(); repo != nil {
			d.Repository = repo.GetFullName()
		}
		if cr := ev.GetCheckRun(); cr != nil {
			d.CommitSHA = cr.GetHeadSHA()
			if cr.GetStatus() == "completed" {
				d.BuildStatus = toCIStatus(cr.GetConclusion())
			} else {
				d.BuildStatus = githost.CIStatusPending
			}
		}
		return d

	default:
		return nil
	}
}
