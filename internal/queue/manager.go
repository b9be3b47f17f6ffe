package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/bert-e/internal/logfields"
	"github.com/simplesurance/bert-e/internal/queue/orderedmap"
	"github.com/simplesurance/bert-e/internal/queue/routines"
)

var (
	// ErrQueueConflict is returned by Admit when creating a queue item
	// would conflict with already-queued content (spec §4.5).
	ErrQueueConflict = errors.New("queue: admission would conflict with existing queue content")
	// ErrOutOfOrder is returned by Promote when a lane's ancestor chain
	// is broken (spec §4.5 "out-of-order detection").
	ErrOutOfOrder = errors.New("queue: lane ancestor chain is broken")
)

// GitOps is the minimal set of git operations the queue manager needs to
// materialize and promote lanes; the dispatcher supplies a concrete
// implementation backed by an *gitwork.Workspace.
type GitOps interface {
	CreateQueueItemBranch(ctx context.Context, lane, prBranchName, parent, content string) (tip string, err error)
	FastForward(ctx context.Context, destination, tip string) error
	DeleteBranch(ctx context.Context, name string) error
}

// Manager holds the queue state for one repository: one lane per
// destination in the current cascade set, each an ordered chain of items.
// Adapted from the teacher's per-base-branch queue struct, generalized to
// lanes-of-multi-destination items instead of one-PR-per-branch autoupdate.
type Manager struct {
	mu    sync.Mutex
	items *orderedmap.Map[int, *Item]

	lanes map[string]laneState

	logger *zap.Logger
	git    GitOps
	pool   *routines.Pool

	metrics *Metrics
}

type laneState struct {
	tip string
}

// NewManager builds a Manager for one repository. destinationTips is the
// current tip of each destination branch, used as the initial parent for
// a lane's first admitted item.
func NewManager(logger *zap.Logger, git GitOps, destinationTips map[string]string) *Manager {
	lanes := make(map[string]laneState, len(destinationTips))
	for d, tip := range destinationTips {
		lanes[d] = laneState{tip: tip}
	}

	return &Manager{
		items:   orderedmap.New[int, *Item](),
		lanes:   lanes,
		logger:  logger.Named("queue"),
		git:     git,
		pool:    routines.NewPool(1),
		metrics: newMetrics(),
	}
}

// Admit implements spec §4.5's admission rule: for every destination in
// the PR's cascade, create a queue-item branch chained onto the lane's
// current tip, and fast-forward the lane. If any lane's item would
// conflict, nothing is admitted and ErrQueueConflict is returned.
func (m *Manager) Admit(ctx context.Context, prNumber int, sourceBranch, sourceSHA string, cascadeDestinations []string, contentTipPerDestination map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.items.Get(prNumber) != nil {
		return fmt.Errorf("queue: pr %d already admitted", prNumber)
	}

	item := &Item{PRNumber: prNumber, SourceBranch: sourceBranch, SourceSHA: sourceSHA, AdmittedAt: time.Now()}

	for _, d := range cascadeDestinations {
		lane, exist := m.lanes[d]
		if !exist {
			lane = laneState{}
			m.lanes[d] = lane
		}

		parent := lane.tip
		if parent == "" {
			return fmt.Errorf("%w: lane %q has no known tip", ErrQueueConflict, d)
		}

		branchName := queueItemBranchName(prNumber, d, sourceBranch)
		content := contentTipPerDestination[d]

		tip, err := m.git.CreateQueueItemBranch(ctx, d, branchName, parent, content)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrQueueConflict, err)
		}

		item.Lanes = append(item.Lanes, ItemLane{
			Destination: d,
			BranchName:  branchName,
			Tip:         tip,
			Parent:      parent,
			Status:      RowPending,
		})

		m.lanes[d] = laneState{tip: tip}
	}

	m.items.EnqueueIfNotExist(prNumber, item)
	m.metrics.QueueSize.WithLabelValues().Inc()

	m.logger.Info("pull request admitted to queue",
		logfields.PullRequest(prNumber),
		logfields.Event("queue_admitted"),
	)

	return nil
}

func queueItemBranchName(pr int, destinationVersion, src string) string {
	return fmt.Sprintf("q/w/%d/%s/%s", pr, destinationVersion, src)
}

// SetItemLaneStatus records the build status reported for one item's
// lane, in preparation for the next Promote call.
func (m *Manager) SetItemLaneStatus(prNumber int, destination string, status RowStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.items.Get(prNumber)
	if item == nil {
		return
	}

	for i := range item.Lanes {
		if item.Lanes[i].Destination == destination {
			item.Lanes[i].Status = status
		}
	}
}

// Snapshot returns the current queue items in admission order.
func (m *Manager) Snapshot() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	ptrs := m.items.AsSlice()
	out := make([]Item, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

// PromotionResult reports what Promote did.
type PromotionResult struct {
	PromotedPRs []int
	// PartialMerges lists promoted PRs whose source branch advanced past
	// the commit recorded at admission time: only the originally-queued
	// commits were promoted, not what the source now carries (spec
	// §4.5 "partial merge").
	PartialMerges []int
	Advanced      map[string]string // destination -> new tip
}

// Promote implements §4.5's promotion: verify ancestry, compute the
// promotable prefix, fast-forward every destination it touches, and
// remove the promoted items from the queue. It does not close the
// promoted PRs and does not rebuild the remaining items' queue branches;
// those keep the parents recorded at admission.
// currentSourceHeads, keyed by PR number, is compared against each
// promoted item's admission-time SourceSHA to detect a partial merge; it
// may be nil to skip that check (as ForceMerge does).
func (m *Manager) Promote(ctx context.Context, laneTipsAtStart map[string]string, currentSourceHeads map[int]string) (*PromotionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.items.AsSlice()
	itemVals := make([]Item, len(items))
	for i, p := range items {
		itemVals[i] = *p
	}

	for destination, tip := range laneTipsAtStart {
		if !IsAncestorChain(itemVals, destination, tip) {
			return nil, fmt.Errorf("%w: lane %q", ErrOutOfOrder, destination)
		}
	}

	n := PromotablePrefixLen(itemVals)
	if n == 0 {
		return &PromotionResult{Advanced: map[string]string{}}, nil
	}

	advanced := map[string]string{}
	var promoted, partial []int

	for i := 0; i < n; i++ {
		it := itemVals[i]
		for _, lane := range it.Lanes {
			advanced[lane.Destination] = lane.Tip
		}
		promoted = append(promoted, it.PRNumber)

		if head, ok := currentSourceHeads[it.PRNumber]; ok && head != "" && it.SourceSHA != "" && head != it.SourceSHA {
			partial = append(partial, it.PRNumber)
		}
	}

	if err := m.fastForwardAll(ctx, advanced); err != nil {
		return nil, err
	}

	for _, prNumber := range promoted {
		item := m.items.Dequeue(prNumber)
		if item != nil {
			m.metrics.QueueSize.WithLabelValues().Dec()
		}
	}

	m.logger.Info("promoted prefix of queue",
		zap.Ints("bert_e.promoted_prs", promoted),
		zap.Ints("bert_e.partial_merge_prs", partial),
		logfields.Event("queue_promoted"),
	)

	return &PromotionResult{PromotedPRs: promoted, PartialMerges: partial, Advanced: advanced}, nil
}

// fastForwardAll runs one FastForward per destination on the manager's
// pool and waits for all of them; the pool has a single worker, so the
// lanes advance one after another.
func (m *Manager) fastForwardAll(ctx context.Context, advanced map[string]string) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(advanced))

	for destination, tip := range advanced {
		destination, tip := destination, tip
		wg.Add(1)
		m.pool.Queue(func() {
			defer wg.Done()
			if err := m.git.FastForward(ctx, destination, tip); err != nil {
				errs <- fmt.Errorf("promoting lane %q: %w", destination, err)
			}
		})
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		return err
	}

	return nil
}

// ForceMerge promotes every currently queued PR regardless of build
// status, a privileged operation per §4.5.
func (m *Manager) ForceMerge(ctx context.Context) (*PromotionResult, error) {
	m.mu.Lock()
	items := m.items.AsSlice()
	m.mu.Unlock()

	laneTips := map[string]string{}
	for _, it := range items {
		for _, l := range it.Lanes {
			if _, exist := laneTips[l.Destination]; !exist {
				laneTips[l.Destination] = l.Parent
			}
		}
	}

	m.mu.Lock()
	for _, it := range items {
		for i := range it.Lanes {
			it.Lanes[i].Status = RowGreen
		}
	}
	m.mu.Unlock()

	return m.Promote(ctx, laneTips, nil)
}

// Rebuild implements §4.5's "Reset / Rebuild": delete all queue branches
// and return the PR numbers that must be re-enqueued via a fresh
// PullRequest job. PRs currently carrying the "wait" option are skipped.
func (m *Manager) Rebuild(ctx context.Context) ([]int, error) {
	m.mu.Lock()
	items := m.items.AsSlice()
	m.mu.Unlock()

	var toReenqueue []int

	for _, it := range items {
		for _, l := range it.Lanes {
			if err := m.git.DeleteBranch(ctx, l.BranchName); err != nil {
				m.logger.Warn("deleting queue branch during rebuild failed",
					zap.String("branch", l.BranchName), zap.Error(err))
			}
		}

		if !it.Wait {
			toReenqueue = append(toReenqueue, it.PRNumber)
		}
	}

	m.mu.Lock()
	m.items = orderedmap.New[int, *Item]()
	m.mu.Unlock()

	return toReenqueue, nil
}

// Stop drains the manager's action pool.
func (m *Manager) Stop() {
	m.pool.Wait()
}
