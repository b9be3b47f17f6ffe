// Package messenger implements spec §4's "post message once" semantics
// and the status-report footer every emitted comment ends with.
//
// Rendering is kept outside the gating evaluator per spec §9's redesign
// note: the evaluator emits a MessageSpec{Code, Params}, and this
// package turns it into comment text. Idempotency is derived from
// (Code, hash(Params)) and verified by scanning the PR's existing
// comments rather than any in-process state, following spec §8's "no
// in-process mutation is authoritative" property. The text/template
// rendering itself follows the teacher's internal/goordinator/rule.go
// renderFunc.
package messenger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"text/template"

	"go.uber.org/zap"

	"github.com/simplesurance/bert-e/internal/githost"
	"github.com/simplesurance/bert-e/internal/logfields"
)

// MessageSpec is what the gating evaluator (or any other caller) asks
// the messenger to communicate: a status code plus the parameters its
// template needs, per spec §9.
type MessageSpec struct {
	Code   int
	Params map[string]any
}

// Messenger posts idempotent, footer-stamped comments to a git host PR.
type Messenger struct {
	host         githost.Client
	robotName    string
	robotVersion string
	logger       *zap.Logger
}

// New returns a Messenger posting through host, identifying itself as
// robotName and stamping robotVersion into every footer.
func New(host githost.Client, robotName, robotVersion string) *Messenger {
	return &Messenger{
		host:         host,
		robotName:    robotName,
		robotVersion: robotVersion,
		logger:       zap.L().Named("messenger"),
	}
}

func idempotencyKey(spec MessageSpec) (code string, hash string, err error) {
	keys := make([]string, 0, len(spec.Params))
	for k := range spec.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	normalized := make(map[string]any, len(spec.Params))
	for _, k := range keys {
		normalized[k] = spec.Params[k]
	}

	b, err := json.Marshal(normalized)
	if err != nil {
		return "", "", fmt.Errorf("messenger: marshaling params for idempotency key failed: %w", err)
	}

	sum := sha256.Sum256(b)
	return fmt.Sprintf("%d", spec.Code), hex.EncodeToString(sum[:]), nil
}

func marker(code, hash string) string {
	return fmt.Sprintf("<!-- bert-e:idempotency:%s:%s -->", code, hash)
}

// alreadyPosted scans the PR's existing comments for a footer marker
// matching spec's (code, hash) pair, satisfying the at-most-once property
// without any in-process state.
func (m *Messenger) alreadyPosted(ctx context.Context, owner, repo string, prNumber int, code, hash string) (bool, error) {
	comments, err := m.host.ListComments(ctx, owner, repo, prNumber)
	if err != nil {
		return false, err
	}

	want := marker(code, hash)
	for _, c := range comments {
		if c.Author == m.robotName && bytes.Contains([]byte(c.Body), []byte(want)) {
			return true, nil
		}
	}

	return false, nil
}

// Post renders spec and posts it to the PR unless an equivalent message
// (same code, same rendered params) is already present, per spec §8
// ("Exactly one 'hello' per PR lifetime" generalizes to "exactly one
// copy of any given (code, params) message").
func (m *Messenger) Post(ctx context.Context, owner, repo string, prNumber int, spec MessageSpec, activeOptions []string) error {
	code, hash, err := idempotencyKey(spec)
	if err != nil {
		return err
	}

	posted, err := m.alreadyPosted(ctx, owner, repo, prNumber, code, hash)
	if err != nil {
		return fmt.Errorf("messenger: checking for existing message failed: %w", err)
	}

	if posted {
		m.logger.Debug(
			"message already posted, skipping",
			logfields.PullRequest(prNumber), logfields.StatusCode(spec.Code),
			logfields.Event("message_idempotent_skip"),
		)
		return nil
	}

	body, err := m.render(spec, activeOptions, marker(code, hash))
	if err != nil {
		return fmt.Errorf("messenger: rendering message failed: %w", err)
	}

	if _, err := m.host.CreateComment(ctx, owner, repo, prNumber, body); err != nil {
		return fmt.Errorf("messenger: posting comment failed: %w", err)
	}

	m.logger.Info(
		"posted message",
		logfields.PullRequest(prNumber), logfields.StatusCode(spec.Code),
		logfields.Event("message_posted"),
	)

	return nil
}

func (m *Messenger) render(spec MessageSpec, activeOptions []string, idempotencyMarker string) (string, error) {
	tmplText, ok := Templates[spec.Code]
	if !ok {
		tmplText = defaultTemplate
	}

	tmpl, err := template.New("message").Funcs(templateFuncs).Parse(tmplText)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, spec.Params); err != nil {
		return "", err
	}

	footer, err := renderFooter(spec.Code, m.robotVersion, activeOptions)
	if err != nil {
		return "", err
	}

	return body.String() + "\n\n" + footer + "\n" + idempotencyMarker, nil
}
