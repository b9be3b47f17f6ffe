package messenger

import (
	"net/url"
	"text/template"
)

var templateFuncs = template.FuncMap{
	"queryescape": url.QueryEscape,
}

const defaultTemplate = `{{if .message}}{{.message}}{{else}}Status update.{{end}}`

// Templates maps a gating status code to the text/template body rendered
// for it, keyed by the numeric code so this package does not need to
// import internal/gating. Grounded on the teacher's rule.go renderFunc:
// the same text/template.FuncMap-based approach, generalized from
// templating action fields to templating a fixed per-code message body.
var Templates = map[int]string{
	100: `Hello {{.author}}, my name is bert-e. I will be assisting you with the merge of this pull request.
Please type "@bert-e help" to get information on this process, or "@bert-e status" to get the current status.`,

	102: `This pull request has been successfully merged into all destination branches. Thank you for your contribution!`,

	105: `Your branch's prefix "{{.prefix}}" isn't one I recognize. Please rename it to start with one of the permitted prefixes.`,

	106: `The prefix of your source branch is incompatible with the destination branch you are targeting.`,

	107: `I could not find an issue key in your source branch's name. Please rename the branch to include one.`,

	108: `I could not find the issue referenced by this pull request's branch name in the issue tracker.`,

	109: `The issue referenced by this pull request's branch name is a subtask; it must reference its parent issue instead.`,

	110: `The issue referenced by this pull request's branch name belongs to project "{{.project}}", which is not one of the allowed projects for this repository.`,

	111: `The issue type "{{.issueType}}" does not match the "{{.want}}" prefix your branch name uses.`,

	112: `The issue's fix versions do not include every destination branch this pull request cascades into.`,

	113: `The integration branches no longer agree with the source branch's history; please resolve the divergence.`,

	114: `I encountered a conflict while creating the integration branch for {{.destination}}: {{.message}}`,

	115: `{{if eq .missing "author"}}Waiting on your approval of this pull request.{{else if eq .missing "peer"}}Waiting on peer approval{{if eq .reason "changes_requested"}}, and a reviewer requested changes{{end}}.{{else}}Waiting on project-leader approval.{{end}}`,

	118: `The build{{if .tip}} for {{.tip}}{{end}} did not succeed{{if .status}} (status: {{.status}}){{end}}; I will retry once a new build status is reported.`,

	119: `This pull request has been added to the merge queue. It will be merged automatically once its build succeeds and it reaches the front of every lane.`,

	120: `This pull request is waiting on pull request(s) {{.deps}} to be merged first (after_pull_request option).`,

	121: `{{if .message}}{{.message}}{{else}}I created the integration branches for this pull request. They will be kept in sync automatically.{{end}}`,

	122: `I did not understand the command in your comment; type "@bert-e help" to see the available commands.`,

	123: `You are not authorized to use that command or option on this pull request.`,

	134: `This pull request has diverged too far ({{.distance}} commits) from its destination branch.`,

	135: `The after_pull_request option forms a cycle with pull request(s) {{.deps}}; please break the cycle.`,

	140: `I could not admit this pull request to the merge queue: {{.message}}`,

	141: `The merge queue detected an out-of-order promotion attempt and stopped: {{.message}}. Please re-trigger a queue rebuild.`,

	142: `This pull request was merged from the merge queue, but its source branch advanced after admission{{if .message}}: {{.message}}{{end}}. The newer commits were not included and will need a fresh pull request evaluation.`,
}
