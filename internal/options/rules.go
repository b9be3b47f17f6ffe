package options

// DefaultRules is the known-token table referenced throughout spec §4.3
// and §4.4/§4.5: every bypass_* option is privileged, "approve" is
// authored, and the remaining commands/options require neither.
var DefaultRules = []Rule{
	{Name: "bypass_incompatible_branch", Kind: KindOption, Privileged: true},
	{Name: "bypass_jira_check", Kind: KindOption, Privileged: true},
	{Name: "bypass_author_approval", Kind: KindOption, Privileged: true},
	{Name: "bypass_peer_approval", Kind: KindOption, Privileged: true},
	{Name: "bypass_leader_approval", Kind: KindOption, Privileged: true},
	{Name: "bypass_build_status", Kind: KindOption, Privileged: true},
	{Name: "disable_version_checks", Kind: KindOption, Privileged: true},
	{Name: "no_octopus", Kind: KindOption},
	{Name: "wait", Kind: KindOption},
	{Name: "after_pull_request", Kind: KindOption},
	{Name: "approve", Kind: KindOption, Authored: true},
	{Name: "reset", Kind: KindCommand},
	{Name: "force_reset", Kind: KindCommand, Privileged: true},
	{Name: "force_merge", Kind: KindCommand, Privileged: true},
}
