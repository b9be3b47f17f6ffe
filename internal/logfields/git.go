package logfields

import "go.uber.org/zap"

func PullRequest(val int) zap.Field {
	return zap.Int("github.pull_request", val)
}

func Repository(val string) zap.Field {
	return zap.String("git.repository", val)
}

func RepositoryOwner(val string) zap.Field {
	return zap.String("github.repository_owner", val)
}

func BaseBranch(val string) zap.Field {
	return zap.String("git.base_branch", val)
}

func Commit(val string) zap.Field {
	return zap.String("git.commit", val)
}

func Branch(val string) zap.Field {
	return zap.String("git.branch", val)
}

func DestinationBranch(val string) zap.Field {
	return zap.String("git.destination_branch", val)
}

func IntegrationBranch(val string) zap.Field {
	return zap.String("git.integration_branch", val)
}

func QueueBranch(val string) zap.Field {
	return zap.String("git.queue_branch", val)
}

func StatusCode(val int) zap.Field {
	return zap.Int("bert_e.status_code", val)
}

func JobID(val string) zap.Field {
	return zap.String("bert_e.job_id", val)
}

func JobKind(val string) zap.Field {
	return zap.String("bert_e.job_kind", val)
}

func Label(val string) zap.Field {
	return zap.String("github.label", val)
}

func IssueKey(val string) zap.Field {
	return zap.String("tracker.issue_key", val)
}
