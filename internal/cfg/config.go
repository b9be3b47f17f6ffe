// Package cfg loads the bert-e configuration file.
package cfg

import (
	"fmt"
	"io"
	"io/ioutil"
	"time"

	"github.com/pelletier/go-toml"
)

// Config is the top-level configuration file structure.
type Config struct {
	HTTPListenAddr      string `toml:"http_server_listen_addr"`
	HTTPWebhookEndpoint string `toml:"http_webhook_endpoint" default:"/webhook"`
	HTTPAPIEndpoint     string `toml:"http_api_endpoint" default:"/"`
	LogFormat           string `toml:"log_format" default:"logfmt"`
	LogLevel            string `toml:"log_level" default:"info"`
	LogTimeKey          string `toml:"log_time_key" default:"ts"`

	GitCacheDir string `toml:"git_cache_dir"`

	Repositories []*Repository `toml:"repository"`
}

// Repository is the per-repository configuration described in spec §6.
type Repository struct {
	RepositoryHost  string `toml:"repository_host"`
	RepositoryOwner string `toml:"repository_owner"`
	RepositorySlug  string `toml:"repository_slug"`
	Robot           string `toml:"robot"`
	RobotEmail      string `toml:"robot_email"`
	BuildKey        string `toml:"build_key"`

	GithubAPIToken      string `toml:"github_api_token"`
	GithubWebHookSecret string `toml:"github_webhook_secret"`

	RequiredPeerApprovals   int  `toml:"required_peer_approvals"`
	RequiredLeaderApprovals int  `toml:"required_leader_approvals"`
	NeedAuthorApproval      bool `toml:"need_author_approval"`

	Admins          []string            `toml:"admins"`
	ProjectLeaders  []string            `toml:"project_leaders"`
	PRAuthorOptions map[string][]string `toml:"pr_author_options"`

	JiraAccountURL string   `toml:"jira_account_url"`
	JiraEmail      string   `toml:"jira_email"`
	JiraAPIToken   string   `toml:"jira_api_token"`
	JiraKeys       []string `toml:"jira_keys"`
	// Prefixes maps an issue type name to the branch prefix it must be
	// used with, e.g. {"Bug": "bugfix", "Story": "feature"}.
	Prefixes            map[string]string `toml:"prefixes"`
	BypassPrefixes      []string          `toml:"bypass_prefixes"`
	DisableVersionCheck bool              `toml:"disable_version_checks"`

	MaxCommitDiff                   int           `toml:"max_commit_diff"`
	AlwaysCreateIntegrationPRs      bool          `toml:"always_create_integration_pull_requests"`
	AlwaysCreateIntegrationBranches bool          `toml:"always_create_integration_branches"`
	QueueEnabled                    bool          `toml:"queue_enabled" default:"true"`
	QueueHeadLabel                  string        `toml:"queue_head_label" default:"queued"`
	StaleTimeout                    time.Duration `toml:"stale_timeout"`
	ExternalCallTimeout             time.Duration `toml:"external_call_timeout"`
}

func (r *Repository) String() string {
	return fmt.Sprintf("%s/%s@%s", r.RepositoryOwner, r.RepositorySlug, r.RepositoryHost)
}

// Key uniquely identifies a repository within a Config.
func (r *Repository) Key() string {
	return r.RepositoryHost + "/" + r.RepositoryOwner + "/" + r.RepositorySlug
}

// Load parses a bert-e configuration file.
func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := ioutil.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.applyDefaults()

	if err := result.validate(); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Config) applyDefaults() {
	if c.LogFormat == "" {
		c.LogFormat = "logfmt"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.LogTimeKey == "" {
		c.LogTimeKey = "ts"
	}

	if c.HTTPWebhookEndpoint == "" {
		c.HTTPWebhookEndpoint = "/webhook"
	}

	if c.HTTPAPIEndpoint == "" {
		c.HTTPAPIEndpoint = "/"
	}

	for _, repo := range c.Repositories {
		if repo.QueueHeadLabel == "" {
			repo.QueueHeadLabel = "queued"
		}

		if repo.StaleTimeout == 0 {
			repo.StaleTimeout = 3 * time.Hour
		}

		if repo.ExternalCallTimeout == 0 {
			repo.ExternalCallTimeout = 60 * time.Second
		}

		if repo.RequiredLeaderApprovals > repo.RequiredPeerApprovals {
			repo.RequiredLeaderApprovals = repo.RequiredPeerApprovals
		}
	}
}

func (c *Config) validate() error {
	if len(c.Repositories) == 0 {
		return fmt.Errorf("configuration must define at least one [[repository]]")
	}

	seen := make(map[string]struct{}, len(c.Repositories))

	for _, repo := range c.Repositories {
		if repo.RepositoryOwner == "" || repo.RepositorySlug == "" {
			return fmt.Errorf("repository entry is missing repository_owner or repository_slug")
		}

		key := repo.Key()
		if _, exist := seen[key]; exist {
			return fmt.Errorf("repository %s is configured twice", key)
		}
		seen[key] = struct{}{}

		if repo.Robot == "" {
			return fmt.Errorf("repository %s: robot must be set", key)
		}
	}

	return nil
}

// Marshal writes the configuration back out as TOML.
func (c *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(c)
}
