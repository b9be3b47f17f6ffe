package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/bert-e/internal/api"
	"github.com/simplesurance/bert-e/internal/cfg"
	"github.com/simplesurance/bert-e/internal/dispatcher"
	"github.com/simplesurance/bert-e/internal/githost/github"
	"github.com/simplesurance/bert-e/internal/gitwork"
	"github.com/simplesurance/bert-e/internal/integration"
	"github.com/simplesurance/bert-e/internal/issuetracker"
	"github.com/simplesurance/bert-e/internal/issuetracker/jira"
	"github.com/simplesurance/bert-e/internal/logfields"
	"github.com/simplesurance/bert-e/internal/messenger"
	"github.com/simplesurance/bert-e/internal/options"
	"github.com/simplesurance/bert-e/internal/queue"
	"github.com/simplesurance/bert-e/internal/webhook"
)

const appName = "bert-e"

var logger *zap.Logger

// Version is set via a ldflag on compilation.
var Version = "unknown"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught, terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) {
	httpServer := http.Server{
		Addr:    listenAddr,
		Handler: mux,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating http server",
			logfields.Event("http_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Warn(
				"shutting down http server failed",
				logfields.Event("http_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	ShowVersion *bool
}

var args arguments

const defConfigFile = "/etc/bert-e/config.toml"

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the bert-e configuration file",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nGate pull requests onto a GitWaterFlow branch cascade.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// exitOnErr is used here instead of logger.Fatal because the logger
	// is not initialized yet.
	file, err := os.Open(*args.ConfigFile)
	exitOnErr("could not open configuration file", err)
	defer file.Close()

	config, err := cfg.Load(file)
	if err != nil {
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)
	}

	return config
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	c := zap.NewProductionEncoderConfig()

	c.LevelKey = "loglevel"
	c.TimeKey = config.LogTimeKey
	c.EncodeTime = zapcore.ISO8601TimeEncoder
	c.EncodeDuration = zapcore.StringDurationEncoder

	return c
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	c := zapEncoderConfig(config)

	return zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(c),
		os.Stdout,
		logLevel,
	))
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	c := zap.NewProductionConfig()
	c.Sampling = nil
	c.EncoderConfig = zapEncoderConfig(config)
	c.OutputPaths = []string{"stdout"}
	c.Encoding = config.LogFormat
	c.Level = zap.NewAtomicLevelAt(logLevel)

	l, err := c.Build()
	exitOnErr("could not initialize logger", err)

	return l
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else if err := (&logLevel).Set(config.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "can not set log level to %q: %s\n", config.LogLevel, err)
		os.Exit(2)
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}
	return "**hidden**"
}

// buildRepoContext wires one configured repository's collaborators
// together: a git workspace mirror, a git host client, an optional
// issue tracker, the queue manager and its GitOps adapter, the
// integration manager, and the option parser, following the shape of
// the teacher's per-rule wiring in goordinator.RulesFromCfg.
func buildRepoContext(gitCacheDir string, repo *cfg.Repository) (*repoContext, error) {
	if repo.RepositoryHost != "" && repo.RepositoryHost != "github" {
		return nil, fmt.Errorf("repository %s: unsupported repository_host %q, only \"github\" is implemented", repo.Key(), repo.RepositoryHost)
	}

	remoteURL := fmt.Sprintf("https://github.com/%s/%s.git", repo.RepositoryOwner, repo.RepositorySlug)
	ws := gitwork.New(filepath.Join(gitCacheDir, repo.RepositoryOwner, repo.RepositorySlug), remoteURL)

	host := github.New(repo.GithubAPIToken)

	var tracker issuetracker.Tracker
	if repo.JiraAccountURL != "" {
		tracker = jira.New(repo.JiraAccountURL, repo.JiraAPIToken)
	}

	if err := ws.Fetch(context.Background()); err != nil {
		return nil, fmt.Errorf("repository %s: initial fetch failed: %w", repo.Key(), err)
	}

	tips, err := ws.LsRemote(context.Background())
	if err != nil {
		return nil, fmt.Errorf("repository %s: ls-remote failed: %w", repo.Key(), err)
	}

	queueMgr := queue.NewManager(logger.With(logfields.Repository(repo.Key())), &queue.WorkspaceGitOps{Workspace: ws}, tips)
	integrationMgr := integration.NewManager(ws)
	parser := options.NewParser(bypassRules)
	msgr := messenger.New(host, repo.Robot, Version)

	return &repoContext{
		cfg:         repo,
		workspace:   ws,
		host:        host,
		issues:      tracker,
		queueMgr:    queueMgr,
		integration: integrationMgr,
		parser:      parser,
		msgr:        msgr,
		logger:      logger.Named("repo").With(logfields.Repository(repo.Key())),
	}, nil
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) //nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("http_webhook_endpoint", config.HTTPWebhookEndpoint),
		zap.String("http_api_endpoint", config.HTTPAPIEndpoint),
		zap.Int("repositories", len(config.Repositories)),
		zap.String("log_format", config.LogFormat),
		zap.String("log_level", config.LogLevel),
	)

	if config.HTTPListenAddr == "" {
		fmt.Fprintln(os.Stderr, "http_server_listen_addr must be defined in the config file")
		os.Exit(1)
	}

	if config.GitCacheDir == "" {
		fmt.Fprintln(os.Stderr, "git_cache_dir must be defined in the config file")
		os.Exit(1)
	}

	repos := map[string]*repoContext{}
	repoNames := make([]string, 0, len(config.Repositories))

	for _, repoCfg := range config.Repositories {
		rc, err := buildRepoContext(config.GitCacheDir, repoCfg)
		exitOnErr(fmt.Sprintf("could not initialize repository %s", repoCfg.Key()), err)

		repos[rc.key()] = rc
		repoNames = append(repoNames, rc.key())

		logger.Info(
			"repository initialized",
			logfields.Event("repository_initialized"),
			logfields.Repository(rc.key()),
			zap.String("github_api_token", hide(repoCfg.GithubAPIToken)),
			zap.String("github_webhook_secret", hide(repoCfg.GithubWebHookSecret)),
			zap.Bool("jira_configured", rc.issues != nil),
			zap.Bool("queue_enabled", repoCfg.QueueEnabled),
		)
	}

	bertE := &robot{repos: repos}

	lockerFor := func(repository string) dispatcher.Locker {
		rc, ok := repos[repository]
		if !ok {
			return nil
		}
		return rc.workspace
	}

	disp := dispatcher.New(lockerFor, bertE.handle)
	bertE.disp = disp

	admitter, err := webhook.NewRepositoryAdmitter(repoNames, nil)
	exitOnErr("could not build webhook admitter", err)

	mux := http.NewServeMux()

	for _, repoCfg := range config.Repositories {
		hookPath := fmt.Sprintf("%s/%s/%s", trimSlash(config.HTTPWebhookEndpoint), repoCfg.RepositoryOwner, repoCfg.RepositorySlug)
		handler := webhook.New(repoCfg.GithubWebHookSecret, admitter, disp)
		mux.Handle(hookPath, handler)

		logger.Info(
			"registered webhook endpoint",
			logfields.Event("webhook_endpoint_registered"),
			logfields.Repository(repoCfg.Key()),
			zap.String("endpoint", hookPath),
		)
	}

	apiService := api.New(disp, func(repository string) *queue.Manager {
		rc, ok := repos[repository]
		if !ok {
			return nil
		}
		return rc.queueMgr
	}, repoNames)
	apiService.RegisterHandlers(mux, config.HTTPAPIEndpoint)

	startHTTPServer(config.HTTPListenAddr, mux)

	goodbye.Register(func(context.Context, os.Signal) {
		logger.Debug("stopping queue managers", logfields.Event("queues_stopping"))
		for _, rc := range repos {
			rc.queueMgr.Stop()
		}
	})

	select {} // TODO: implement ordered shutdown, wait for in-flight jobs to drain
}

// trimSlash trims a single trailing slash so joining "endpoint/owner/slug"
// never doubles up when endpoint is "/webhook/" or the bare root "/".
func trimSlash(endpoint string) string {
	if endpoint == "/" {
		return ""
	}
	if len(endpoint) > 0 && endpoint[len(endpoint)-1] == '/' {
		return endpoint[:len(endpoint)-1]
	}
	return endpoint
}
