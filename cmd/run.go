package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/initializ/convey/config"
	"github.com/initializ/convey/container"
	"github.com/initializ/convey/credentials"
	"github.com/initializ/convey/credentials/awssm"
	"github.com/initializ/convey/history"
	"github.com/initializ/convey/internal/report"
	"github.com/initializ/convey/internal/telemetry"
	"github.com/initializ/convey/notify"
	"github.com/initializ/convey/pipeline"
	"github.com/initializ/convey/runner"
	"github.com/initializ/convey/scm"
	"github.com/initializ/convey/stages"
)

var traceSpans bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline defined in convey.yaml",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().BoolVar(&traceSpans, "trace", false, "print stage spans to stderr")
}

func runRun(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	logger := newLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if traceSpans {
		shutdown, err := telemetry.InitTracer("convey", os.Stderr, logger)
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer shutdown(context.WithoutCancel(ctx)) //nolint:errcheck
	}

	engine, err := selectEngine(cfg)
	if err != nil {
		return err
	}
	logger.Info("using container engine", "engine", engine.Name())

	creds, err := buildCredentialStore(ctx, cfg)
	if err != nil {
		return err
	}

	gate := container.NewHealthGate(engine, logger)
	deployer := container.NewDeployer(engine, gate, logger)
	deployer.Settle = cfg.SettleDuration()
	deps := stages.Deps{
		Builder:   container.NewBuilder(engine, logger),
		Publisher: container.NewPublisher(engine, logger),
		Gate:      gate,
		Deployer:  deployer,
		Creds:     creds,
	}
	stageList, err := stages.FromSpecs(cfg, deps)
	if err != nil {
		return err
	}

	hist, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer hist.Close()

	src := scm.Describe(".")
	runID := uuid.NewString()
	number, err := hist.Begin(ctx, runID, cfg.Project, src.Branch, src.Revision)
	if err != nil {
		return err
	}

	rc := pipeline.NewRunContext(runID, number)
	rc.Project = cfg.Project
	rc.Branch = src.Branch
	rc.Revision = src.Revision
	rc.BuildURL = cfg.BuildURL
	rc.Secrets = creds

	pipe := pipeline.New(stageList...)
	dispatcher, err := buildDispatcher(ctx, cfg, creds, logger)
	if err != nil {
		return err
	}
	hook := stages.NotifyHook(dispatcher, cfg.Notify.Recipients)
	pipe.OnSuccess(hook).OnFailure(hook).Always(stages.CleanupHook())

	logger.Info("starting run",
		"run", number, "project", cfg.Project, "branch", src.Branch, "revision", src.Revision)

	orch := pipeline.NewOrchestrator(runner.New(logger), logger)
	out := orch.Run(ctx, pipe, rc)

	image := ""
	if ref, ok := rc.Image.(container.ImageReference); ok {
		image = ref.PrimaryName()
	}
	if err := hist.Finish(context.WithoutCancel(ctx), number, image, out); err != nil {
		logger.Warn("recording run history failed", "run", number, "error", err)
	}

	report.New(os.Stdout).Run(cfg.Project, number, out)

	if !out.Success {
		cmd.SilenceErrors = true
		return fmt.Errorf("run #%d failed", number)
	}
	return nil
}

func selectEngine(cfg *config.Config) (container.Engine, error) {
	if cfg.Engine != "" {
		engine := container.Get(cfg.Engine)
		if engine == nil {
			return nil, fmt.Errorf("unknown container engine %q", cfg.Engine)
		}
		return engine, nil
	}
	engine := container.Detect()
	if engine == nil {
		return nil, fmt.Errorf("no container engine available: install docker or podman")
	}
	return engine, nil
}

func buildCredentialStore(ctx context.Context, cfg *config.Config) (*credentials.Store, error) {
	var providers []credentials.Provider
	for _, source := range cfg.Credentials.Sources {
		switch source {
		case "env":
			providers = append(providers, credentials.NewEnv())
		case "aws":
			var opts []awssm.Option
			if cfg.Credentials.AWSRegion != "" {
				opts = append(opts, awssm.WithRegion(cfg.Credentials.AWSRegion))
			}
			if cfg.Credentials.AWSPrefix != "" {
				opts = append(opts, awssm.WithPrefix(cfg.Credentials.AWSPrefix))
			}
			p, err := awssm.New(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("configuring aws credential source: %w", err)
			}
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("unknown credential source %q", source)
		}
	}
	return credentials.NewStore(providers...), nil
}

func buildDispatcher(ctx context.Context, cfg *config.Config, creds *credentials.Store, logger *slog.Logger) (notify.Dispatcher, error) {
	if cfg.Notify.SMTP.Host == "" || len(cfg.Notify.Recipients) == 0 {
		return nil, nil
	}
	smtpCfg := notify.SMTPConfig{
		Host: cfg.Notify.SMTP.Host,
		Port: cfg.Notify.SMTP.Port,
		From: cfg.Notify.SMTP.From,
	}
	if cfg.Notify.SMTP.Credential != "" {
		cred, err := creds.Resolve(ctx, cfg.Notify.SMTP.Credential)
		if err != nil {
			return nil, fmt.Errorf("resolving smtp credential: %w", err)
		}
		smtpCfg.Username = cred.Username
		smtpCfg.Password = cred.Secret
	}
	return notify.NewSMTPDispatcher(smtpCfg, logger), nil
}
