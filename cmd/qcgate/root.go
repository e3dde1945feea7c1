package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyeonwoo-dev/qcgate/internal/activity"
	"github.com/hyeonwoo-dev/qcgate/internal/config"
	"github.com/hyeonwoo-dev/qcgate/internal/events"
	"github.com/hyeonwoo-dev/qcgate/internal/execution"
	"github.com/hyeonwoo-dev/qcgate/internal/feedback"
	"github.com/hyeonwoo-dev/qcgate/internal/logging"
	"github.com/hyeonwoo-dev/qcgate/internal/project"
	"github.com/hyeonwoo-dev/qcgate/internal/report"
	"github.com/hyeonwoo-dev/qcgate/internal/store"
	"github.com/hyeonwoo-dev/qcgate/internal/testplan"

	dashsvc "github.com/hyeonwoo-dev/qcgate/internal/dashboard"
)

var (
	dataDir string
	debug   bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "qcgate",
	Short: "qcgate - QC verification workflow service",
	Long: `qcgate tracks projects through the QC lifecycle: test planning,
checklist execution with auto-saved progress, feedback routing, and the
verification report that approves deployment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(debug)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (default: $QCGATE_DATA or ./qcgate-data)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, dashCmd, stagesCmd, initCmd)
}

// services bundles everything a command needs wired together.
type services struct {
	cfg        *config.Config
	db         *store.DB
	activity   *activity.Log
	bus        *events.Router
	projects   *project.Store
	plans      *testplan.Store
	catalogue  *testplan.Catalogue
	executions *execution.Store
	fbStore    *feedback.Store
	fbRouter   *feedback.Router
	reports    *report.Flow
	dashboard  *dashsvc.Service
}

func loggerPrintf() logging.Printf {
	if logger == nil {
		return logging.Nop()
	}
	return logging.NewPrintf(logger)
}

// resolveDataDir picks the data directory from the flag, the environment,
// or the default relative path, in that order.
func resolveDataDir() string {
	if dir := strings.TrimSpace(dataDir); dir != "" {
		return dir
	}
	if dir := strings.TrimSpace(os.Getenv("QCGATE_DATA")); dir != "" {
		return dir
	}
	return "qcgate-data"
}

func buildServices() (*services, error) {
	dir := resolveDataDir()
	if err := config.Init(dir); err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	log, err := activity.New(cfg.ActivityLogPath())
	if err != nil {
		db.Close()
		return nil, err
	}
	catalogue, err := testplan.LoadCatalogue(cfg.TemplateDir())
	if err != nil {
		db.Close()
		return nil, err
	}

	printf := loggerPrintf()
	bus := events.NewRouter(events.RouterWithLogger(printf))
	projects := project.NewStore(db, project.WithActivity(log), project.WithPublisher(bus))
	fbStore := feedback.NewStore(db)
	fbRouter := feedback.NewRouter(fbStore, projects, log, bus, feedback.RouterWithLogger(printf))
	executions := execution.NewStore(db)

	return &services{
		cfg:        cfg,
		db:         db,
		activity:   log,
		bus:        bus,
		projects:   projects,
		plans:      testplan.NewStore(db),
		catalogue:  catalogue,
		executions: executions,
		fbStore:    fbStore,
		fbRouter:   fbRouter,
		reports:    report.NewFlow(db, executions, fbStore, projects, log, bus, report.FlowWithLogger(printf)),
		dashboard:  dashsvc.NewService(db, log, dashsvc.WithLogger(printf)),
	}, nil
}

func (s *services) close() {
	if s == nil {
		return
	}
	s.fbRouter.Stop()
	if err := s.db.Close(); err != nil {
		logger.Warn("close database", zap.Error(err))
	}
}
