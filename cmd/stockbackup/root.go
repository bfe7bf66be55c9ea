package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/adapter/fsm"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/adapter/otel"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/adapter/sqlite"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/app"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/blueprint"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/config"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/logging"
)

// cli carries what PersistentPreRunE resolves for every subcommand.
type cli struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "stockbackup",
		Short:        "Tenant-scoped request workflow engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
			}, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			c.cfg = cfg
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		newServeCmd(c),
		newProvisionCmd(c),
		newBlueprintsCmd(),
	)
	return root
}

// openDB opens the instrumented database and runs migrations.
func openDB(cfg *config.Config) (*sqlite.DB, error) {
	sqlDB, err := otel.OpenDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	db, err := sqlite.NewFromDB(sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("database: %w", err)
	}
	return db, nil
}

// newService builds the workflow service on db with the configured
// blueprint, key and permission mode.
func newService(cfg *config.Config, db *sqlite.DB, logger *zap.Logger, opts ...app.Option) (*app.WorkflowService, error) {
	bp, err := blueprint.Load(cfg.Workflow.Blueprint)
	if err != nil {
		return nil, err
	}

	opts = append([]app.Option{
		app.WithLogger(logger.Named("workflow")),
		app.WithWorkflowKey(cfg.Workflow.Key),
		app.WithLazyProvisioning(cfg.Workflow.LazyProvisioning),
	}, opts...)
	if cfg.Workflow.EnforcePermissions {
		opts = append(opts, app.WithPermissionChecker(app.HeldPermissions{}))
	}

	return app.NewWorkflowService(app.Repositories{
		Definitions: sqlite.NewDefinitionRepository(db),
		States:      sqlite.NewStateRepository(db),
		Transitions: sqlite.NewTransitionRepository(db),
		Instances:   otel.NewTracingInstanceRepository(sqlite.NewInstanceRepository(db)),
		Events:      sqlite.NewEventRepository(db),
		Requests:    otel.NewTracingRequestRepository(sqlite.NewRequestRepository(db)),
	}, db, fsm.New(), bp, opts...), nil
}
