package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/droidbench-cli/internal/agent"
	"github.com/xkilldash9x/droidbench-cli/internal/config"
	"github.com/xkilldash9x/droidbench-cli/internal/device"
	"github.com/xkilldash9x/droidbench-cli/internal/harness"
	"github.com/xkilldash9x/droidbench-cli/internal/network"
	"github.com/xkilldash9x/droidbench-cli/internal/observability"
	"github.com/xkilldash9x/droidbench-cli/internal/session"
	"github.com/xkilldash9x/droidbench-cli/internal/store"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs a suite of benchmark tasks against the configured device",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so command-line flags override
			// values from the config file and environment variables.
			if err := viper.BindPFlag("engine.rpc_url", cmd.Flags().Lookup("rpc-url")); err != nil {
				return err
			}
			if err := viper.BindPFlag("device.a11y_method", cmd.Flags().Lookup("a11y-method")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			tasks, err := loadSuite(viper.GetString("suite"), viper.GetString("goal"), viper.GetString("task_name"))
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return fmt.Errorf("no tasks to run: provide --suite or --goal")
			}

			suiteID := uuid.New().String()
			logger.Info("Starting benchmark suite",
				zap.String("suiteID", suiteID),
				zap.Int("tasks", len(tasks)),
				zap.String("device", cfg.Device().DeviceName()),
			)

			components, err := initializeRunComponents(ctx, cfg, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return fmt.Errorf("failed to initialize run components: %w", err)
			}
			defer components.Shutdown()

			results, err := components.Harness.Run(ctx, suiteID, tasks)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Suite aborted gracefully", zap.String("suiteID", suiteID))
					return fmt.Errorf("suite aborted by user signal")
				}
				logger.Error("Suite failed", zap.Error(err), zap.String("suiteID", suiteID))
				return err
			}

			completed := 0
			for _, r := range results {
				if r.Done {
					completed++
				}
			}
			fmt.Printf("\nSuite Complete. Suite ID: %s\n", suiteID)
			fmt.Printf("Tasks: %d, Completed: %d, Failed: %d\n", len(results), completed, len(results)-completed)
			return nil
		},
	}

	runCmd.Flags().StringP("suite", "s", "", "Path to a JSON suite file describing the tasks to run.")
	runCmd.Flags().StringP("goal", "g", "", "Run a single ad-hoc task with this goal instead of a suite file.")
	runCmd.Flags().String("task_name", "adhoc", "Task name used with --goal.")
	runCmd.Flags().String("rpc-url", "", "HTTP endpoint of the automation engine. (Overrides config/env)")
	runCmd.Flags().String("a11y-method", "", "UI state retrieval method: forwarder, uiautomator, none. (Overrides config/env)")

	return runCmd
}

// runComponents holds initialized services.
type runComponents struct {
	Controller *device.Controller
	Harness    *harness.Harness
	DBPool     *pgxpool.Pool
}

// Shutdown gracefully closes all components.
func (rc *runComponents) Shutdown() {
	if rc.Controller != nil {
		if err := rc.Controller.Close(); err != nil {
			observability.GetLogger().Warn("Error during device controller shutdown", zap.Error(err))
		}
	}
	if rc.DBPool != nil {
		rc.DBPool.Close()
	}
}

// initializeRunComponents handles dependency injection.
func initializeRunComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*runComponents, error) {
	components := &runComponents{}

	// 1. Device controller
	controller, err := device.Connect(cfg.Device(), cfg.Snapshot(), logger)
	if err != nil {
		return components, fmt.Errorf("failed to connect to device: %w", err)
	}
	components.Controller = controller

	// 2. Engine session client
	clientCfg := network.NewDefaultClientConfig()
	if t := cfg.Engine().RequestTimeout; t > 0 {
		clientCfg.RequestTimeout = t
	}
	httpClient := network.NewClient(clientCfg)

	rpcClient, err := session.NewClient(cfg.Engine().RPCURL, cfg.Engine().MaxAttempts, httpClient, logger)
	if err != nil {
		return components, err
	}
	driver := agent.NewDriver(rpcClient, cfg.Device(), logger)

	// 3. Optional results store
	var recorder harness.Recorder
	if cfg.Results().Enabled {
		dbPool, err := pgxpool.New(ctx, cfg.Results().URL)
		if err != nil {
			return components, fmt.Errorf("failed to connect to results database: %w", err)
		}
		components.DBPool = dbPool

		dbStore, err := store.New(ctx, dbPool, logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize results store: %w", err)
		}
		if err := dbStore.EnsureSchema(ctx); err != nil {
			return components, err
		}
		recorder = dbStore
	}

	// 4. Harness
	var observer harness.Observer
	if cfg.Device().A11yMethod != config.A11yMethodNone {
		observer = controller
	}
	components.Harness = harness.New(driver, observer, recorder, logger)

	return components, nil
}

// loadSuite reads the task list from a suite file, or synthesizes a single
// task from the --goal flag.
func loadSuite(suitePath, goal, taskName string) ([]harness.Task, error) {
	if suitePath != "" {
		data, err := os.ReadFile(suitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read suite file: %w", err)
		}
		var tasks []harness.Task
		if err := json.Unmarshal(data, &tasks); err != nil {
			return nil, fmt.Errorf("failed to parse suite file %s: %w", suitePath, err)
		}
		for i := range tasks {
			if tasks[i].ID == "" {
				tasks[i].ID = fmt.Sprintf("%d", i)
			}
		}
		return tasks, nil
	}
	if goal == "" {
		return nil, nil
	}
	return []harness.Task{{
		ID:   fmt.Sprintf("%d", time.Now().Unix()),
		Name: taskName,
		Goal: goal,
	}}, nil
}
