package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"

	"github.com/mailfold/mailfold/interfaces"
	cron_config "github.com/mailfold/mailfold/internal/cron/config"
	"github.com/mailfold/mailfold/internal/logger"
	"github.com/mailfold/mailfold/internal/tracing"
)

const (
	// GroupMaintenance is the group for checkpoint maintenance jobs
	GroupMaintenance = "maintenance"
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupMaintenance: new(sync.Mutex),
	},
}

type CronManager struct {
	log         logger.Logger
	cron        *cronv3.Cron
	stopCh      chan struct{}
	jobIDs      map[string]cronv3.EntryID
	engine      interfaces.SyncEngine
	checkpoints interfaces.SyncCheckpointRepository
}

func NewCronManager(log logger.Logger, engine interfaces.SyncEngine, checkpoints interfaces.SyncCheckpointRepository) *CronManager {
	return &CronManager{
		log:         log,
		stopCh:      make(chan struct{}),
		jobIDs:      make(map[string]cronv3.EntryID),
		engine:      engine,
		checkpoints: checkpoints,
	}
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	// Load cron config from environment variables
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	// Register heartbeat job
	if cronConfig.CronScheduleHeartbeat != "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from host: %s", hostname)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	// Register orphaned checkpoint pruning job
	if cronConfig.CronSchedulePruneCheckpoints != "" {
		id, err := c.AddFunc(cronConfig.CronSchedulePruneCheckpoints, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupMaintenance].Lock()
			defer jobLocks.locks[GroupMaintenance].Unlock()
			cm.pruneOrphanedCheckpoints()
		})
		if err != nil {
			cm.log.Fatalf("Could not add checkpoint pruning cron job: %v", err)
		}
		cm.jobIDs["prune_checkpoints"] = id
		cm.log.Infof("Registered checkpoint pruning job with schedule: %s", cronConfig.CronSchedulePruneCheckpoints)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	// Create a new cron with seconds field enabled and panic recovery
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger), // Skip if still running
			cronv3.Recover(cronv3.DefaultLogger),            // Default recovery as backup
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// pruneOrphanedCheckpoints removes stored checkpoints for accounts that are
// no longer registered with the engine.
func (cm *CronManager) pruneOrphanedCheckpoints() {
	cm.log.Info("Running orphaned checkpoint pruning")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.pruneOrphanedCheckpoints")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	active := cm.engine.Status()

	checkpoints, err := cm.checkpoints.GetAllCheckpoints(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list checkpoints: %v", err)
		return
	}

	pruned := 0
	seen := make(map[string]bool)
	for _, checkpoint := range checkpoints {
		if seen[checkpoint.AccountID] {
			continue
		}
		seen[checkpoint.AccountID] = true

		if _, ok := active[checkpoint.AccountID]; ok {
			continue
		}
		cm.log.Infof("Pruning checkpoints for removed account: %s", checkpoint.AccountID)
		if err := cm.checkpoints.DeleteAccountCheckpoints(ctx, checkpoint.AccountID); err != nil {
			tracing.TraceErr(span, err)
			cm.log.Errorf("[%s] Failed to prune checkpoints: %v", checkpoint.AccountID, err)
			continue
		}
		pruned++
	}

	span.SetTag("pruned", pruned)
	cm.log.Infof("Checkpoint pruning complete, removed %d account(s)", pruned)
}
