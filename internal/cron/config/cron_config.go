package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Orphaned checkpoint pruning, daily at midnight
	CronSchedulePruneCheckpoints string `env:"CRON_SCHEDULE_PRUNE_CHECKPOINTS" envDefault:"0 0 0 * * *"`
}
