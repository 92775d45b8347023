// Package jobs runs the tracker's scheduled maintenance tasks with
// github.com/robfig/cron/v3.
//
// # Available Jobs
//
//  1. StaleTelemetryJob marks drivers offline when their last sample is too old.
//  2. SnapshotJob uploads the store snapshot as JSON to object storage.
//
// Jobs are managed through a JobManager, which starts them together and
// stops them together. Schedules use the standard cron syntax, including the
// @every descriptors.
package jobs
