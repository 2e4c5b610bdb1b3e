package cron

// Entry binds a cron pattern to the HTTP path the scheduler tick
// invokes when that pattern matches the current minute.
type Entry struct {
	Name    string
	Pattern string
	Path    string
}

// DefaultSchedule is the fixed table spec §4.6 assigns each engine
// loop: discovery runs hourly, the worker every two minutes,
// maintenance every fifteen minutes, and the health monitor checks in
// twice an hour.
var DefaultSchedule = []Entry{
	{Name: "discover-artists", Pattern: "0 * * * *", Path: "/discover-artists"},
	{Name: "worker", Pattern: "*/2 * * * *", Path: "/worker"},
	{Name: "maintenance", Pattern: "*/15 * * * *", Path: "/maintenance"},
	{Name: "monitor", Pattern: "*/30 * * * *", Path: "/monitor"},
}
