package core

import "github.com/named-data/yanfd/std/log"

// Log is the process-wide logger every table, the Forwarder, and every
// strategy logs through, e.g. core.Log.Trace(s, "...", "name", n).
var Log = log.New(log.LevelInfo)

// InitLog applies a Config's logging setup to the process-wide logger.
func InitLog(cfg Config) {
	Log.SetLevel(cfg.LogLevel())
}
