// Package logging provides the structured logger used by obacore.
//
// Loggers are created from a Config:
//
//	log := logging.New(logging.Config{
//	    Level:  "debug",
//	    Format: "json",
//	    Output: "/var/log/obacore.log",
//	})
//
// Every method takes a message followed by alternating keys and values:
//
//	log.Info("entries loaded", "count", n, "snapshot", id)
//
// WithFields returns a child logger that adds the given pairs to every
// line. Tests use NewNop.
package logging
