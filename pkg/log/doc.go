/*
Package log provides structured logging for osb using zerolog.

The package keeps one global zerolog.Logger that every component derives a
child logger from. Each command initializes it once with Init, pointing it at
the console and at the fixed per-role log file, so every lifecycle step and
health probe lands in both places with a timestamp and a level.

# Outputs

	┌──────────── Logger ────────────┐
	│   redactWriter (mask secrets)  │
	└──────────────┬─────────────────┘
	               │ MultiLevelWriter
	      ┌────────┴─────────┐
	      ▼                  ▼
	  console            log file
	  (colour on TTY)    (no colour, append)

Console lines look like:

	2026-10-19T10:30:00Z INF running stack.sh component=lifecycle phase=install
	2026-10-19T11:02:13Z INF stack.sh finished component=lifecycle outcome=success

JSON output (--json-logs) writes the raw zerolog events to both sinks instead.

# Levels

debug, info, warn and error map onto zerolog levels. Success is not a separate
zerolog level: it logs at info with outcome=success so log scrapers can still
filter on it.

# Secrets

RegisterSecret adds a value that must never be written anywhere. The redacting
writer sits in front of every sink and replaces each registered value with
Mask before the bytes leave the process. NewRedactingWriter applies the same
filter to arbitrary streams such as installer output.

# Usage

	closer, err := log.Init(log.Config{
		Level:    log.InfoLevel,
		FilePath: "/var/log/osb/bootstrap-controller.log",
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	log.RegisterSecret(password)
	logger := log.WithComponent("lifecycle")
	logger.Info().Str("phase", "install").Msg("running stack.sh")
*/
package log
