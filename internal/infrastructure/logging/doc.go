// Package logging provides structured logging using uber/zap.
//
// Two profiles exist: DefaultConfig for relayd (sampled JSON on stdout) and
// CLIConfig for the verbose relay command (console output on stderr, which
// keeps stdout free for operation results). Module scoped lines carry the
// FieldModule and FieldModuleID keys; use Logger.Module or ModuleFields.
//
// It also provides Sink, the observability sink guest modules write to
// through the host log function and console. Sink never blocks the guest:
// entries go through a bounded buffer drained by a single goroutine, and a
// full buffer drops the entry.
//
// Example Usage:
//
//	logger := logging.FromConfig("info", false)
//	logger.Module("demo", "mod_01H...").Info("module loaded")
//
//	sink := logging.NewSink(logger.Logger, 1024)
//	defer sink.Close()
//	sink.Log("fetched page", "info", "mod_01H...")
package logging
