// Package logging builds the slog logger shared by every rfbridge
// component.
//
// Entries carry service=rfbridge and the build version. Output is JSON by
// default or logfmt-style text when logging.format is "text", filtered at
// logging.level (debug, info, warn, error).
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("eavesdrop").Info("overheard command", "path", "fan/bedroom/command")
package logging
