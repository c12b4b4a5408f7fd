// Package logger provides structured logging for the storefront packages.
//
// Every component takes a Logger and never writes to stdout directly. The
// production implementation is backed by zap; NoOp discards everything and is
// the default when a component is built without a logger.
//
// Fields may be passed as Field values, as a map[string]interface{}, or as
// alternating key/value pairs:
//
//	log.Info("cart refreshed", logger.F("lines", 3))
//	log.Warn("refresh dropped", map[string]interface{}{"user_id": id})
//	log.Error("add failed", "item_id", itemID, "error", err)
//
// Loggers derived with With, WithField and WithFields carry their fields into
// every later entry:
//
//	cartLog := log.WithField("component", "cart")
//
// # Levels
//
// debug, info, warn (or warning) and error. SetLevel adjusts a logger and all
// loggers derived from it.
package logger
