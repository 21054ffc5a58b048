// Package logger wraps zap for the temperature monitor:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and an optional lumberjack-rotated file sink.
//
// Services take a context and log through it, so every entry carries the
// component name and the keys attached on the way down.
package logger
