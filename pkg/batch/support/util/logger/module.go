package logger

import "go.uber.org/fx"

// Module routes fx lifecycle events through the Logger supplied to the application.
var Module = fx.WithLogger(NewFxLoggerAdapter)
