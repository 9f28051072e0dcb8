package hardware

import "github.com/banshee-data/tunnelguard/internal/monitoring"

const logModule = "hardware"

// opsf logs to the ops stream (device errors, link failures).
func opsf(format string, args ...interface{}) {
	monitoring.Module(logModule).Warnf(format, args...)
}

// diagf logs to the diag stream (handshake, shutdown).
func diagf(format string, args ...interface{}) {
	monitoring.Module(logModule).Infof(format, args...)
}

// tracef logs to the trace stream (every request and reply).
func tracef(format string, args ...interface{}) {
	monitoring.Module(logModule).Tracef(format, args...)
}
