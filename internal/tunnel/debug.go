package tunnel

import (
	"github.com/sirupsen/logrus"

	"github.com/banshee-data/tunnelguard/internal/monitoring"
)

const logModule = "tunnel"

// opsf logs to the ops stream (hardware errors, resets, shutdown).
func opsf(format string, args ...interface{}) {
	monitoring.Module(logModule).Warnf(format, args...)
}

// diagf logs to the diag stream (activations and phase changes).
func diagf(format string, args ...interface{}) {
	monitoring.Module(logModule).Infof(format, args...)
}

// tracef logs to the trace stream (per-tick readings).
func tracef(format string, args ...interface{}) {
	monitoring.Module(logModule).Tracef(format, args...)
}

// runLog returns a diag entry tagged with the activation it belongs to.
func runLog(subsystem string, r *run) *logrus.Entry {
	return monitoring.Module(logModule).WithFields(logrus.Fields{
		"subsystem": subsystem,
		"run":       r.id.String(),
	})
}
