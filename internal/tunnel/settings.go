package tunnel

import (
	"time"

	"github.com/banshee-data/tunnelguard/internal/config"
)

// Settings are the tunables the coordinator runs with.
type Settings struct {
	DetectionThresholdCM float64
	SampleCount          int
	MinValidSamples      int
	TickInterval         time.Duration
	PedestrianCooldown   time.Duration
	AlertToneHz          int
	EscalationToneHz     int
	TunnelClearanceCM    float64
	ScaleRatio           float64
}

// SettingsFromConfig resolves every tunable from cfg, defaults included.
func SettingsFromConfig(cfg *config.TunnelConfig) Settings {
	return Settings{
		DetectionThresholdCM: cfg.GetDetectionThresholdCM(),
		SampleCount:          cfg.GetSampleCount(),
		MinValidSamples:      cfg.GetMinValidSamples(),
		TickInterval:         cfg.GetTickInterval(),
		PedestrianCooldown:   cfg.GetPedestrianCooldown(),
		AlertToneHz:          cfg.GetAlertToneHz(),
		EscalationToneHz:     cfg.GetEscalationToneHz(),
		TunnelClearanceCM:    cfg.GetTunnelClearanceCM(),
		ScaleRatio:           cfg.GetScaleRatio(),
	}
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return SettingsFromConfig(config.EmptyTunnelConfig())
}
