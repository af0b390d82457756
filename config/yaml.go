package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlChannel is the editable-document mirror of PyroChannelConfig:
// string enums instead of raw byte values, the shape an engineer at the
// pad actually edits (AMBIENT STACK).
type yamlChannel struct {
	Role               string  `yaml:"role"`
	AltitudeSource     string  `yaml:"altitude_source"`
	EarlyDeploy        bool    `yaml:"early_deploy"`
	BackupModeIsHeight bool    `yaml:"backup_mode_is_height"`
	FireDurationS      float32 `yaml:"fire_duration_s"`
	DeployAltitudeM    float32 `yaml:"deploy_altitude_m"`
	TimeAfterApogeeS   float32 `yaml:"time_after_apogee_s"`
	EarlyDeployVelMps  float32 `yaml:"early_deploy_velocity_mps"`
	BackupValue        float32 `yaml:"backup_value"`
	MotorNumber        uint8   `yaml:"motor_number"`
	MaxRollDeg         uint8   `yaml:"max_roll_deg"`
	MaxPitchDeg        uint8   `yaml:"max_pitch_deg"`
	MinVelocityMps     float32 `yaml:"min_velocity_mps"`
	MinAltitudeM       float32 `yaml:"min_altitude_m"`
	FireDelayS         float32 `yaml:"fire_delay_s"`
}

type yamlDocument struct {
	Version            uint8         `yaml:"version"`
	Channels           []yamlChannel `yaml:"channels"`
	PadLatDeg          float32       `yaml:"pad_lat_deg"`
	PadLonDeg          float32       `yaml:"pad_lon_deg"`
	PadAltMSLM         float32       `yaml:"pad_alt_msl_m"`
	SafetyAltThreshold float32       `yaml:"safety_alt_threshold_m"`
	SafetyVelThreshold float32       `yaml:"safety_vel_threshold_mps"`
	MinBattV           float32       `yaml:"min_batt_v"`
	MinIntegrityPct    float32       `yaml:"min_integrity_pct"`
}

var roleByName = map[string]PyroRole{
	"none": RoleNone, "drogue": RoleDrogue, "main": RoleMain,
	"backup_drogue": RoleBackupDrogue, "backup_main": RoleBackupMain,
	"airstart": RoleAirstart, "separation": RoleSeparation, "custom": RoleCustom,
}

var sourceByName = map[string]AltitudeSource{
	"barometer": SourceBarometer, "gps": SourceGPS, "fused": SourceFused,
}

func toYAMLChannel(c PyroChannelConfig) yamlChannel {
	return yamlChannel{
		Role:               c.Role.String(),
		AltitudeSource:     c.AltitudeSource.String(),
		EarlyDeploy:        c.EarlyDeploy,
		BackupModeIsHeight: c.BackupModeIsHeight,
		FireDurationS:      c.FireDurationS,
		DeployAltitudeM:    c.DeployAltitudeM,
		TimeAfterApogeeS:   c.TimeAfterApogeeS,
		EarlyDeployVelMps:  c.EarlyDeployVelocity,
		BackupValue:        c.BackupValue,
		MotorNumber:        c.MotorNumber,
		MaxRollDeg:         c.MaxRollDeg,
		MaxPitchDeg:        c.MaxPitchDeg,
		MinVelocityMps:     c.MinVelocityMps,
		MinAltitudeM:       c.MinAltitudeM,
		FireDelayS:         c.FireDelayS,
	}
}

func fromYAMLChannel(yc yamlChannel) (PyroChannelConfig, error) {
	role, ok := roleByName[yc.Role]
	if !ok {
		return PyroChannelConfig{}, fmt.Errorf("config: unknown pyro role %q", yc.Role)
	}
	src, ok := sourceByName[yc.AltitudeSource]
	if !ok {
		return PyroChannelConfig{}, fmt.Errorf("config: unknown altitude source %q", yc.AltitudeSource)
	}
	return PyroChannelConfig{
		Role:                role,
		AltitudeSource:      src,
		EarlyDeploy:         yc.EarlyDeploy,
		BackupModeIsHeight:  yc.BackupModeIsHeight,
		FireDurationS:       yc.FireDurationS,
		DeployAltitudeM:     yc.DeployAltitudeM,
		TimeAfterApogeeS:    yc.TimeAfterApogeeS,
		EarlyDeployVelocity: yc.EarlyDeployVelMps,
		BackupValue:         yc.BackupValue,
		MotorNumber:         yc.MotorNumber,
		MaxRollDeg:          yc.MaxRollDeg,
		MaxPitchDeg:         yc.MaxPitchDeg,
		MinVelocityMps:      yc.MinVelocityMps,
		MinAltitudeM:        yc.MinAltitudeM,
		FireDelayS:          yc.FireDelayS,
	}, nil
}

// MarshalYAML renders cfg as the human-editable document.
func MarshalYAML(cfg FlightConfig) ([]byte, error) {
	doc := yamlDocument{
		Version:            cfg.Version,
		PadLatDeg:          cfg.PadLatDeg,
		PadLonDeg:          cfg.PadLonDeg,
		PadAltMSLM:         cfg.PadAltMSLM,
		SafetyAltThreshold: cfg.SafetyAltThreshold,
		SafetyVelThreshold: cfg.SafetyVelThreshold,
		MinBattV:           cfg.MinBattV,
		MinIntegrityPct:    cfg.MinIntegrityPct,
	}
	for _, c := range cfg.Channels {
		doc.Channels = append(doc.Channels, toYAMLChannel(c))
	}
	return yaml.Marshal(doc)
}

// UnmarshalYAML parses the human-editable document into a FlightConfig.
func UnmarshalYAML(data []byte) (FlightConfig, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return FlightConfig{}, fmt.Errorf("config: parsing yaml: %w", err)
	}
	if len(doc.Channels) != 4 {
		return FlightConfig{}, fmt.Errorf("config: expected 4 channels, got %d", len(doc.Channels))
	}

	cfg := FlightConfig{
		Version:            doc.Version,
		PadLatDeg:          doc.PadLatDeg,
		PadLonDeg:          doc.PadLonDeg,
		PadAltMSLM:         doc.PadAltMSLM,
		SafetyAltThreshold: doc.SafetyAltThreshold,
		SafetyVelThreshold: doc.SafetyVelThreshold,
		MinBattV:           doc.MinBattV,
		MinIntegrityPct:    doc.MinIntegrityPct,
	}
	for i, yc := range doc.Channels {
		ch, err := fromYAMLChannel(yc)
		if err != nil {
			return FlightConfig{}, fmt.Errorf("config: channel %d: %w", i, err)
		}
		cfg.Channels[i] = ch
	}
	return cfg, nil
}

// LoadYAMLFile reads and parses a FlightConfig document from disk.
func LoadYAMLFile(path string) (FlightConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FlightConfig{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return UnmarshalYAML(data)
}

// SaveYAMLFile renders cfg and writes it to disk.
func SaveYAMLFile(path string, cfg FlightConfig) error {
	data, err := MarshalYAML(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
