// Copyright 2015 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package hamlib

// BandPreset is an opaque quick-select frequency entry. multirig's core
// does not know how presets are derived (that is an external
// collaborator's job); it only consumes the fields below to decide
// whether a requested frequency is in range.
type BandPreset struct {
	Label    string `json:"label" yaml:"label"`
	CenterHz int    `json:"center_hz" yaml:"center_hz"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	LowerHz  *int   `json:"lower_hz,omitempty" yaml:"lower_hz,omitempty"`
	UpperHz  *int   `json:"upper_hz,omitempty" yaml:"upper_hz,omitempty"`
}

// BackendKind selects which concrete Backend a RigConfig should build.
type BackendKind string

const (
	BackendTCP     BackendKind = "tcp"
	BackendManaged BackendKind = "managed"
)

// RigConfig is the already-validated configuration for a single rig.
// Parsing it from YAML/JSON/flags is an external collaborator's
// responsibility; the core only consumes the resulting struct.
type RigConfig struct {
	Name           string       `json:"name" yaml:"name"`
	Enabled        bool         `json:"enabled" yaml:"enabled"`
	PollIntervalMs int          `json:"poll_interval_ms" yaml:"poll_interval_ms"`
	Backend        BackendKind  `json:"backend" yaml:"backend"`

	// tcp backend settings
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`

	// managed backend settings
	ModelID    int    `json:"model_id" yaml:"model_id"`
	Device     string `json:"device" yaml:"device"`
	Baud       int    `json:"baud" yaml:"baud"`
	SerialOpts string `json:"serial_opts" yaml:"serial_opts"`
	ExtraArgs  string `json:"extra_args" yaml:"extra_args"`

	AllowOutOfBand bool         `json:"allow_out_of_band" yaml:"allow_out_of_band"`
	FollowMain     bool         `json:"follow_main" yaml:"follow_main"`
	BandPresets    []BandPreset `json:"band_presets" yaml:"band_presets"`
	Color          string       `json:"color" yaml:"color"`
}

// EffectivePollInterval returns the configured poll interval, or a safe
// default if unset.
func (c RigConfig) EffectivePollInterval() int {
	if c.PollIntervalMs <= 0 {
		return 1000
	}
	return c.PollIntervalMs
}
