package world

import "github.com/zeusync/inputlink/internal/core/grid"

// ProposedAction is one tick of intent for one entity. Every axis is
// independent; false or zero means no-op for that axis.
type ProposedAction struct {
	Move          bool         `json:"move"`
	MoveDirection grid.Heading `json:"moveDirection,omitempty"`

	Rotate          bool         `json:"rotate"`
	RotateDirection grid.Heading `json:"rotateDirection,omitempty"`

	Fire bool `json:"fire"`

	Radar        bool `json:"radar"`
	RadarSetting bool `json:"radarSetting"`

	RadarPower        bool `json:"radarPower"`
	RadarPowerSetting int  `json:"radarPowerSetting"`

	Shields        bool `json:"shields"`
	ShieldsSetting bool `json:"shieldsSetting"`
}

func (a ProposedAction) IsNoop() bool {
	return !a.Move && !a.Rotate && !a.Fire && !a.Radar && !a.RadarPower && !a.Shields
}
