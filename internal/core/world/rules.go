package world

// Rules are the scoring and resource constants of a scenario. Penalties and
// costs are signed score deltas.
type Rules struct {
	LegalMoveCost       int `yaml:"legal_move_cost"`
	IllegalMovePenalty  int `yaml:"illegal_move_penalty"`
	FuelNegativePenalty int `yaml:"fuel_negative_penalty"`
	HitReward           int `yaml:"hit_reward"`
	KillReward          int `yaml:"kill_reward"`

	MissileDamage    int `yaml:"missile_damage"`
	ShieldEnergyCost int `yaml:"shield_energy_cost"`
	RechargeRate     int `yaml:"recharge_rate"`
	MaxRadarPower    int `yaml:"max_radar_power"`

	Respawn bool      `yaml:"respawn"`
	Initial Resources `yaml:"initial"`
}

func DefaultRules() Rules {
	return Rules{
		LegalMoveCost:       -1,
		IllegalMovePenalty:  -2,
		FuelNegativePenalty: -20,
		HitReward:           2,
		KillReward:          3,
		MissileDamage:       400,
		ShieldEnergyCost:    20,
		RechargeRate:        250,
		MaxRadarPower:       14,
		Respawn:             true,
		Initial: Resources{
			Health:   1000,
			Energy:   1000,
			Missiles: 15,
		},
	}
}
