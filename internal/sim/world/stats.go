package world

// Stats summarizes one generated world.
type Stats struct {
	GrowthPasses     int            `json:"growth_passes"`
	Eroded           int            `json:"eroded"`
	MandatoryPerTier [3]int         `json:"mandatory_per_tier"`
	Roles            map[string]int `json:"roles"`
	Zones            map[string]int `json:"zones"`
	BareFiller       int            `json:"bare_filler"`
}

func countZones(zones []Zone) (roles, byType map[string]int) {
	roles = map[string]int{}
	byType = map[string]int{}
	for _, z := range zones {
		roles[z.Role.String()]++
		byType[z.ZoneType]++
	}
	return roles, byType
}
