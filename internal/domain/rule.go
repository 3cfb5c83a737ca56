package domain

// Rule flags observations of one species inside a date window and region.
type Rule struct {
	Species string
	Window  DateWindow
	Region  *Region

	// Line is the rules-source line the rule was parsed from.
	Line int
}

// Matches reports whether obs satisfies both the window and the region.
func (r Rule) Matches(obs Observation) bool {
	return r.Window.Contains(obs.Date) && r.Region.Contains(obs.Lat, obs.Lon)
}

// AlwaysMatches reports whether the rule flags every observation of its species.
func (r Rule) AlwaysMatches() bool {
	return r.Window.Unbounded() && r.Region == nil
}
