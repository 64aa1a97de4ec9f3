package domain

import "sort"

// PartyInfo carries display metadata for a party within one country.
type PartyInfo struct {
	ShortName string `json:"short_name" yaml:"short_name"`
	Color     string `json:"color"      yaml:"color"`
}

// Country is the static configuration of one tracked country.
//
// RepresentativeCap limits how many roster rows are sampled per reseed; nil
// means the whole roster. UsesRandomAllocation selects hex-cell allocation
// instead of label-based placement on the map.
type Country struct {
	Code                 string               `json:"code"                   yaml:"code"`
	Name                 string               `json:"name"                   yaml:"name"`
	Flag                 string               `json:"flag,omitempty"         yaml:"flag"`
	RosterPath           string               `json:"-"                      yaml:"roster_path"`
	GeometryPath         string               `json:"-"                      yaml:"geometry_path"`
	RepresentativeCap    *int                 `json:"representative_cap"     yaml:"representative_cap"`
	UsesRandomAllocation bool                 `json:"uses_random_allocation" yaml:"uses_random_allocation"`
	Parties              map[string]PartyInfo `json:"parties,omitempty"      yaml:"parties"`
}

// Party resolves display metadata for a party name, falling back to the
// country's "Other" entry and finally to a grey "Other".
func (c Country) Party(name string) PartyInfo {
	if p, ok := c.Parties[name]; ok {
		return p
	}
	if p, ok := c.Parties[DefaultParty]; ok {
		return p
	}
	return PartyInfo{ShortName: DefaultParty, Color: "#CCCCCC"}
}

// Countries is the ordered set of configured countries.
type Countries []Country

// Get returns the country with the given code.
func (cs Countries) Get(code string) (Country, bool) {
	for _, c := range cs {
		if c.Code == code {
			return c, true
		}
	}
	return Country{}, false
}

// Codes lists country codes in configuration order.
func (cs Countries) Codes() []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Code)
	}
	return out
}

// Sorted returns a copy ordered by code.
func (cs Countries) Sorted() Countries {
	out := append(Countries(nil), cs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
