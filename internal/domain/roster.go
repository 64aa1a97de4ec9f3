package domain

// RosterRow is one record read from a country's roster source. Loaders apply
// normalisation before handing rows out: Party is never empty, PostLabel and
// ImageURL are nil when blank.
type RosterRow struct {
	PersonName string
	PostLabel  *string
	Party      string
	ImageURL   *string
}

// Candidate projects the row into a queued candidate for countryCode.
// Timestamps and HexID are left for the caller to fill.
func (r RosterRow) Candidate(countryCode string, fallbackThumbnail *string) Candidate {
	party := r.Party
	if party == "" {
		party = DefaultParty
	}
	thumb := r.ImageURL
	if thumb == nil {
		thumb = fallbackThumbnail
	}
	return Candidate{
		PersonName:  r.PersonName,
		PostLabel:   NormalizePostLabel(r.PostLabel),
		CountryCode: countryCode,
		Party:       party,
		Thumbnail:   thumb,
		Status:      StatusQueued,
	}
}
