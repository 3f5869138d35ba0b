// Package model defines the race domain used across nexttogo.
package model

import (
	"sort"
	"time"
)

// GracePeriod is how long a race stays displayable after its advertised start.
const GracePeriod = 60 * time.Second

// Race is a single next-to-go racing event. Identity and equality are keyed on ID.
type Race struct {
	ID              string
	MeetingID       string
	MeetingName     string
	RaceName        string
	RaceNumber      int
	Category        Category
	AdvertisedStart time.Time

	// Provenance. Carried through, never inspected by selection.
	VenueName    string
	VenueState   string
	VenueCountry string
	Form         *Form
}

// Form is the optional race form block returned by the API.
type Form struct {
	Distance       int    `json:"distance,omitempty"`
	DistanceType   string `json:"distance_type,omitempty"`
	TrackCondition string `json:"track_condition,omitempty"`
	Weather        string `json:"weather,omitempty"`
	Comment        string `json:"comment,omitempty"`
}

// ValidAt reports whether the race is still displayable at now, using GracePeriod.
func (r Race) ValidAt(now time.Time) bool {
	return r.ValidWithin(now, GracePeriod)
}

// ValidWithin reports whether AdvertisedStart+grace is strictly after now.
func (r Race) ValidWithin(now time.Time, grace time.Duration) bool {
	return r.AdvertisedStart.Add(grace).After(now)
}

// Less orders races by advertised start, then meeting name, then ID.
func Less(a, b Race) bool {
	if !a.AdvertisedStart.Equal(b.AdvertisedStart) {
		return a.AdvertisedStart.Before(b.AdvertisedStart)
	}
	if a.MeetingName != b.MeetingName {
		return a.MeetingName < b.MeetingName
	}
	return a.ID < b.ID
}

// SortRaces sorts in place using Less.
func SortRaces(races []Race) {
	sort.SliceStable(races, func(i, j int) bool {
		return Less(races[i], races[j])
	})
}

// CategoriesOf returns the set of categories present in races.
func CategoriesOf(races []Race) CategorySet {
	set := NewCategorySet()
	for _, r := range races {
		set.Add(r.Category)
	}
	return set
}

// IDs returns the race IDs in order.
func IDs(races []Race) []string {
	ids := make([]string, len(races))
	for i, r := range races {
		ids[i] = r.ID
	}
	return ids
}
