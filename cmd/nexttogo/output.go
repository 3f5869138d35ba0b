package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abelbrown/nexttogo/internal/model"
	"github.com/abelbrown/nexttogo/internal/ui"
)

// raceJSON is the machine-readable form printed by once and cached.
type raceJSON struct {
	ID           string      `json:"id"`
	Meeting      string      `json:"meeting"`
	RaceNumber   int         `json:"race_number"`
	RaceName     string      `json:"race_name,omitempty"`
	Category     string      `json:"category"`
	Start        time.Time   `json:"advertised_start"`
	StartsIn     string      `json:"starts_in"`
	VenueCountry string      `json:"venue_country,omitempty"`
	Form         *model.Form `json:"form,omitempty"`
}

type listJSON struct {
	Filter    string     `json:"filter"`
	FromCache bool       `json:"from_cache"`
	Error     string     `json:"error,omitempty"`
	Races     []raceJSON `json:"races"`
}

func writeRaces(w io.Writer, format string, races []model.Race, filter model.CategorySet, fromCache bool, lastErr error, now time.Time) error {
	switch strings.ToLower(format) {
	case "json", "":
		out := listJSON{Filter: filter.String(), FromCache: fromCache, Races: make([]raceJSON, 0, len(races))}
		if lastErr != nil {
			out.Error = lastErr.Error()
		}
		for _, r := range races {
			out.Races = append(out.Races, raceJSON{
				ID:           r.ID,
				Meeting:      r.MeetingName,
				RaceNumber:   r.RaceNumber,
				RaceName:     r.RaceName,
				Category:     strings.ToLower(r.Category.String()),
				Start:        r.AdvertisedStart,
				StartsIn:     ui.FormatCountdown(r.AdvertisedStart.Sub(now)),
				VenueCountry: r.VenueCountry,
				Form:         r.Form,
			})
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err

	case "text":
		if fromCache {
			fmt.Fprintln(w, "(from cache)")
		}
		if len(races) == 0 {
			_, err := fmt.Fprintf(w, "no upcoming races (filter: %s)\n", filter)
			return err
		}
		for _, r := range races {
			fmt.Fprintf(w, "%8s  %-10s  %-24s  R%d\n",
				ui.FormatCountdown(r.AdvertisedStart.Sub(now)), r.Category, r.MeetingName, r.RaceNumber)
		}
		return nil
	}
	return fmt.Errorf("unknown format %q (valid: json, text)", format)
}
