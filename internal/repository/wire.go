package repository

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/abelbrown/nexttogo/internal/model"
)

// nextRacesResponse is the racing API payload. Order lives in NextToGoIDs;
// RaceSummaries is an unordered lookup table keyed by the same IDs.
type nextRacesResponse struct {
	Data *nextRacesData `json:"data"`
}

type nextRacesData struct {
	NextToGoIDs   []string               `json:"next_to_go_ids"`
	RaceSummaries map[string]raceSummary `json:"race_summaries"`
}

type raceSummary struct {
	RaceID          string          `json:"race_id"`
	RaceName        string          `json:"race_name"`
	RaceNumber      int             `json:"race_number"`
	MeetingID       string          `json:"meeting_id"`
	MeetingName     string          `json:"meeting_name"`
	CategoryID      string          `json:"category_id"`
	AdvertisedStart advertisedStart `json:"advertised_start"`
	RaceForm        *raceForm       `json:"race_form"`
	VenueName       string          `json:"venue_name"`
	VenueState      string          `json:"venue_state"`
	VenueCountry    string          `json:"venue_country"`
}

type advertisedStart struct {
	Seconds *float64 `json:"seconds"`
}

type raceForm struct {
	Distance       int         `json:"distance"`
	DistanceType   *raceDetail `json:"distance_type"`
	TrackCondition *raceDetail `json:"track_condition"`
	Weather        *raceDetail `json:"weather"`
	RaceComment    string      `json:"race_comment"`
}

type raceDetail struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

// dropReason names why a listed ID did not become a Race.
type dropReason string

const (
	dropMissingSummary dropReason = "missing_summary"
	dropBadStart       dropReason = "bad_start"
	dropUnknownCat     dropReason = "unknown_category"
)

var errShape = errors.New("response missing data.next_to_go_ids or data.race_summaries")

func decodeResponse(body []byte) (*nextRacesData, error) {
	var resp nextRacesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.NextToGoIDs == nil || resp.Data.RaceSummaries == nil {
		return nil, errShape
	}
	return resp.Data, nil
}

// normalize walks the ID list in order and converts every usable summary.
// Bad entries are dropped and counted; they are never errors.
func normalize(data *nextRacesData) ([]model.Race, map[dropReason]int) {
	drops := make(map[dropReason]int)
	races := make([]model.Race, 0, len(data.NextToGoIDs))

	for _, id := range data.NextToGoIDs {
		summary, ok := data.RaceSummaries[id]
		if !ok {
			drops[dropMissingSummary]++
			continue
		}
		start, ok := summary.AdvertisedStart.time()
		if !ok {
			drops[dropBadStart]++
			continue
		}
		cat, ok := model.ParseCategory(summary.CategoryID)
		if !ok {
			drops[dropUnknownCat]++
			continue
		}

		races = append(races, model.Race{
			ID:              id,
			MeetingID:       summary.MeetingID,
			MeetingName:     summary.MeetingName,
			RaceName:        summary.RaceName,
			RaceNumber:      summary.RaceNumber,
			Category:        cat,
			AdvertisedStart: start,
			VenueName:       summary.VenueName,
			VenueState:      summary.VenueState,
			VenueCountry:    summary.VenueCountry,
			Form:            summary.RaceForm.toModel(),
		})
	}
	return races, drops
}

func (a advertisedStart) time() (time.Time, bool) {
	if a.Seconds == nil {
		return time.Time{}, false
	}
	s := *a.Seconds
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(math.Round(s * 1000))), true
}

func (f *raceForm) toModel() *model.Form {
	if f == nil {
		return nil
	}
	return &model.Form{
		Distance:       f.Distance,
		DistanceType:   f.DistanceType.name(),
		TrackCondition: f.TrackCondition.name(),
		Weather:        f.Weather.name(),
		Comment:        f.RaceComment,
	}
}

func (d *raceDetail) name() string {
	if d == nil {
		return ""
	}
	return d.Name
}
