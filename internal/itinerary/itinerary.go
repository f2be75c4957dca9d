// Package itinerary provides the structured day-by-day travel plan and the
// machinery that recovers it from free-form assistant replies.
package itinerary

import (
	"fmt"
	"time"
)

// Marker is the literal sequence the model is instructed to emit between
// its human-readable reply and the embedded itinerary JSON. It must match
// the system prompt verbatim.
const Marker = "<!--ITINERARY_JSON-->"

// Itinerary is a complete travel plan.
type Itinerary struct {
	Days []Day `json:"days"`
}

// Day is one calendar day of the plan.
type Day struct {
	Date  string `json:"date"`
	Items []Item `json:"items"`
}

// Item is a single scheduled activity.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	TimeRange string    `json:"timeRange,omitempty"`
	Location  *Location `json:"location,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// Location is an optional place attached to an item.
type Location struct {
	Name    string  `json:"name,omitempty"`
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
}

// Empty returns an itinerary with no days, the initial state of every
// conversation.
func Empty() Itinerary {
	return Itinerary{Days: []Day{}}
}

// Normalize converts a freshly parsed itinerary object into the canonical
// schema. Models sometimes reply in a legacy shape (ordinal "day" fields,
// "activities"/"activity"/"time" instead of "items"/"title"/"timeRange");
// this is the single place that shape is migrated — callers never branch
// on it again.
//
// Rules: a day's date comes from its "date" field, from its legacy "day"
// ordinal (day 1 = base date), or from its position in the list. Items
// without a title are dropped; days left with no items are dropped. Item
// ids are synthesized as day-{n}-item-{m} when absent. Returns false if
// no days survive.
func Normalize(raw map[string]any, base time.Time) (*Itinerary, bool) {
	rawDays, ok := raw["days"].([]any)
	if !ok {
		return nil, false
	}

	itin := &Itinerary{}
	for i, rd := range rawDays {
		dm, ok := rd.(map[string]any)
		if !ok {
			continue
		}

		day := Day{Date: dayDate(dm, i, base)}

		rawItems, ok := dm["items"].([]any)
		if !ok {
			rawItems, _ = dm["activities"].([]any)
		}

		for j, ri := range rawItems {
			im, ok := ri.(map[string]any)
			if !ok {
				continue
			}
			item, ok := normalizeItem(im, i, j)
			if !ok {
				continue
			}
			day.Items = append(day.Items, item)
		}

		if len(day.Items) == 0 {
			continue
		}
		itin.Days = append(itin.Days, day)
	}

	if len(itin.Days) == 0 {
		return nil, false
	}
	return itin, true
}

// dayDate resolves a day's calendar date. Position is the zero-based index
// of the day in the raw list.
func dayDate(dm map[string]any, position int, base time.Time) string {
	if date, ok := dm["date"].(string); ok && date != "" {
		return date
	}

	offset := position
	if ordinal, ok := dm["day"].(float64); ok && ordinal >= 1 {
		offset = int(ordinal) - 1
	}
	return base.AddDate(0, 0, offset).Format("2006-01-02")
}

func normalizeItem(im map[string]any, dayIdx, itemIdx int) (Item, bool) {
	title, _ := im["title"].(string)
	if title == "" {
		title, _ = im["activity"].(string)
	}
	if title == "" {
		return Item{}, false
	}

	item := Item{Title: title}

	if id, ok := im["id"].(string); ok && id != "" {
		item.ID = id
	} else {
		item.ID = fmt.Sprintf("day-%d-item-%d", dayIdx+1, itemIdx+1)
	}

	if tr, ok := im["timeRange"].(string); ok && tr != "" {
		item.TimeRange = tr
	} else if tr, ok := im["time"].(string); ok && tr != "" {
		item.TimeRange = tr
	}

	if notes, ok := im["notes"].(string); ok {
		item.Notes = notes
	}

	if lm, ok := im["location"].(map[string]any); ok {
		loc := &Location{}
		loc.Name, _ = lm["name"].(string)
		loc.Address, _ = lm["address"].(string)
		loc.Lat, _ = lm["lat"].(float64)
		loc.Lon, _ = lm["lon"].(float64)
		if loc.Name != "" || loc.Address != "" || loc.Lat != 0 || loc.Lon != 0 {
			item.Location = loc
		}
	}

	return item, true
}
