package itinerary

import (
	"encoding/json"
	"testing"
	"time"
)

var testBase = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func parseRaw(t *testing.T, s string) map[string]any {
	t.Helper()
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		t.Fatalf("parse test input: %v", err)
	}
	return raw
}

func TestNormalize_LegacyShape(t *testing.T) {
	raw := parseRaw(t, `{"days":[{"day":1,"activities":[{"activity":"Hike","time":"9am"}]}]}`)

	itin, ok := Normalize(raw, testBase)
	if !ok {
		t.Fatal("Normalize returned false")
	}
	if len(itin.Days) != 1 {
		t.Fatalf("got %d days, want 1", len(itin.Days))
	}

	day := itin.Days[0]
	if day.Date != "2025-01-10" {
		t.Errorf("date = %q, want 2025-01-10 (base date for day 1)", day.Date)
	}
	if len(day.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(day.Items))
	}

	item := day.Items[0]
	if item.ID != "day-1-item-1" {
		t.Errorf("id = %q, want day-1-item-1", item.ID)
	}
	if item.Title != "Hike" {
		t.Errorf("title = %q, want Hike", item.Title)
	}
	if item.TimeRange != "9am" {
		t.Errorf("timeRange = %q, want 9am", item.TimeRange)
	}
}

func TestNormalize_LegacyOrdinalOffsets(t *testing.T) {
	raw := parseRaw(t, `{"days":[
		{"day":1,"activities":[{"activity":"Arrive"}]},
		{"day":3,"activities":[{"activity":"Depart"}]}
	]}`)

	itin, ok := Normalize(raw, testBase)
	if !ok {
		t.Fatal("Normalize returned false")
	}
	if itin.Days[0].Date != "2025-01-10" {
		t.Errorf("day 1 date = %q", itin.Days[0].Date)
	}
	if itin.Days[1].Date != "2025-01-12" {
		t.Errorf("day 3 date = %q, want 2025-01-12", itin.Days[1].Date)
	}
}

func TestNormalize_PositionFallbackDates(t *testing.T) {
	raw := parseRaw(t, `{"days":[
		{"items":[{"title":"A"}]},
		{"items":[{"title":"B"}]}
	]}`)

	itin, ok := Normalize(raw, testBase)
	if !ok {
		t.Fatal("Normalize returned false")
	}
	if itin.Days[0].Date != "2025-01-10" || itin.Days[1].Date != "2025-01-11" {
		t.Errorf("dates = %q, %q", itin.Days[0].Date, itin.Days[1].Date)
	}
}

func TestNormalize_ExplicitDateAndIDPreserved(t *testing.T) {
	raw := parseRaw(t, `{"days":[{"date":"2025-06-01","items":[
		{"id":"custom-1","title":"Museum","timeRange":"10:00-12:00","notes":"book ahead",
		 "location":{"name":"Louvre","lat":48.86,"lon":2.33}}
	]}]}`)

	itin, ok := Normalize(raw, testBase)
	if !ok {
		t.Fatal("Normalize returned false")
	}
	item := itin.Days[0].Items[0]
	if itin.Days[0].Date != "2025-06-01" {
		t.Errorf("date = %q", itin.Days[0].Date)
	}
	if item.ID != "custom-1" {
		t.Errorf("id = %q, want custom-1", item.ID)
	}
	if item.Location == nil || item.Location.Name != "Louvre" {
		t.Errorf("location = %+v", item.Location)
	}
	if item.Notes != "book ahead" {
		t.Errorf("notes = %q", item.Notes)
	}
}

func TestNormalize_DropsUntitledItemsAndEmptyDays(t *testing.T) {
	raw := parseRaw(t, `{"days":[
		{"date":"2025-01-15","items":[{"notes":"no title here"}]},
		{"date":"2025-01-16","items":[{"title":"Keep me"}]}
	]}`)

	itin, ok := Normalize(raw, testBase)
	if !ok {
		t.Fatal("Normalize returned false")
	}
	if len(itin.Days) != 1 {
		t.Fatalf("got %d days, want 1 (untitled-only day dropped)", len(itin.Days))
	}
	if itin.Days[0].Date != "2025-01-16" {
		t.Errorf("surviving day = %q", itin.Days[0].Date)
	}
}

func TestNormalize_AllDaysDrop(t *testing.T) {
	raw := parseRaw(t, `{"days":[{"date":"2025-01-15","items":[]}]}`)

	if _, ok := Normalize(raw, testBase); ok {
		t.Error("Normalize should return false when every day drops")
	}
}

func TestNormalize_DaysNotArray(t *testing.T) {
	raw := parseRaw(t, `{"days":"tuesday"}`)

	if _, ok := Normalize(raw, testBase); ok {
		t.Error("Normalize should reject a non-array days field")
	}
}

func TestRoundTrip(t *testing.T) {
	itin := Itinerary{Days: []Day{{
		Date: "2025-03-01",
		Items: []Item{{
			ID:        "day-1-item-1",
			Title:     "Ferry crossing",
			TimeRange: "08:00-09:30",
			Location:  &Location{Name: "Pier 3", Lat: 59.33, Lon: 18.07},
			Notes:     "buy tickets on board",
		}},
	}}}

	data, err := json.Marshal(itin)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Itinerary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(got.Days) != 1 || len(got.Days[0].Items) != 1 {
		t.Fatalf("shape mismatch: %+v", got)
	}
	want := itin.Days[0].Items[0]
	gi := got.Days[0].Items[0]
	if gi.ID != want.ID || gi.Title != want.Title || gi.TimeRange != want.TimeRange || gi.Notes != want.Notes {
		t.Errorf("item mismatch: %+v", gi)
	}
	if gi.Location == nil || *gi.Location != *want.Location {
		t.Errorf("location mismatch: %+v", gi.Location)
	}
}
