package itinerary

import (
	"strings"
	"testing"
	"time"
)

var extractNow = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

func TestExtract_MarkerAndJSONFence(t *testing.T) {
	text := "intro\n" + Marker + "\n```json\n{\"days\":[{\"date\":\"2025-01-15\",\"items\":[{\"title\":\"Visit museum\"}]}]}\n```"

	itin, ok := Extract(text, extractNow)
	if !ok {
		t.Fatal("Extract returned false")
	}
	if len(itin.Days) != 1 || len(itin.Days[0].Items) != 1 {
		t.Fatalf("shape: %+v", itin)
	}
	if itin.Days[0].Items[0].ID != "day-1-item-1" {
		t.Errorf("synthesized id = %q, want day-1-item-1", itin.Days[0].Items[0].ID)
	}
	if itin.Days[0].Items[0].Title != "Visit museum" {
		t.Errorf("title = %q", itin.Days[0].Items[0].Title)
	}
}

func TestExtract_PlainFence(t *testing.T) {
	text := Marker + "\n```\n{\"days\":[{\"items\":[{\"title\":\"Beach\"}]}]}\n```"

	itin, ok := Extract(text, extractNow)
	if !ok {
		t.Fatal("Extract returned false")
	}
	if itin.Days[0].Items[0].Title != "Beach" {
		t.Errorf("title = %q", itin.Days[0].Items[0].Title)
	}
}

func TestExtract_BareObjectNoMarker(t *testing.T) {
	text := "Here's your plan: {\"days\":[{\"day\":1,\"activities\":[{\"activity\":\"Hike\",\"time\":\"9am\"}]}]} enjoy!"

	itin, ok := Extract(text, extractNow)
	if !ok {
		t.Fatal("Extract returned false")
	}
	item := itin.Days[0].Items[0]
	if item.Title != "Hike" || item.TimeRange != "9am" {
		t.Errorf("item = %+v", item)
	}
	if itin.Days[0].Date != "2025-02-01" {
		t.Errorf("date = %q, want base date", itin.Days[0].Date)
	}
}

func TestExtract_MarkerScopesSearch(t *testing.T) {
	// JSON before the marker must be ignored once a marker is present.
	text := "```json\n{\"days\":[{\"items\":[{\"title\":\"Wrong\"}]}]}\n```\n" +
		Marker + "\n```json\n{\"days\":[{\"items\":[{\"title\":\"Right\"}]}]}\n```"

	itin, ok := Extract(text, extractNow)
	if !ok {
		t.Fatal("Extract returned false")
	}
	if itin.Days[0].Items[0].Title != "Right" {
		t.Errorf("title = %q, want Right", itin.Days[0].Items[0].Title)
	}
}

func TestExtract_NothingUsable(t *testing.T) {
	cases := []string{
		"",
		"just some prose about travel",
		Marker + "\nno json follows",
		Marker + "\n```json\nnot valid json\n```",
		"{\"days\": \"not an array\"}",
	}
	for _, text := range cases {
		if _, ok := Extract(text, extractNow); ok {
			t.Errorf("Extract(%q) should fail", text)
		}
	}
}

func TestExtract_AllItemsDropped(t *testing.T) {
	text := Marker + "\n```json\n{\"days\":[{\"date\":\"2025-01-15\",\"items\":[{\"notes\":\"untitled\"}]}]}\n```"

	if _, ok := Extract(text, extractNow); ok {
		t.Error("Extract should return false when normalization drops everything")
	}
}

func TestStripForDisplay_Marker(t *testing.T) {
	text := "Day one looks great!\n\n" + Marker + "\n```json\n{\"days\":[]}\n```"

	got := StripForDisplay(text)
	if got != "Day one looks great!" {
		t.Errorf("StripForDisplay = %q", got)
	}
}

func TestStripForDisplay_FallbackFence(t *testing.T) {
	text := "Here you go.\n```json\n{\"days\":[{\"items\":[]}]}\n```"

	got := StripForDisplay(text)
	if strings.Contains(got, "days") {
		t.Errorf("fenced JSON not removed: %q", got)
	}
	if !strings.Contains(got, "Here you go.") {
		t.Errorf("prose removed: %q", got)
	}
}

func TestStripForDisplay_BareDaysObject(t *testing.T) {
	text := "Plan below {\"days\":[{\"items\":[{\"title\":\"x\"}]}]}"

	got := StripForDisplay(text)
	if strings.Contains(got, "days") {
		t.Errorf("bare object not removed: %q", got)
	}
}

func TestRenderHTML(t *testing.T) {
	text := "# Trip to Oslo\n\nSome **bold** plans.\n" + Marker + "\n```json\n{\"days\":[]}\n```"

	html, err := RenderHTML(text)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "<h1") || !strings.Contains(html, "<strong>bold</strong>") {
		t.Errorf("unexpected html: %q", html)
	}
	if strings.Contains(html, "days") {
		t.Errorf("machine tail leaked into html: %q", html)
	}
}
