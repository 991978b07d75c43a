package validation

import (
	"strings"
	"testing"
)

func validRecord() *NodeRecord {
	return &NodeRecord{
		ID:        "horizons-vectors",
		Type:      "data_source",
		Title:     "Horizons state vectors",
		DependsOn: []string{"ephemeris.base"},
		Tags:      []string{"astro", "episode:01"},
	}
}

func TestValidateNodeRecord_Valid(t *testing.T) {
	if err := ValidateNodeRecord(validRecord()); err != nil {
		t.Errorf("Expected valid record, got %v", err)
	}
}

func TestValidateNodeRecord_Nil(t *testing.T) {
	if err := ValidateNodeRecord(nil); err == nil {
		t.Errorf("Expected error for nil record")
	}
}

func TestValidateNodeRecord_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*NodeRecord)
	}{
		{"missing id", func(r *NodeRecord) { r.ID = "" }},
		{"missing title", func(r *NodeRecord) { r.Title = "" }},
		{"unknown type", func(r *NodeRecord) { r.Type = "widget" }},
		{"unknown status", func(r *NodeRecord) { r.Status = "done" }},
		{"id too long", func(r *NodeRecord) { r.ID = strings.Repeat("a", MaxIDLength+1) }},
		{"title too long", func(r *NodeRecord) { r.Title = strings.Repeat("a", MaxTitleLength+1) }},
		{"notes too long", func(r *NodeRecord) { r.Notes = strings.Repeat("a", MaxNotesLength+1) }},
		{"id with spaces", func(r *NodeRecord) { r.ID = "not a valid id" }},
		{"id leading dash", func(r *NodeRecord) { r.ID = "-leading" }},
		{"bad dependency id", func(r *NodeRecord) { r.DependsOn = []string{"ok", "not ok"} }},
		{"self dependency", func(r *NodeRecord) { r.DependsOn = []string{r.ID} }},
		{"bad tag", func(r *NodeRecord) { r.Tags = []string{"tag with spaces"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord()
			tc.mutate(rec)
			if err := ValidateNodeRecord(rec); err == nil {
				t.Errorf("Expected rejection for %s", tc.name)
			}
		})
	}
}

func TestValidateNodeRecord_AllTypesAndStatuses(t *testing.T) {
	for _, typ := range []string{"data_source", "parameter", "analysis", "report", "task"} {
		rec := validRecord()
		rec.Type = typ
		if err := ValidateNodeRecord(rec); err != nil {
			t.Errorf("Type %q rejected: %v", typ, err)
		}
	}
	for _, status := range []string{"", "valid", "stale", "pending", "active", "blocked"} {
		rec := validRecord()
		rec.Status = status
		if err := ValidateNodeRecord(rec); err != nil {
			t.Errorf("Status %q rejected: %v", status, err)
		}
	}
}

func TestValidateNodeRecord_NamespacedIDs(t *testing.T) {
	for _, id := range []string{"episode:01", "analysis.delta_v", "a", "X-1"} {
		rec := validRecord()
		rec.ID = id
		rec.DependsOn = nil
		if err := ValidateNodeRecord(rec); err != nil {
			t.Errorf("ID %q rejected: %v", id, err)
		}
	}
}
