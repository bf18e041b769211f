package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEventsFSContainsMigrations(t *testing.T) {
	entries, err := fs.ReadDir(EventsFS, "events")
	if err != nil {
		t.Fatalf("read events dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one events migration")
	}
	for _, entry := range entries {
		content, err := fs.ReadFile(EventsFS, "events/"+entry.Name())
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		if !strings.Contains(string(content), "-- +migrate Up") {
			t.Fatalf("%s is missing an Up section", entry.Name())
		}
	}
}
