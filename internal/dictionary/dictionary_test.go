package dictionary

import (
	"reflect"
	"testing"
)

func TestScanFindsEntriesAtTokenBoundaries(t *testing.T) {
	d := New("graph database", "database")

	matches := d.Scan("A graph database stores nodes")
	if len(matches) != 2 {
		t.Fatalf("matches = %+v, want 2", matches)
	}
	if matches[0].Entry != "graph database" {
		t.Errorf("first entry = %q", matches[0].Entry)
	}
	if matches[1].Entry != "database" {
		t.Errorf("second entry = %q", matches[1].Entry)
	}
}

func TestScanNormalizesCaseAndInflection(t *testing.T) {
	d := New("message queue")

	matches := d.Scan("Message Queues compared")
	if len(matches) != 1 {
		t.Fatalf("matches = %+v, want 1", matches)
	}
	if matches[0].Start != 0 || matches[0].End != 2 {
		t.Errorf("match span = [%d,%d), want [0,2)", matches[0].Start, matches[0].End)
	}
}

func TestScanReportsOverlaps(t *testing.T) {
	d := New("new york", "york city")

	matches := d.Scan("moving to new york city")
	if len(matches) != 2 {
		t.Fatalf("matches = %+v, want 2 overlapping", matches)
	}
}

func TestScanNoMatches(t *testing.T) {
	d := New("kubernetes")
	if matches := d.Scan("plain text about nothing"); matches != nil {
		t.Errorf("matches = %+v, want nil", matches)
	}
}

func TestContains(t *testing.T) {
	d := New("load balancer")
	if !d.Contains("Load Balancers") {
		t.Error("Contains should normalize before lookup")
	}
	if d.Contains("load") {
		t.Error("prefix of an entry is not an entry")
	}
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
}

func TestEntriesDeduplicates(t *testing.T) {
	d := New("cache")
	matches := d.Scan("cache the cache in a cache")
	got := Entries(matches)
	if !reflect.DeepEqual(got, []string{"cache"}) {
		t.Errorf("entries = %v, want [cache]", got)
	}
}
