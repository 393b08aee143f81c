package exporter

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestManifest_YAMLRoundTrip(t *testing.T) {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m := &Manifest{
		RunID:           "run-1",
		Source:          "mongodb://localhost:27017",
		Output:          "output",
		ContentType:     "application/x-ndjson",
		IdentifierField: "_id",
		StartedAt:       started,
		FinishedAt:      started.Add(time.Minute),
		Collections: []CollectionReport{
			{Database: "shop", Collection: "orders", Documents: 3, Repaired: 1, SourceBytes: 120, Keys: []string{"shop_orders.json"}},
			{Database: "shop", Collection: "empty", Keys: []string{"shop_empty.json"}},
		},
	}

	b, err := MarshalManifest(m)
	if err != nil {
		t.Fatalf("MarshalManifest: %v", err)
	}
	if !strings.Contains(string(b), "run_id: run-1\n") {
		t.Fatalf("unexpected yaml:\n%s", b)
	}

	got, err := ParseManifest(b)
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if got.Documents() != 3 || got.Repaired() != 1 {
		t.Fatalf("Documents=%d Repaired=%d", got.Documents(), got.Repaired())
	}
}

func TestCollectionReport_AddKeyDedupes(t *testing.T) {
	var r CollectionReport
	r.addKey("a.json", "/out/a.json")
	r.addKey("a.json", "/out/a.json")
	r.addKey("b.json", "")

	if diff := cmp.Diff([]string{"a.json", "b.json"}, r.Keys); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/out/a.json"}, r.Locations); diff != "" {
		t.Fatalf("locations (-want +got):\n%s", diff)
	}
}
