package memory

import (
	"context"
	"testing"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

func TestPublisherStoresEvents(t *testing.T) {
	t.Parallel()

	pub := New()
	if err := pub.Notify(context.Background(), archiver.ArchivedEvent{RunID: "r", URL: "https://a/1.pdf"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if err := pub.Notify(context.Background(), archiver.ArchivedEvent{RunID: "r", URL: "https://a/2.pdf"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	events := pub.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].URL != "https://a/1.pdf" || events[1].URL != "https://a/2.pdf" {
		t.Fatalf("events not recorded in order: %+v", events)
	}

	events[0].URL = "modified"
	if pub.Events()[0].URL == "modified" {
		t.Fatal("expected Events() to return a copy")
	}
}
