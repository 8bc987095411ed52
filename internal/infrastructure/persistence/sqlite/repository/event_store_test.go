package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"sentinel/internal/ports"
)

func TestEventStoreCreateAndGet(t *testing.T) {
	store := NewEventStore(setupDB(t))
	ctx := context.Background()

	created, err := store.Create(ctx, ports.CodeEventCreate{
		RepoID:      "repo-1",
		EventType:   ports.EventCommit,
		Timestamp:   time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
		CommitSHA:   "sha-a",
		AuthorLogin: "alice",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("created event has no id")
	}
	if created.MetadataJSON != "{}" {
		t.Fatalf("metadata = %q, want default {}", created.MetadataJSON)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CommitSHA != "sha-a" || got.AuthorLogin != "alice" {
		t.Fatalf("got = %+v", got)
	}

	if _, err := store.Get(ctx, "ghost"); !errors.Is(err, ports.ErrEventNotFound) {
		t.Fatalf("missing event err = %v, want ErrEventNotFound", err)
	}
}

func TestEventStoreCountByTypeHalfOpenWindow(t *testing.T) {
	store := NewEventStore(setupDB(t))
	ctx := context.Background()
	dayStart := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	stamps := []time.Time{
		dayStart,                       // inclusive start
		dayStart.Add(12 * time.Hour),   // middle
		dayEnd,                         // exclusive end
		dayStart.Add(-1 * time.Second), // before
	}
	for i, ts := range stamps {
		if _, err := store.Create(ctx, ports.CodeEventCreate{
			RepoID:    "repo-1",
			EventType: ports.EventCommit,
			Timestamp: ts,
			CommitSHA: string(rune('a' + i)),
		}); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	count, err := store.CountByType(ctx, "repo-1", ports.EventCommit, dayStart, dayEnd)
	if err != nil {
		t.Fatalf("CountByType: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2 inside [start, end)", count)
	}
}

func TestEventStoreListCommitSHAs(t *testing.T) {
	store := NewEventStore(setupDB(t))
	ctx := context.Background()
	ts := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

	for _, e := range []ports.CodeEventCreate{
		{RepoID: "repo-1", EventType: ports.EventCommit, Timestamp: ts, CommitSHA: "sha-a"},
		{RepoID: "repo-1", EventType: ports.EventCommit, Timestamp: ts, CommitSHA: ""},
		{RepoID: "repo-1", EventType: ports.EventDeploy, Timestamp: ts, CommitSHA: "sha-d"},
		{RepoID: "repo-2", EventType: ports.EventCommit, Timestamp: ts, CommitSHA: "sha-x"},
	} {
		if _, err := store.Create(ctx, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	shas, err := store.ListCommitSHAs(ctx, "repo-1", ts.Add(-time.Hour), ts.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListCommitSHAs: %v", err)
	}
	if len(shas) != 1 || shas[0] != "sha-a" {
		t.Fatalf("shas = %v, want only repo-1 commit shas", shas)
	}
}

func TestEventStoreFirstOpenedForPR(t *testing.T) {
	store := NewEventStore(setupDB(t))
	ctx := context.Background()
	first := time.Date(2024, 6, 14, 9, 0, 0, 0, time.UTC)

	// A reopened PR records a second pr_opened event; review time counts
	// from the first one.
	for _, ts := range []time.Time{first.Add(6 * time.Hour), first} {
		if _, err := store.Create(ctx, ports.CodeEventCreate{
			RepoID:    "repo-1",
			EventType: ports.EventPROpened,
			Timestamp: ts,
			PRNumber:  12,
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	opened, found, err := store.FirstOpenedForPR(ctx, "repo-1", 12)
	if err != nil {
		t.Fatalf("FirstOpenedForPR: %v", err)
	}
	if !found {
		t.Fatalf("PR 12 should be found")
	}
	if !opened.Timestamp.Equal(first) {
		t.Fatalf("timestamp = %v, want the earliest %v", opened.Timestamp, first)
	}

	_, found, err = store.FirstOpenedForPR(ctx, "repo-1", 99)
	if err != nil {
		t.Fatalf("FirstOpenedForPR: %v", err)
	}
	if found {
		t.Fatalf("PR 99 should not be found")
	}
}

func TestEventStoreCountDistinctReviewers(t *testing.T) {
	store := NewEventStore(setupDB(t))
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	since := now.AddDate(0, 0, -7)

	for _, e := range []ports.CodeEventCreate{
		{RepoID: "repo-1", EventType: ports.EventPRReviewed, Timestamp: now.Add(-time.Hour), AuthorLogin: "carol", PRNumber: 1},
		{RepoID: "repo-1", EventType: ports.EventPRReviewed, Timestamp: now.Add(-2 * time.Hour), AuthorLogin: "carol", PRNumber: 2},
		{RepoID: "repo-1", EventType: ports.EventPRReviewed, Timestamp: now.Add(-3 * time.Hour), AuthorLogin: "dave", PRNumber: 3},
		{RepoID: "repo-1", EventType: ports.EventPRReviewed, Timestamp: since.Add(-time.Hour), AuthorLogin: "erin", PRNumber: 4},
	} {
		if _, err := store.Create(ctx, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	count, err := store.CountDistinctReviewers(ctx, "repo-1", since)
	if err != nil {
		t.Fatalf("CountDistinctReviewers: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2 (carol once, dave; erin too old)", count)
	}
}
