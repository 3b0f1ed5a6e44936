package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	e "nuclight.org/media-tg-bot/pkg/entities"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()

	db, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func TestJournalLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []e.JobRecord{
		{ID: "s1", Kind: e.JobKindSearch, ChatID: 1, Query: "daft punk", Status: e.JobStatusRunning, CreatedAt: base},
		{ID: "d1", Kind: e.JobKindDownload, ChatID: 1, Extractor: "youtube", MediaID: "a", FormatID: "140", Author: ptr("Daft Punk"), Title: ptr("One More Time"), Status: e.JobStatusRunning, CreatedAt: base.Add(time.Minute)},
		{ID: "d2", Kind: e.JobKindDownload, ChatID: 1, Extractor: "youtube", MediaID: "b", FormatID: "137+140", Status: e.JobStatusRunning, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "d3", Kind: e.JobKindDownload, ChatID: 2, Extractor: "youtube", MediaID: "c", FormatID: "140", Status: e.JobStatusRunning, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, rec := range records {
		if err := db.SaveJob(ctx, rec); err != nil {
			t.Fatalf("SaveJob(%s): %v", rec.ID, err)
		}
	}

	if err := db.FinishJob(ctx, "d1", e.JobStatusDone, ""); err != nil {
		t.Fatalf("FinishJob: %v", err)
	}
	if err := db.FinishJob(ctx, "d2", e.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("FinishJob: %v", err)
	}
	if err := db.FinishJob(ctx, "missing", e.JobStatusDone, ""); err == nil {
		t.Error("FinishJob for unknown id: expected error")
	}

	got, err := db.RecentDownloads(ctx, 1, 10)
	if err != nil {
		t.Fatalf("RecentDownloads: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}

	if got[0].ID != "d2" || got[0].Status != e.JobStatusFailed || got[0].Error == nil || *got[0].Error != "boom" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[0].Author != nil {
		t.Errorf("got[0].Author = %q, want nil", *got[0].Author)
	}
	if got[1].ID != "d1" || got[1].Status != e.JobStatusDone || got[1].FinishedAt == nil {
		t.Errorf("got[1] = %+v", got[1])
	}
	if got[1].Author == nil || *got[1].Author != "Daft Punk" {
		t.Errorf("got[1].Author = %v", got[1].Author)
	}
	if !got[1].CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("got[1].CreatedAt = %v", got[1].CreatedAt)
	}

	limited, err := db.RecentDownloads(ctx, 1, 1)
	if err != nil {
		t.Fatalf("RecentDownloads: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "d2" {
		t.Errorf("limited = %+v", limited)
	}
}
