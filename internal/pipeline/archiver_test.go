package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeBlobArchiver records archive calls.
type fakeBlobArchiver struct {
	gotCutoff time.Time
	count     int64
	err       error
}

func (f *fakeBlobArchiver) ArchiveClosedTrades(ctx context.Context, before time.Time) (int64, error) {
	f.gotCutoff = before
	return f.count, f.err
}

func TestArchiverRunCutoff(t *testing.T) {
	blob := &fakeBlobArchiver{count: 12}
	a := NewArchiver(blob, 90, testLogger())

	before := time.Now().UTC()
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	after := time.Now().UTC()

	wantLow := before.Add(-90 * 24 * time.Hour)
	wantHigh := after.Add(-90 * 24 * time.Hour)
	if blob.gotCutoff.Before(wantLow) || blob.gotCutoff.After(wantHigh) {
		t.Errorf("Expected cutoff about 90 days ago, got %v", blob.gotCutoff)
	}
}

func TestArchiverRunError(t *testing.T) {
	blob := &fakeBlobArchiver{err: errors.New("s3 unavailable")}
	a := NewArchiver(blob, 90, testLogger())

	if err := a.Run(context.Background()); err == nil {
		t.Fatal("Expected error from failing archiver")
	}
}

func TestNextCronTimeMonthly(t *testing.T) {
	after := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	next, err := nextCronTime("0 3 1 * *", after)
	if err != nil {
		t.Fatalf("nextCronTime failed: %v", err)
	}

	want := time.Date(2025, 7, 1, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Expected %v, got %v", want, next)
	}
}

func TestNextCronTimeDaily(t *testing.T) {
	after := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	next, err := nextCronTime("30 14 * * *", after)
	if err != nil {
		t.Fatalf("nextCronTime failed: %v", err)
	}
	want := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Expected %v, got %v", want, next)
	}

	// Past today's trigger, the next match is tomorrow.
	next, err = nextCronTime("30 14 * * *", want)
	if err != nil {
		t.Fatalf("nextCronTime failed: %v", err)
	}
	want = time.Date(2025, 6, 16, 14, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Expected %v, got %v", want, next)
	}
}

func TestNextCronTimeValueList(t *testing.T) {
	after := time.Date(2025, 6, 1, 0, 5, 0, 0, time.UTC)

	next, err := nextCronTime("0,30 * * * *", after)
	if err != nil {
		t.Fatalf("nextCronTime failed: %v", err)
	}
	want := time.Date(2025, 6, 1, 0, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Expected %v, got %v", want, next)
	}
}

func TestParseCronErrors(t *testing.T) {
	if _, err := parseCron("0 3 1 *"); err == nil {
		t.Error("Expected error for 4-field expression")
	}
	if _, err := parseCron("x 3 1 * *"); err == nil {
		t.Error("Expected error for non-numeric field")
	}
}
