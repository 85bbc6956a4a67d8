package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ybolotov/deep-research/internal/core/domain"
)

func TestTranscriptRepositoryAppendFillsTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewTranscriptRepository(db)
	mock.ExpectExec("INSERT INTO session_transcript").
		WithArgs("s-1", "system", "intent classified", "classify_intent", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Append(context.Background(), domain.TranscriptEntry{
		SessionID:  "s-1",
		Role:       "system",
		Message:    "intent classified",
		Capability: "classify_intent",
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTranscriptRepositoryAppendNullsEmptyCapability(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewTranscriptRepository(db)
	mock.ExpectExec("INSERT INTO session_transcript").
		WithArgs("s-1", "user", "raw query", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Append(context.Background(), domain.TranscriptEntry{
		SessionID: "s-1",
		Role:      "user",
		Message:   "raw query",
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTranscriptRepositoryListBySessionKeepsInsertionOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewTranscriptRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"session_id", "role", "message", "capability", "created_at"}).
		AddRow("s-1", "user", "raw query", "", now).
		AddRow("s-1", "system", "plan built", "plan", now)

	mock.ExpectQuery("FROM session_transcript").
		WithArgs("s-1").
		WillReturnRows(rows)

	entries, err := repo.ListBySession(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != "user" || entries[1].Capability != "plan" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
