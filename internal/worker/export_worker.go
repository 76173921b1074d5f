package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/storage"
)

// RecordAppender writes one record to the export destination.
type RecordAppender interface {
	AppendRecord(ctx context.Context, rec *core.Record) error
}

// ExportWorker consumes record events and mirrors new records to the
// configured export sheet.
type ExportWorker struct {
	storage  *storage.SQLiteRepository
	appender RecordAppender
}

func NewExportWorker(storage *storage.SQLiteRepository, appender RecordAppender) *ExportWorker {
	return &ExportWorker{
		storage:  storage,
		appender: appender,
	}
}

// HandleRecordEvent processes a single record event from AMQP.
// Only created records are exported. Updates and deletes are acknowledged
// without touching the sheet, which stays append-only.
func (w *ExportWorker) HandleRecordEvent(ctx context.Context, msg *amqp.RecordEventMessage) error {
	slog.InfoContext(ctx, "Processing record event",
		"kind", msg.Kind,
		"action", msg.Action,
		"id", msg.ID)

	if msg.Action != amqp.ActionCreated {
		slog.InfoContext(ctx, "Skipping non-create event",
			"action", msg.Action,
			"id", msg.ID)
		return nil
	}

	rec, err := w.storage.GetRecord(ctx, msg.Kind, msg.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The record was deleted before we got to it. Nothing to export.
			slog.WarnContext(ctx, "Record gone before export, skipping",
				"kind", msg.Kind,
				"id", msg.ID)
			return nil
		}
		return fmt.Errorf("get record from storage: %w", err)
	}

	if err := w.appender.AppendRecord(ctx, rec); err != nil {
		return fmt.Errorf("append record to export: %w", err)
	}

	slog.InfoContext(ctx, "Record exported",
		"kind", msg.Kind,
		"id", msg.ID)
	return nil
}
