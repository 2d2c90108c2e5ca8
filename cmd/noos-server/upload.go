package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/retaildata/noosengine/pkg/ingestion"
	"github.com/retaildata/noosengine/pkg/tasks"
)

// parseFileKind validates the {kind} path segment against the four file
// kinds the Ingestion Pipeline accepts.
func parseFileKind(raw string) (ingestion.FileKind, error) {
	switch ingestion.FileKind(raw) {
	case ingestion.KindStyles, ingestion.KindStores, ingestion.KindSKUs, ingestion.KindSales:
		return ingestion.FileKind(raw), nil
	default:
		return "", fmt.Errorf("unknown file kind %q", raw)
	}
}

// handleUploadAsync implements POST /api/file/upload/{kind}/async: it
// reads the multipart file, pre-screens it with the shared Validator, and
// submits an UPLOAD task carrying the raw bytes. The actual parse/validate/
// persist work happens in handleUploadTask, off the request goroutine.
func (s *server) handleUploadAsync(w http.ResponseWriter, r *http.Request) {
	kind, err := parseFileKind(mux.Vars(r)["kind"])
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindValidation, err.Error(), nil))
		return
	}

	if err := r.ParseMultipartForm(100 << 20); err != nil {
		writeError(w, tasks.NewError(tasks.KindValidation, "failed to parse multipart form", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindValidation, "missing file field", err))
		return
	}
	defer file.Close()

	if err := s.validator.ValidateFilename(header.Filename); err != nil {
		writeError(w, tasks.NewError(tasks.KindValidation, err.Error(), nil))
		return
	}
	if err := s.validator.ValidateFileSize(header.Size); err != nil {
		writeError(w, tasks.NewError(tasks.KindValidation, err.Error(), nil))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to read uploaded file", err))
		return
	}

	payload, err := json.Marshal(uploadPayload{Kind: string(kind), FileName: header.Filename, Data: data})
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to encode upload payload", err))
		return
	}

	task, err := s.engine.Submit(r.Context(), tasks.TypeUpload, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, task)
}

// handleUploadTask is the tasks.Handler the engine dispatches UPLOAD tasks
// to: decode the payload, run the Ingestion Pipeline, and on a rejected or
// partially-skipped batch persist the row-level diagnostic artifacts.
func (s *server) handleUploadTask(ctx context.Context, payload []byte, progress tasks.ProgressFunc) ([]byte, error) {
	var p uploadPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, tasks.NewError(tasks.KindValidation, "malformed upload payload", err)
	}
	kind, err := parseFileKind(p.Kind)
	if err != nil {
		return nil, tasks.NewError(tasks.KindValidation, err.Error(), nil)
	}

	id := tasks.TaskIDFromContext(ctx)
	cancelled := func() bool { return s.engine.CancelRequested(ctx) }

	result, runErr := s.pipeline.Run(ctx, kind, p.Data, ingestion.ProgressFunc(progress), cancelled)
	if runErr != nil {
		if runErr == ingestion.Cancelled {
			return nil, tasks.NewError(tasks.KindCancelled, "upload cancelled", nil)
		}
		return nil, tasks.NewError(tasks.KindInternal, "ingestion pipeline failed", runErr)
	}

	errorFiles := map[string]string{}
	if result.ErrorCount > 0 || len(result.Warnings) > 0 {
		artifacts := ingestion.BuildArtifacts(result)
		urls, err := artifacts.Put(s.artifacts, id)
		if err != nil {
			s.logger.Errorf("failed to persist upload artifacts for task %s: %v", id, err)
		} else {
			errorFiles = urls
		}
	}

	out := uploadResult{
		Success:      result.Success,
		RecordCount:  result.RecordCount,
		ErrorCount:   result.ErrorCount,
		SkippedCount: result.SkippedCount,
		Messages:     result.Messages,
		Warnings:     result.Warnings,
		Errors:       result.Errors,
		ErrorFiles:   errorFiles,
	}
	resultBytes, marshalErr := json.Marshal(out)
	if marshalErr != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to encode upload result", marshalErr)
	}

	if !result.Success {
		return resultBytes, tasks.NewError(tasks.KindValidation, fmt.Sprintf("upload rejected: %d row error(s)", result.ErrorCount), nil)
	}
	return resultBytes, nil
}

// handleFileStatus implements GET /api/file/status: a per-kind summary of
// what master/transactional data currently exists plus any in-flight
// upload for that kind.
func (s *server) handleFileStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := make(map[string]interface{}, 4)

	counts := map[ingestion.FileKind]func() (int, error){
		ingestion.KindStyles: func() (int, error) { return s.db.CountStyles(ctx) },
		ingestion.KindStores: func() (int, error) { return s.db.CountStores(ctx) },
		ingestion.KindSKUs:   func() (int, error) { return s.db.CountSKUs(ctx) },
		ingestion.KindSales:  func() (int, error) { return s.db.CountSalesRecords(ctx) },
	}

	recent, err := s.engine.ListRecent(ctx, 50)
	if err != nil {
		writeError(w, err)
		return
	}
	latestByKind := map[string]*tasks.Task{}
	for _, t := range recent {
		if t.Type != tasks.TypeUpload {
			continue
		}
		record, err := s.db.GetTask(ctx, t.ID)
		if err != nil {
			continue
		}
		var env kindEnvelope
		if err := json.Unmarshal(record.Payload, &env); err != nil || env.Kind == "" {
			continue
		}
		if _, ok := latestByKind[env.Kind]; !ok {
			latestByKind[env.Kind] = t
		}
	}

	for kind, countFn := range counts {
		count, err := countFn()
		if err != nil {
			writeError(w, err)
			return
		}
		entry := map[string]interface{}{
			"exists": count > 0,
			"count":  count,
		}
		if t, ok := latestByKind[string(kind)]; ok {
			entry["processing"] = t.Status == tasks.StatusRunning || t.Status == tasks.StatusPending
			entry["failed"] = t.Status == tasks.StatusFailed
			entry["progressPercentage"] = t.ProgressPct
			entry["progressMessage"] = t.ProgressMsg
			if t.Status == tasks.StatusFailed || t.Status == tasks.StatusCompleted {
				var res uploadResult
				if err := json.Unmarshal(t.Result, &res); err == nil && len(res.ErrorFiles) > 0 {
					entry["errorFiles"] = res.ErrorFiles
				}
			}
		}
		status[string(kind)] = entry
	}

	writeData(w, status)
}
