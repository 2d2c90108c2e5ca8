package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/retaildata/noosengine/pkg/ingestion"
	"github.com/retaildata/noosengine/pkg/tasks"
)

// handleDownloadAsync implements POST /api/file/download/{kind}/async: it
// submits a DOWNLOAD task that renders the current master/transactional
// data for kind back out as TSV.
func (s *server) handleDownloadAsync(w http.ResponseWriter, r *http.Request) {
	kind, err := parseFileKind(mux.Vars(r)["kind"])
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindValidation, err.Error(), nil))
		return
	}

	payload, err := json.Marshal(downloadPayload{Kind: string(kind)})
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to encode download payload", err))
		return
	}

	task, err := s.engine.Submit(r.Context(), tasks.TypeDownload, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, task)
}

// handleDownloadTask is the tasks.Handler the engine dispatches DOWNLOAD
// tasks to: render the requested kind's current rows as TSV and persist
// the artifact, returning its URL and row count.
func (s *server) handleDownloadTask(ctx context.Context, payload []byte, progress tasks.ProgressFunc) ([]byte, error) {
	var p downloadPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, tasks.NewError(tasks.KindValidation, "malformed download payload", err)
	}
	kind, err := parseFileKind(p.Kind)
	if err != nil {
		return nil, tasks.NewError(tasks.KindValidation, err.Error(), nil)
	}

	progress(10, fmt.Sprintf("rendering %s", kind))
	tsv, count, err := s.renderTSV(ctx, kind)
	if err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to render download", err)
	}
	progress(80, "writing artifact")

	id := tasks.TaskIDFromContext(ctx)
	url, err := s.artifacts.Put(id, string(kind)+".tsv", tsv)
	if err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to persist download artifact", err)
	}

	progress(100, "download ready")
	resultBytes, err := json.Marshal(downloadResult{ResultURL: url, RecordCount: count})
	if err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to encode download result", err)
	}
	return resultBytes, nil
}

// renderTSV builds the TSV body for one file kind from the data currently
// loaded in the Storage Adapter, in the same column order the Ingestion
// Pipeline expects on re-upload.
func (s *server) renderTSV(ctx context.Context, kind ingestion.FileKind) ([]byte, int, error) {
	var b strings.Builder
	switch kind {
	case ingestion.KindStyles:
		b.WriteString("style\tbrand\tcategory\tsub_category\tmrp\tgender\n")
		rows, err := s.db.ListStyles(ctx)
		if err != nil {
			return nil, 0, err
		}
		for _, r := range rows {
			fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%g\t%s\n", r.StyleCode, r.Brand, r.Category, r.SubCategory, r.MRP, r.Gender)
		}
		return []byte(b.String()), len(rows), nil

	case ingestion.KindStores:
		b.WriteString("branch\tcity\n")
		rows, err := s.db.ListStores(ctx)
		if err != nil {
			return nil, 0, err
		}
		for _, r := range rows {
			fmt.Fprintf(&b, "%s\t%s\n", r.Branch, r.City)
		}
		return []byte(b.String()), len(rows), nil

	case ingestion.KindSKUs:
		b.WriteString("sku\tstyle\tsize\n")
		rows, err := s.db.ListSKUs(ctx)
		if err != nil {
			return nil, 0, err
		}
		for _, r := range rows {
			fmt.Fprintf(&b, "%s\t%s\t%s\n", r.SKU, r.StyleCode, r.Size)
		}
		return []byte(b.String()), len(rows), nil

	case ingestion.KindSales:
		b.WriteString("day\tsku\tchannel\tquantity\tdiscount\trevenue\n")
		rows, err := s.db.AllSales(ctx)
		if err != nil {
			return nil, 0, err
		}
		for _, r := range rows {
			fmt.Fprintf(&b, "%s\t%s\t%s\t%d\t%g\t%g\n", r.SaleDate.Format("2006-01-02"), r.SKU, r.StoreCode, r.Quantity, r.Discount, r.Revenue)
		}
		return []byte(b.String()), len(rows), nil

	default:
		return nil, 0, fmt.Errorf("unknown file kind %s", kind)
	}
}
