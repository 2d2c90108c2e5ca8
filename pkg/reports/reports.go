// Package reports derives dashboard tiles and analytics report rows
// directly from Storage and the Task log, with no subsystem of
// its own to own state in.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/retaildata/noosengine/pkg/storage/postgres"
)

// Store is the narrow subset of the Storage Adapter reports reads from.
type Store interface {
	CountSalesRecords(ctx context.Context) (int, error)
	CountSKUs(ctx context.Context) (int, error)
	CountStores(ctx context.Context) (int, error)
	CountStyles(ctx context.Context) (int, error)
	RecentUploadCount(ctx context.Context, since time.Time) (int, error)
	ListRecentTasks(ctx context.Context, limit int) ([]*postgres.TaskRecord, error)
	ListTasksByStatus(ctx context.Context, status postgres.TaskStatus) ([]*postgres.TaskRecord, error)
	ClassificationCounts(ctx context.Context) (map[string]int, error)
	LatestRunID(ctx context.Context) (string, error)
}

// Tiles is the dashboard summary object the /api/updates endpoint serves.
type Tiles struct {
	TotalSalesRecords     int     `json:"totalSalesRecords"`
	SalesDataStatus       string  `json:"salesDataStatus"`
	TotalSkus             int     `json:"totalSkus"`
	TotalStores           int     `json:"totalStores"`
	TotalStyles           int     `json:"totalStyles"`
	MasterDataStatus      string  `json:"masterDataStatus"`
	RecentUploads         int     `json:"recentUploads"`
	UploadSuccessRate     float64 `json:"uploadSuccessRate"`
	RecentActivityStatus  string  `json:"recentActivityStatus"`
	ActiveTasks           int     `json:"activeTasks"`
	PendingTasks          int     `json:"pendingTasks"`
	ProcessingStatus      string  `json:"processingStatus"`
}

// BuildTiles computes the dashboard object from current Storage and Task
// log contents.
func BuildTiles(ctx context.Context, store Store) (*Tiles, error) {
	salesCount, err := store.CountSalesRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count sales records: %w", err)
	}
	skuCount, err := store.CountSKUs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count skus: %w", err)
	}
	storeCount, err := store.CountStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count stores: %w", err)
	}
	styleCount, err := store.CountStyles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count styles: %w", err)
	}

	since := time.Now().AddDate(0, 0, -7)
	recentUploads, err := store.RecentUploadCount(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent uploads: %w", err)
	}

	recentTasks, err := store.ListRecentTasks(ctx, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tasks: %w", err)
	}
	successRate := uploadSuccessRate(recentTasks)

	running, err := store.ListTasksByStatus(ctx, postgres.TaskStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to list running tasks: %w", err)
	}
	pending, err := store.ListTasksByStatus(ctx, postgres.TaskStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending tasks: %w", err)
	}

	return &Tiles{
		TotalSalesRecords:    salesCount,
		SalesDataStatus:      salesDataStatus(salesCount),
		TotalSkus:            skuCount,
		TotalStores:          storeCount,
		TotalStyles:          styleCount,
		MasterDataStatus:     masterDataStatus(styleCount, storeCount, skuCount),
		RecentUploads:        recentUploads,
		UploadSuccessRate:    successRate,
		RecentActivityStatus: recentActivityStatus(recentUploads),
		ActiveTasks:          len(running),
		PendingTasks:         len(pending),
		ProcessingStatus:     processingStatus(len(running), len(pending)),
	}, nil
}

func salesDataStatus(count int) string {
	switch {
	case count == 0:
		return "No data available"
	case count < 1000:
		return "Limited data"
	case count < 100000:
		return "Good data volume"
	default:
		return "Rich data"
	}
}

func masterDataStatus(styles, stores, skus int) string {
	present := 0
	for _, n := range []int{styles, stores, skus} {
		if n > 0 {
			present++
		}
	}
	switch present {
	case 0:
		return "Setup required"
	case 3:
		return "Complete setup"
	default:
		return "Partial setup"
	}
}

func recentActivityStatus(recentUploads int) string {
	if recentUploads == 0 {
		return "No recent activity"
	}
	return "Active"
}

func processingStatus(running, pending int) string {
	switch {
	case running == 0 && pending == 0:
		return "System idle"
	case pending > running*2:
		return "Backlog"
	default:
		return "Running"
	}
}

func uploadSuccessRate(tasks []*postgres.TaskRecord) float64 {
	var uploads, succeeded int
	for _, t := range tasks {
		if t.Type != postgres.TaskTypeUpload {
			continue
		}
		if t.Status != postgres.TaskStatusCompleted && t.Status != postgres.TaskStatusFailed {
			continue
		}
		uploads++
		if t.Status == postgres.TaskStatusCompleted {
			succeeded++
		}
	}
	if uploads == 0 {
		return 1.0
	}
	return float64(succeeded) / float64(uploads)
}

// Report1Row is one row of the NOOS analytics report.
type Report1Row struct {
	ExecutionDate          time.Time `json:"executionDate"`
	AlgorithmLabel         string    `json:"algorithmLabel"`
	ExecutionStatus        string    `json:"executionStatus"`
	TotalStylesProcessed   int       `json:"totalStylesProcessed"`
	CoreStyles             int       `json:"coreStyles"`
	BestsellerStyles       int       `json:"bestsellerStyles"`
	FashionStyles          int       `json:"fashionStyles"`
	ExecutionTimeMinutes   float64   `json:"executionTimeMinutes"`
	Parameters             string    `json:"parameters"`
}

// noosRunResult mirrors the JSON a completed compute task's Result column
// carries, as produced by cmd/noos-server's compute handler.
type noosRunResult struct {
	Core       int `json:"core"`
	Bestseller int `json:"bestseller"`
	Fashion    int `json:"fashion"`
}

// BuildReport1 derives one row per recent COMPUTE task (a NOOS run).
// Counts normally come from the task's recorded result payload; for the
// run whose rows are still in storage, the stored result set is the
// fallback authority when the payload is missing or unreadable.
func BuildReport1(ctx context.Context, store Store, limit int) ([]*Report1Row, error) {
	recentTasks, err := store.ListRecentTasks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tasks: %w", err)
	}
	latestRunID, err := store.LatestRunID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve latest run id: %w", err)
	}

	var rows []*Report1Row
	for _, t := range recentTasks {
		if t.Type != postgres.TaskTypeCompute {
			continue
		}
		row := &Report1Row{
			ExecutionDate:   t.CreatedAt,
			AlgorithmLabel:  "noos-classification",
			ExecutionStatus: string(t.Status),
			Parameters:      string(t.Payload),
		}
		if t.StartedAt != nil && t.FinishedAt != nil {
			row.ExecutionTimeMinutes = t.FinishedAt.Sub(*t.StartedAt).Minutes()
		}
		if t.Status == postgres.TaskStatusCompleted {
			var res noosRunResult
			if len(t.Result) > 0 && json.Unmarshal(t.Result, &res) == nil {
				row.CoreStyles = res.Core
				row.BestsellerStyles = res.Bestseller
				row.FashionStyles = res.Fashion
			} else if t.ID == latestRunID {
				counts, err := store.ClassificationCounts(ctx)
				if err != nil {
					return nil, fmt.Errorf("failed to aggregate classification counts: %w", err)
				}
				row.CoreStyles = counts["core"]
				row.BestsellerStyles = counts["bestseller"]
				row.FashionStyles = counts["fashion"]
			}
			row.TotalStylesProcessed = row.CoreStyles + row.BestsellerStyles + row.FashionStyles
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Report2Row is one row of the system health report, aggregated
// per calendar day and task type.
type Report2Row struct {
	Date                  string  `json:"date"`
	TaskType              string  `json:"taskType"`
	TotalTasks            int     `json:"totalTasks"`
	SuccessfulTasks       int     `json:"successfulTasks"`
	FailedTasks           int     `json:"failedTasks"`
	SuccessRate           float64 `json:"successRate"`
	AverageExecutionTime  float64 `json:"averageExecutionTime"`
	SystemStatus          string  `json:"systemStatus"`
}

// BuildReport2 aggregates the recent Task log into one row per
// (date, taskType) pair.
func BuildReport2(ctx context.Context, store Store, limit int) ([]*Report2Row, error) {
	recentTasks, err := store.ListRecentTasks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tasks: %w", err)
	}

	type bucket struct {
		total, succeeded, failed int
		totalMinutes             float64
		withDuration              int
	}
	buckets := map[string]*bucket{}
	var order []string
	for _, t := range recentTasks {
		date := t.CreatedAt.Format("2006-01-02")
		key := date + "|" + string(t.Type)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			order = append(order, key)
		}
		b.total++
		switch t.Status {
		case postgres.TaskStatusCompleted:
			b.succeeded++
		case postgres.TaskStatusFailed:
			b.failed++
		}
		if t.StartedAt != nil && t.FinishedAt != nil {
			b.totalMinutes += t.FinishedAt.Sub(*t.StartedAt).Minutes()
			b.withDuration++
		}
	}

	rows := make([]*Report2Row, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		var date, taskType string
		for i := 0; i < len(key); i++ {
			if key[i] == '|' {
				date, taskType = key[:i], key[i+1:]
				break
			}
		}
		successRate := 1.0
		if b.succeeded+b.failed > 0 {
			successRate = float64(b.succeeded) / float64(b.succeeded+b.failed)
		}
		avgExec := 0.0
		if b.withDuration > 0 {
			avgExec = b.totalMinutes / float64(b.withDuration)
		}
		rows = append(rows, &Report2Row{
			Date:                 date,
			TaskType:             taskType,
			TotalTasks:           b.total,
			SuccessfulTasks:      b.succeeded,
			FailedTasks:          b.failed,
			SuccessRate:          successRate,
			AverageExecutionTime: avgExec,
			SystemStatus:         systemStatus(b.failed, b.total),
		})
	}
	return rows, nil
}

func systemStatus(failed, total int) string {
	if total == 0 {
		return "unknown"
	}
	rate := float64(failed) / float64(total)
	switch {
	case rate == 0:
		return "healthy"
	case rate < 0.2:
		return "degraded"
	default:
		return "unhealthy"
	}
}
