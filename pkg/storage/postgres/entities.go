package postgres

import "time"

// Style is a master-data record for a single style code: the merchandising
// unit the NOOS algorithm classifies. StyleCode is the natural key; callers
// never see a separate numeric style id because every other entity in this
// schema references a style by its code.
type Style struct {
	StyleCode   string    `db:"style_code"`
	Brand       string    `db:"brand"`
	Category    string    `db:"category"`
	SubCategory string    `db:"sub_category"`
	MRP         float64   `db:"mrp"`
	Gender      string    `db:"gender"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Store is a master-data record for a single retail location. Branch is
// the natural key the wire format and every downstream reference uses.
type Store struct {
	Branch    string    `db:"branch"`
	City      string    `db:"city"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SKU is a master-data record for a single sellable size variant,
// belonging to exactly one style. StyleCode must reference an existing
// Style at insert time.
type SKU struct {
	SKU       string    `db:"sku"`
	StyleCode string    `db:"style_code"`
	Size      string    `db:"size"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SalesRecord is one row of daily store/SKU sales as submitted via the
// Ingestion Pipeline's Sales file. Discount is the raw discount amount in
// the same currency unit as Revenue, not a percentage — the NOOS
// algorithm's liquidation cleanup divides it directly into
// Discount/(Revenue+Discount).
type SalesRecord struct {
	ID        int64     `db:"id"`
	SaleDate  time.Time `db:"sale_date"`
	SKU       string    `db:"sku"`
	StoreCode string    `db:"store_code"`
	Quantity  int       `db:"quantity"`
	Discount  float64   `db:"discount"`
	Revenue   float64   `db:"revenue"`
	CreatedAt time.Time `db:"created_at"`
}

// TaskStatus is the durable lifecycle state of a Task Engine task. A task
// orphaned by a process restart while RUNNING is recorded as FAILED with
// an INTERRUPTED error kind, not as a distinct status value.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

// TaskType names the operation a Task represents.
type TaskType string

const (
	TaskTypeUpload   TaskType = "UPLOAD"
	TaskTypeDownload TaskType = "DOWNLOAD"
	TaskTypeCompute  TaskType = "COMPUTE"
)

// TaskRecord is the durable row backing a Task Engine task: its own
// lifecycle state, progress, and result/error payload survive process
// restarts so in-flight work can be recovered or reported on.
type TaskRecord struct {
	ID              string     `db:"id"`
	Type            TaskType   `db:"type"`
	Category        string     `db:"category"`
	Status          TaskStatus `db:"status"`
	FileName        string     `db:"file_name"`
	ProgressPct     float64    `db:"progress_pct"`
	ProgressMsg     string     `db:"progress_message"`
	Payload         []byte     `db:"payload"`
	Result          []byte     `db:"result"`
	ErrorKind       string     `db:"error_kind"`
	ErrorMessage    string     `db:"error_message"`
	CancelRequested bool       `db:"cancel_requested"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	StartedAt       *time.Time `db:"started_at"`
	FinishedAt      *time.Time `db:"finished_at"`
}

// AlgorithmParameters is one named NOOS parameter set. The Parameter-Set
// Manager (pkg/params) enforces that exactly one row across the whole
// table has IsActive = true at any time — the active-one invariant is
// global, not scoped to Name.
type AlgorithmParameters struct {
	ID                     int64      `db:"id"`
	Name                   string     `db:"name"`
	IsActive               bool       `db:"is_active"`
	LiquidationThreshold   float64    `db:"liquidation_threshold"`
	BestsellerMultiplier   float64    `db:"bestseller_multiplier"`
	MinVolumeThreshold     float64    `db:"min_volume_threshold"`
	ConsistencyThreshold   float64    `db:"consistency_threshold"`
	AnalysisStartDate      *time.Time `db:"analysis_start_date"`
	AnalysisEndDate        *time.Time `db:"analysis_end_date"`
	CoreDurationMonths     int        `db:"core_duration_months"`
	BestsellerDurationDays int        `db:"bestseller_duration_days"`
	CreatedAt              time.Time  `db:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at"`
}

// NoosResult is one style's classification outcome from the most recently
// completed run of the NOOS algorithm. Only the latest run's rows are kept
//; history is available via the Task log instead.
type NoosResult struct {
	ID                    int64     `db:"id"`
	AlgorithmRunID        string    `db:"algorithm_run_id"`
	StyleCode             string    `db:"style_code"`
	Category              string    `db:"category"`
	Type                  string    `db:"type"`
	StyleROS              float64   `db:"style_ros"`
	StyleRevContribution  float64   `db:"style_rev_contribution"`
	TotalQuantitySold     int       `db:"total_quantity_sold"`
	TotalRevenue          float64   `db:"total_revenue"`
	DaysAvailable         int       `db:"days_available"`
	DaysWithSales         int       `db:"days_with_sales"`
	AvgDiscount           float64   `db:"avg_discount"`
	CalculatedDate        time.Time `db:"calculated_date"`
}

// ListOptions bounds and filters a read-repository listing call.
type ListOptions struct {
	Limit   int
	Offset  int
	Filters map[string]interface{}
}
