package main

// uploadPayload is the JSON envelope a FILE_UPLOAD task's body carries:
// which of the four file kinds to ingest, the original filename for
// diagnostics, and the raw TSV bytes themselves.
type uploadPayload struct {
	Kind     string `json:"kind"`
	FileName string `json:"fileName"`
	Data     []byte `json:"data"`
}

// downloadPayload is the JSON envelope a FILE_DOWNLOAD task's body
// carries: which master/transactional file kind to render back out as
// TSV.
type downloadPayload struct {
	Kind string `json:"kind"`
}

// computePayload is the JSON envelope an ALGORITHM_RUN task's body
// carries: an optional named parameter set to run with, or inline field
// overrides layered on top of the currently active set. Both are
// optional — submitting an empty body runs with the active set as-is.
type computePayload struct {
	ParameterSetName string           `json:"parameterSetName,omitempty"`
	Overrides        *paramsOverrides `json:"overrides,omitempty"`
}

// paramsOverrides mirrors params.Fields for wire decoding, kept separate
// so the wire format doesn't couple directly to the manager's internal
// type.
type paramsOverrides struct {
	LiquidationThreshold   *float64 `json:"liquidationThreshold,omitempty"`
	BestsellerMultiplier   *float64 `json:"bestsellerMultiplier,omitempty"`
	MinVolumeThreshold     *float64 `json:"minVolumeThreshold,omitempty"`
	ConsistencyThreshold   *float64 `json:"consistencyThreshold,omitempty"`
	AnalysisStartDate      *string  `json:"analysisStartDate,omitempty"`
	AnalysisEndDate        *string  `json:"analysisEndDate,omitempty"`
	CoreDurationMonths     *int     `json:"coreDurationMonths,omitempty"`
	BestsellerDurationDays *int     `json:"bestsellerDurationDays,omitempty"`
}

// uploadResult is the JSON shape a completed/failed upload task's Result
// column carries, matching the Ingestion Pipeline's output contract
// plus the artifact URLs produced on failure.
type uploadResult struct {
	Success      bool              `json:"success"`
	RecordCount  int               `json:"recordCount"`
	ErrorCount   int               `json:"errorCount"`
	SkippedCount int               `json:"skippedCount"`
	Messages     []string          `json:"messages,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
	Errors       []string          `json:"errors,omitempty"`
	ErrorFiles   map[string]string `json:"errorFiles,omitempty"`
}

// downloadResult is the JSON shape a completed download task's Result
// column carries: the rendered file's artifact URL and row count.
type downloadResult struct {
	ResultURL   string `json:"resultUrl"`
	RecordCount int    `json:"recordCount"`
}

// computeResult is the JSON shape a completed NOOS run's Result column
// carries. Field names match pkg/reports' expectations for report1.
type computeResult struct {
	Core                 int      `json:"core"`
	Bestseller           int      `json:"bestseller"`
	Fashion              int      `json:"fashion"`
	DiscardedLiquidation int      `json:"discardedLiquidation"`
	DroppedUnresolved    int      `json:"droppedUnresolved"`
	ParametersUsed       string   `json:"parametersUsed"`
	SubstitutedDefaults  []string `json:"substitutedDefaults,omitempty"`
}

// kindEnvelope recovers just the "kind" discriminator from any of the
// payload shapes above, used when listing tasks by file kind for
// /api/file/status without needing the full typed payload.
type kindEnvelope struct {
	Kind string `json:"kind"`
}
