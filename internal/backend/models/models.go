package models

import "time"

// MediaType classifies a scanned file.
type MediaType string

const (
	MediaTypeAudiobook MediaType = "audiobook"
	MediaTypeEbook     MediaType = "ebook"
	MediaTypeComic     MediaType = "comic"
	MediaTypeUnknown   MediaType = "unknown"
)

// FileStatus tracks a file or group through the review workflow.
type FileStatus string

const (
	FileStatusPending  FileStatus = "pending"
	FileStatusReviewed FileStatus = "reviewed"
	FileStatusApproved FileStatus = "approved"
	FileStatusApplied  FileStatus = "applied"
)

// ScanStatus is the lifecycle state of a scan.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
)

// PlanStatus is the lifecycle state of an organization plan.
type PlanStatus string

const (
	PlanStatusDraft      PlanStatus = "draft"
	PlanStatusReady      PlanStatus = "ready"
	PlanStatusApplying   PlanStatus = "applying"
	PlanStatusCompleted  PlanStatus = "completed"
	PlanStatusRolledBack PlanStatus = "rolled_back"
	PlanStatusFailed     PlanStatus = "failed"
)

// OperationStatus is the lifecycle state of a planned operation.
type OperationStatus string

const (
	OperationStatusPending    OperationStatus = "pending"
	OperationStatusCompleted  OperationStatus = "completed"
	OperationStatusFailed     OperationStatus = "failed"
	OperationStatusRolledBack OperationStatus = "rolled_back"
	OperationStatusSkipped    OperationStatus = "skipped"
)

// OperationType describes how a file is relocated.
type OperationType string

const (
	// OperationMove renames across folders on the same volume (atomic).
	OperationMove OperationType = "move"
	// OperationRename renames within the same folder.
	OperationRename OperationType = "rename"
	// OperationCopyDelete copies across volumes, verifies, then deletes.
	OperationCopyDelete OperationType = "copy_delete"
)

// MediaFile is a cataloged media file.
type MediaFile struct {
	ID       string    `json:"id"`
	ScanID   string    `json:"scan_id,omitempty"`
	FilePath string    `json:"file_path"`
	FileHash string    `json:"file_hash,omitempty"`
	FileSize int64     `json:"file_size"`
	Type     MediaType `json:"media_type"`

	GroupID        string `json:"group_id,omitempty"`
	IsGroupPrimary bool   `json:"is_group_primary"`
	TrackNumber    int    `json:"track_number,omitempty"`

	// Metadata extracted during scanning
	ExtractedTitle       string  `json:"extracted_title,omitempty"`
	ExtractedAuthor      string  `json:"extracted_author,omitempty"`
	ExtractedNarrator    string  `json:"extracted_narrator,omitempty"`
	ExtractedSeries      string  `json:"extracted_series,omitempty"`
	ExtractedSeriesIndex float64 `json:"extracted_series_index,omitempty"`
	ExtractedYear        int     `json:"extracted_year,omitempty"`
	DurationSeconds      int     `json:"duration_seconds,omitempty"`

	// Final metadata after review
	FinalTitle       string  `json:"final_title,omitempty"`
	FinalAuthor      string  `json:"final_author,omitempty"`
	FinalNarrator    string  `json:"final_narrator,omitempty"`
	FinalSeries      string  `json:"final_series,omitempty"`
	FinalSeriesIndex float64 `json:"final_series_index,omitempty"`
	FinalYear        int     `json:"final_year,omitempty"`

	Status     FileStatus `json:"status"`
	Confidence float64    `json:"confidence"`

	ProviderMatchSource string `json:"provider_match_source,omitempty"`
	ProviderMatchID     string `json:"provider_match_id,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Title returns the final title if set, otherwise the extracted one.
func (f *MediaFile) Title() string {
	if f.FinalTitle != "" {
		return f.FinalTitle
	}
	return f.ExtractedTitle
}

// Author returns the final author if set, otherwise the extracted one.
func (f *MediaFile) Author() string {
	if f.FinalAuthor != "" {
		return f.FinalAuthor
	}
	return f.ExtractedAuthor
}

// AudiobookGroup is a multi-file audiobook consolidated from one folder.
type AudiobookGroup struct {
	ID                   string `json:"id"`
	ScanID               string `json:"scan_id,omitempty"`
	FolderPath           string `json:"folder_path"`
	FileCount            int    `json:"file_count"`
	TotalDurationSeconds int    `json:"total_duration_seconds"`

	Title       string  `json:"title,omitempty"`
	Author      string  `json:"author,omitempty"`
	Narrator    string  `json:"narrator,omitempty"`
	Series      string  `json:"series,omitempty"`
	SeriesIndex float64 `json:"series_index,omitempty"`
	Year        int     `json:"year,omitempty"`

	FinalTitle       string  `json:"final_title,omitempty"`
	FinalAuthor      string  `json:"final_author,omitempty"`
	FinalNarrator    string  `json:"final_narrator,omitempty"`
	FinalSeries      string  `json:"final_series,omitempty"`
	FinalSeriesIndex float64 `json:"final_series_index,omitempty"`
	FinalYear        int     `json:"final_year,omitempty"`

	Status     FileStatus `json:"status"`
	Confidence float64    `json:"confidence"`

	ProviderMatchSource string `json:"provider_match_source,omitempty"`
	ProviderMatchID     string `json:"provider_match_id,omitempty"`

	Files []*MediaFile `json:"files,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Scan records a single scan run over a root folder.
type Scan struct {
	ID            string     `json:"id"`
	RootPath      string     `json:"root_path"`
	Status        ScanStatus `json:"status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	FilesFound    int        `json:"files_found"`
	GroupsCreated int        `json:"groups_created"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at,omitempty"`
}

// Plan is a saved organization plan.
type Plan struct {
	ID             string     `json:"id"`
	Name           string     `json:"name,omitempty"`
	Description    string     `json:"description,omitempty"`
	Status         PlanStatus `json:"status"`
	ItemCount      int        `json:"item_count"`
	CompletedCount int        `json:"completed_count"`
	ErrorMessage   string     `json:"error_message,omitempty"`

	Operations []*PlannedOperation `json:"operations,omitempty"`

	CreatedAt    time.Time  `json:"created_at,omitempty"`
	AppliedAt    *time.Time `json:"applied_at,omitempty"`
	RolledBackAt *time.Time `json:"rolled_back_at,omitempty"`
}

// PlannedOperation is a single file operation inside a plan.
type PlannedOperation struct {
	ID             string          `json:"id"`
	PlanID         string          `json:"plan_id,omitempty"`
	MediaFileID    string          `json:"media_file_id,omitempty"`
	GroupID        string          `json:"group_id,omitempty"`
	Type           OperationType   `json:"operation_type"`
	SourcePath     string          `json:"source_path"`
	TargetPath     string          `json:"target_path"`
	FileHash       string          `json:"file_hash,omitempty"`
	ExecutionOrder int             `json:"execution_order"`
	Status         OperationStatus `json:"status"`
	ExecutedAt     *time.Time      `json:"executed_at,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}

// AuditEntry records one executed or attempted file action.
type AuditEntry struct {
	ID           int64     `json:"id"`
	PlanID       string    `json:"plan_id"`
	OperationID  string    `json:"operation_id"`
	Action       string    `json:"action"`
	SourcePath   string    `json:"source_path,omitempty"`
	TargetPath   string    `json:"target_path,omitempty"`
	Result       string    `json:"result"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// ProviderResult is a normalized metadata match from an external provider.
type ProviderResult struct {
	Provider    string  `json:"provider"`
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author,omitempty"`
	Narrator    string  `json:"narrator,omitempty"`
	Series      string  `json:"series,omitempty"`
	SeriesIndex float64 `json:"series_index,omitempty"`
	Year        int     `json:"year,omitempty"`
	Description string  `json:"description,omitempty"`
	CoverURL    string  `json:"cover_url,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// DashboardStats summarizes the catalog for the UI.
type DashboardStats struct {
	TotalFiles         int     `json:"total_files"`
	TotalGroups        int     `json:"total_groups"`
	PendingCount       int     `json:"pending_count"`
	ReviewedCount      int     `json:"reviewed_count"`
	ApprovedCount      int     `json:"approved_count"`
	AppliedCount       int     `json:"applied_count"`
	TotalDurationHours float64 `json:"total_duration_hours"`
	TotalSizeGB        float64 `json:"total_size_gb"`
	RecentScans        []*Scan `json:"recent_scans"`
	RecentPlans        []*Plan `json:"recent_plans"`
}
