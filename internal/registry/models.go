package registry

import "time"

// MergeRunStatus is the terminal state of a recorded merge invocation.
type MergeRunStatus string

const (
	StatusRunning MergeRunStatus = "running"
	StatusSuccess MergeRunStatus = "success"
	StatusFailed  MergeRunStatus = "failed"
)

// MergeRun is one row per merge invocation: when it ran, what it merged,
// and how it ended. Purely an audit ledger — nothing in the merge engine
// reads it back to make decisions.
type MergeRun struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement"`
	DataDir       string         `gorm:"column:data_dir;type:varchar(1024)"`
	OutputPath    string         `gorm:"column:output_path;type:varchar(1024)"`
	WorkerCount   int            `gorm:"column:worker_count"`
	InputCount    int            `gorm:"column:input_count"`
	RetainedCount int            `gorm:"column:retained_count"`
	Status        MergeRunStatus `gorm:"column:status;type:varchar(16)"`
	ErrorCode     string         `gorm:"column:error_code;type:varchar(64)"`
	ErrorMessage  string         `gorm:"column:error_message;type:text"`
	StartedAt     time.Time      `gorm:"column:started_at"`
	FinishedAt    *time.Time     `gorm:"column:finished_at"`
}

// TableName pins the table name so it doesn't drift with GORM's pluralization rules.
func (MergeRun) TableName() string {
	return "merge_runs"
}
