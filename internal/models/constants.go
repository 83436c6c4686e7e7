package models

const (
	TaskAssign = "assign"
	TaskNotify = "notify"
	TaskRemind = "remind"
)

const (
	AssignFixed       = "fixed"
	AssignIncremental = "incremental"
	AssignPool        = "pool"
)

const (
	BackendSheets = "sheets"
	BackendXLSX   = "xlsx"
)

const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
	RunStatusDryRun  = "dry_run"
)

const (
	// DefaultToleranceMinutes is the window around each run time.
	DefaultToleranceMinutes = 30

	DefaultAssignTime = "09:00"
	DefaultNotifyTime = "19:00"
	DefaultRemindTime = "21:00"

	DefaultLeadsRange    = "Sheet1!A:Z"
	DefaultProgressRange = "Progress!A2:B2"
	DefaultAssignedColor = "#E6E6E6"

	DefaultLeaseKey     = "outreach:lease"
	DefaultPushJob      = "outreach"
	DefaultSendRate     = 20
	DefaultSendBurst    = 1
	DefaultConfigPath   = "configs/config.yaml"
	DateLayout          = "2006-01-02"
	TimestampLayout     = "2006-01-02 15:04:05"
	MaxDestinationCount = 200
)
