package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"outreach/internal/allocator"
	"outreach/internal/domain"
	"outreach/internal/models"
	"outreach/internal/schedule"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig            `yaml:"app"`
	Logging      LoggingConfig        `yaml:"logging"`
	Store        StoreConfig          `yaml:"store"`
	Google       GoogleConfig         `yaml:"google"`
	Workbook     WorkbookConfig       `yaml:"workbook"`
	Telegram     TelegramConfig       `yaml:"telegram"`
	Redis        RedisConfig          `yaml:"redis"`
	Database     DatabaseConfig       `yaml:"database"`
	Monitoring   MonitoringConfig     `yaml:"monitoring"`
	Assign       AssignConfig         `yaml:"assign"`
	Schedule     ScheduleConfig       `yaml:"schedule"`
	Notify       NotifyConfig         `yaml:"notify"`
	Timeouts     TimeoutsConfig       `yaml:"timeouts"`
	Destinations []models.Destination `yaml:"destinations"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
}

type GoogleConfig struct {
	CredentialsFile          string `yaml:"credentials_file"`
	LeadsSpreadsheetID       string `yaml:"leads_spreadsheet_id"`
	LeadsRange               string `yaml:"leads_range"`
	ProgressRange            string `yaml:"progress_range"`
	AssignmentsSpreadsheetID string `yaml:"assignments_spreadsheet_id"`
	ReportsRange             string `yaml:"reports_range"`
	AssignedColor            string `yaml:"assigned_color"`
}

type WorkbookConfig struct {
	Path            string `yaml:"path"`
	AssignmentsPath string `yaml:"assignments_path"`
	LeadsSheet      string `yaml:"leads_sheet"`
	ProgressSheet   string `yaml:"progress_sheet"`
}

type TelegramConfig struct {
	BotToken      string  `yaml:"bot_token"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	Debug         bool    `yaml:"debug"`
}

type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	LeaseKey string        `yaml:"lease_key"`
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type MonitoringConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

type AssignConfig struct {
	Type      string `yaml:"type"`
	FixedSize int    `yaml:"fixed_size"`
	Base      int    `yaml:"base"`
	Increment int    `yaml:"increment"`
	PoolSize  int    `yaml:"pool_size"`
}

type RunTimes struct {
	Assign string `yaml:"assign"`
	Notify string `yaml:"notify"`
	Remind string `yaml:"remind"`
}

type ScheduleConfig struct {
	ToleranceMinutes *int     `yaml:"tolerance_minutes"`
	Timezone         string   `yaml:"timezone"`
	RunTimes         RunTimes `yaml:"run_times"`
}

type NotifyConfig struct {
	BroadcastChat string `yaml:"broadcast_chat"`
}

type TimeoutsConfig struct {
	Store     time.Duration `yaml:"store"`
	Messaging time.Duration `yaml:"messaging"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; real deployments inject the environment directly
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.ConfigurationError{Field: ".env", Reason: err.Error()}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: configPath, Reason: err.Error()}
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, &domain.ConfigurationError{Field: configPath, Reason: err.Error()}
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := c.Gate(); err != nil {
		return err
	}
	if err := ValidateDestinations(c.Destinations); err != nil {
		return err
	}
	if err := validateReservedTables(c.Destinations, c.reservedTabs()); err != nil {
		return err
	}

	switch c.Store.Backend {
	case models.BackendSheets:
		if c.Google.CredentialsFile == "" {
			return &domain.ConfigurationError{Field: "google.credentials_file", Reason: "is required"}
		}
		if c.Google.LeadsSpreadsheetID == "" {
			return &domain.ConfigurationError{Field: "google.leads_spreadsheet_id", Reason: "is required"}
		}
	case models.BackendXLSX:
		if c.Workbook.Path == "" {
			return &domain.ConfigurationError{Field: "workbook.path", Reason: "is required"}
		}
	default:
		return &domain.ConfigurationError{Field: "store.backend", Reason: fmt.Sprintf("unknown backend %q", c.Store.Backend)}
	}

	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return &domain.ConfigurationError{Field: "telegram.bot_token", Reason: "is required"}
	}
	if c.Telegram.RatePerSecond < 0 {
		return &domain.ConfigurationError{Field: "telegram.rate_per_second", Reason: "must not be negative"}
	}
	return nil
}

// ValidateDestinations checks that destinations are non-empty, uniquely named,
// reachable by chat or table, and never share a table.
func ValidateDestinations(dests []models.Destination) error {
	if len(dests) == 0 {
		return &domain.ConfigurationError{Field: "destinations", Reason: "at least one destination is required"}
	}
	if len(dests) > models.MaxDestinationCount {
		return &domain.ConfigurationError{Field: "destinations", Reason: fmt.Sprintf("more than %d destinations", models.MaxDestinationCount)}
	}
	names := make(map[string]bool)
	tables := make(map[string]string)
	for i, d := range dests {
		if strings.TrimSpace(d.Name) == "" {
			return &domain.ConfigurationError{Field: fmt.Sprintf("destinations[%d].name", i), Reason: "is required"}
		}
		if names[d.Name] {
			return &domain.ConfigurationError{Field: "destinations", Reason: fmt.Sprintf("duplicate destination %q", d.Name)}
		}
		names[d.Name] = true
		if d.Chat == "" && d.Table == "" {
			return &domain.ConfigurationError{Field: fmt.Sprintf("destinations[%d]", i), Reason: "needs a chat or a table"}
		}
		if d.Table == "" {
			continue
		}
		// tab names are case-insensitive in both Sheets and xlsx
		key := strings.ToLower(strings.TrimSpace(d.Table))
		if owner, ok := tables[key]; ok {
			return &domain.ConfigurationError{
				Field:  fmt.Sprintf("destinations[%d].table", i),
				Reason: fmt.Sprintf("table %q is already used by %q", d.Table, owner),
			}
		}
		tables[key] = d.Name
	}
	return nil
}

// reservedTabs lists the tabs a destination table must not replace: the
// backlog and progress tabs, when tables live in the same spreadsheet.
func (c *Config) reservedTabs() []string {
	switch c.Store.Backend {
	case models.BackendSheets:
		if c.Google.AssignmentsSpreadsheetID != "" && c.Google.AssignmentsSpreadsheetID != c.Google.LeadsSpreadsheetID {
			return nil
		}
		return []string{rangeSheet(c.Google.LeadsRange), rangeSheet(c.Google.ProgressRange)}
	case models.BackendXLSX:
		if c.Workbook.AssignmentsPath != "" && c.Workbook.AssignmentsPath != c.Workbook.Path {
			return nil
		}
		return []string{c.Workbook.LeadsSheet, c.Workbook.ProgressSheet}
	}
	return nil
}

func validateReservedTables(dests []models.Destination, reserved []string) error {
	for i, d := range dests {
		if d.Table == "" {
			continue
		}
		for _, tab := range reserved {
			if tab != "" && strings.EqualFold(strings.TrimSpace(d.Table), tab) {
				return &domain.ConfigurationError{
					Field:  fmt.Sprintf("destinations[%d].table", i),
					Reason: fmt.Sprintf("table %q would overwrite the %q tab", d.Table, tab),
				}
			}
		}
	}
	return nil
}

// rangeSheet returns the tab name of an A1 range such as "'Team leads'!A:Z".
func rangeSheet(r string) string {
	i := strings.LastIndex(r, "!")
	if i < 0 {
		return ""
	}
	name := r[:i]
	if len(name) >= 2 && strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	return name
}

// Policy builds the sizing policy from the assign section.
func (c *Config) Policy() (allocator.Policy, error) {
	kind, err := allocator.ParseKind(c.Assign.Type)
	if err != nil {
		return allocator.Policy{}, &domain.ConfigurationError{Field: "assign.type", Reason: err.Error()}
	}
	p := allocator.Policy{
		Kind:      kind,
		Base:      c.Assign.Base,
		Increment: c.Assign.Increment,
	}
	switch kind {
	case allocator.Fixed:
		p.Size = c.Assign.FixedSize
	case allocator.FixedPool:
		p.Size = c.Assign.PoolSize
	}
	if err := p.Validate(); err != nil {
		return allocator.Policy{}, &domain.ConfigurationError{Field: "assign", Reason: err.Error()}
	}
	return p, nil
}

// Gate builds the time gate from the schedule section.
func (c *Config) Gate() (schedule.Gate, error) {
	var g schedule.Gate
	var err error
	if g.Assign, err = schedule.ParseClock(c.Schedule.RunTimes.Assign); err != nil {
		return g, &domain.ConfigurationError{Field: "schedule.run_times.assign", Reason: err.Error()}
	}
	if g.Notify, err = schedule.ParseClock(c.Schedule.RunTimes.Notify); err != nil {
		return g, &domain.ConfigurationError{Field: "schedule.run_times.notify", Reason: err.Error()}
	}
	if g.Remind, err = schedule.ParseClock(c.Schedule.RunTimes.Remind); err != nil {
		return g, &domain.ConfigurationError{Field: "schedule.run_times.remind", Reason: err.Error()}
	}
	tolerance := models.DefaultToleranceMinutes
	if c.Schedule.ToleranceMinutes != nil {
		tolerance = *c.Schedule.ToleranceMinutes
	}
	if tolerance < 0 {
		return g, &domain.ConfigurationError{Field: "schedule.tolerance_minutes", Reason: "must not be negative"}
	}
	g.Tolerance = time.Duration(tolerance) * time.Minute
	if c.Schedule.Timezone != "" {
		loc, err := time.LoadLocation(c.Schedule.Timezone)
		if err != nil {
			return g, &domain.ConfigurationError{Field: "schedule.timezone", Reason: err.Error()}
		}
		g.Location = loc
	}
	return g, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "outreach"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = models.BackendSheets
	}
	if c.Google.LeadsRange == "" {
		c.Google.LeadsRange = models.DefaultLeadsRange
	}
	if c.Google.ProgressRange == "" {
		c.Google.ProgressRange = models.DefaultProgressRange
	}
	if c.Google.AssignmentsSpreadsheetID == "" {
		c.Google.AssignmentsSpreadsheetID = c.Google.LeadsSpreadsheetID
	}
	if c.Google.AssignedColor == "" {
		c.Google.AssignedColor = models.DefaultAssignedColor
	}
	if c.Workbook.AssignmentsPath == "" {
		c.Workbook.AssignmentsPath = c.Workbook.Path
	}
	if c.Workbook.LeadsSheet == "" {
		c.Workbook.LeadsSheet = "Leads"
	}
	if c.Workbook.ProgressSheet == "" {
		c.Workbook.ProgressSheet = "Progress"
	}

	if c.Assign.Type == "" {
		c.Assign.Type = models.AssignFixed
	}
	if c.Schedule.ToleranceMinutes == nil {
		tolerance := models.DefaultToleranceMinutes
		c.Schedule.ToleranceMinutes = &tolerance
	}
	if c.Schedule.RunTimes.Assign == "" {
		c.Schedule.RunTimes.Assign = models.DefaultAssignTime
	}
	if c.Schedule.RunTimes.Notify == "" {
		c.Schedule.RunTimes.Notify = models.DefaultNotifyTime
	}
	if c.Schedule.RunTimes.Remind == "" {
		c.Schedule.RunTimes.Remind = models.DefaultRemindTime
	}

	if c.Telegram.RatePerSecond == 0 {
		c.Telegram.RatePerSecond = models.DefaultSendRate
	}
	if c.Telegram.Burst == 0 {
		c.Telegram.Burst = models.DefaultSendBurst
	}
	if c.Redis.LeaseKey == "" {
		c.Redis.LeaseKey = models.DefaultLeaseKey
	}
	if c.Redis.LeaseTTL == 0 {
		c.Redis.LeaseTTL = 10 * time.Minute
	}
	if c.Monitoring.Job == "" {
		c.Monitoring.Job = models.DefaultPushJob
	}
	if c.Timeouts.Store == 0 {
		c.Timeouts.Store = 20 * time.Second
	}
	if c.Timeouts.Messaging == 0 {
		c.Timeouts.Messaging = 10 * time.Second
	}
}
