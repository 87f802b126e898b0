package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwsl/seascreen/pipeline/dsp"
	"github.com/cwsl/seascreen/pipeline/formats"
	"github.com/cwsl/seascreen/pipeline/sampler"
	"github.com/cwsl/seascreen/pipeline/timestamp"
)

// Config represents the application configuration
type Config struct {
	Campaign   CampaignConfig   `yaml:"campaign"`
	General    GeneralConfig    `yaml:"general"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Loggers    []LoggerConfig   `yaml:"loggers"`
}

// CampaignConfig identifies the measurement campaign and output location
type CampaignConfig struct {
	ProjectNumber string `yaml:"project_number"`
	ProjectName   string `yaml:"project_name"`
	CampaignName  string `yaml:"campaign_name"`
	OutputPath    string `yaml:"output_path"` // root folder for Statistics/Spectrograms/report output
}

// GeneralConfig contains output-format toggles and processing policy
type GeneralConfig struct {
	StatsCSV   bool `yaml:"stats_csv"`   // write statistics as CSV tables
	StatsXLSX  bool `yaml:"stats_xlsx"`  // write statistics as a spreadsheet
	StatsTable bool `yaml:"stats_table"` // write statistics as a compressed binary keyed table
	SpectCSV   bool `yaml:"spect_csv"`   // write spectrograms as CSV tables
	SpectXLSX  bool `yaml:"spect_xlsx"`  // write spectrograms as a spreadsheet
	SpectTable bool `yaml:"spect_table"` // write spectrograms as a compressed binary keyed table

	// AllowShortFiles admits files with fewer points than expected into
	// processing while still flagging them in the screening report.
	// Over-long files are never admitted. Default: true.
	AllowShortFiles *bool `yaml:"allow_short_files"`
}

// PrometheusConfig contains metrics endpoint settings
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // metrics listen address (default ":9100")
}

// MQTTConfig contains optional progress publishing settings
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`    // e.g. "tcp://localhost:1883"
	Topic    string `yaml:"topic"`     // progress topic (default "seascreen/progress")
	ClientID string `yaml:"client_id"` // MQTT client id (default "seascreen")
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// PSDConfig contains the Welch estimator parameters for one logger
type PSDConfig struct {
	Nperseg    int     `yaml:"nperseg"` // segment length in points (default 256)
	Window     string  `yaml:"window"`  // window function: none, hann, hamming, blackman (default "hann")
	OverlapPct float64 `yaml:"overlap"` // segment overlap in percent (default 50)
}

// LoggerConfig declares one logger's identity and file conventions
type LoggerConfig struct {
	ID            string  `yaml:"id"`
	Path          string  `yaml:"path"`           // folder containing the logger's raw files
	FileFormat    string  `yaml:"file_format"`    // format id: general-csv, fugro-csv, acc-text
	Extension     string  `yaml:"extension"`      // raw file extension (default "csv")
	Delimiter     string  `yaml:"delimiter"`      // field delimiter for delimited formats (default ",")
	ChannelRow    int     `yaml:"channel_row"`    // 1-indexed header row holding channel names (0 = none)
	UnitsRow      int     `yaml:"units_row"`      // 1-indexed header row holding channel units (0 = none)
	FileTimestamp string  `yaml:"file_timestamp"` // filename token pattern (Y m D H M S f, x literal); "auto" detects from the first file
	DatetimeFmt   string  `yaml:"datetime_format"` // Go layout for text time columns
	Frequency     float64 `yaml:"frequency"`       // nominal sampling frequency in Hz
	Duration      float64 `yaml:"logging_duration"` // nominal logging duration per file in seconds

	ColsToProcess   []int     `yaml:"cols_to_process"` // 1-indexed spreadsheet columns; column 1 is time
	UnitConvFactors []float64 `yaml:"unit_conv_factors"`
	ChannelNames    []string  `yaml:"channel_names"` // user overrides; empty = derive from file header
	ChannelUnits    []string  `yaml:"channel_units"`

	// Processing range: either by embedded file timestamp or by 1-indexed
	// file number. Setting both modes for one logger is a configuration
	// contradiction.
	ProcessStart     string `yaml:"process_start"`      // inclusive start timestamp (datetime_format layout or RFC3339)
	ProcessEnd       string `yaml:"process_end"`        // inclusive end timestamp
	ProcessStartFile int    `yaml:"process_start_file"` // inclusive 1-indexed start file number
	ProcessEndFile   int    `yaml:"process_end_file"`   // inclusive end file number

	LowCutoff  *float64 `yaml:"low_cutoff"`  // band-pass low cutoff in Hz (unset = open)
	HighCutoff *float64 `yaml:"high_cutoff"` // band-pass high cutoff in Hz (unset = open)

	StatsInterval float64   `yaml:"stats_interval"` // stats sample window length in seconds (0 = stats disabled)
	SpectInterval float64   `yaml:"spect_interval"` // spectral sample window length in seconds (0 = spectral disabled)
	PSD           PSDConfig `yaml:"psd"`

	pattern timestamp.Pattern // parsed file_timestamp (internal use)
}

// LoadConfig reads and parses the configuration file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if not specified
	if config.Prometheus.Listen == "" {
		config.Prometheus.Listen = ":9100"
	}
	if config.MQTT.Topic == "" {
		config.MQTT.Topic = "seascreen/progress"
	}
	if config.MQTT.ClientID == "" {
		config.MQTT.ClientID = "seascreen"
	}
	if config.General.AllowShortFiles == nil {
		t := true
		config.General.AllowShortFiles = &t
	}
	for i := range config.Loggers {
		lc := &config.Loggers[i]
		if lc.Extension == "" {
			lc.Extension = "csv"
		}
		if lc.Delimiter == "" {
			lc.Delimiter = ","
		}
		if lc.PSD.Nperseg == 0 {
			lc.PSD.Nperseg = 256
		}
		if lc.PSD.Window == "" {
			lc.PSD.Window = "hann"
		}
		if lc.PSD.OverlapPct == 0 {
			lc.PSD.OverlapPct = 50
		}
		// Parse the token pattern up front so pattern errors surface as
		// configuration errors, not mid-run failures. "auto" is resolved
		// during discovery from the first filename.
		if lc.FileTimestamp != "" && lc.FileTimestamp != "auto" {
			p, err := timestamp.ParsePattern(lc.FileTimestamp)
			if err != nil {
				return nil, fmt.Errorf("logger %s: invalid file_timestamp: %w", lc.ID, err)
			}
			lc.pattern = p
		}
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Campaign.OutputPath == "" {
		return fmt.Errorf("campaign.output_path is required")
	}
	if len(c.Loggers) == 0 {
		return fmt.Errorf("at least one logger is required")
	}
	seen := make(map[string]bool)
	for i := range c.Loggers {
		lc := &c.Loggers[i]
		if lc.ID == "" {
			return fmt.Errorf("loggers[%d].id is required", i)
		}
		if seen[lc.ID] {
			return fmt.Errorf("duplicate logger id %q", lc.ID)
		}
		seen[lc.ID] = true
		if lc.Path == "" {
			return fmt.Errorf("logger %s: path is required", lc.ID)
		}
		if _, err := formats.New(lc.FileFormat, formats.Options{}); err != nil {
			return fmt.Errorf("logger %s: %w", lc.ID, err)
		}
		if lc.Frequency <= 0 {
			return fmt.Errorf("logger %s: frequency must be positive", lc.ID)
		}
		if lc.Duration <= 0 {
			return fmt.Errorf("logger %s: logging_duration must be positive", lc.ID)
		}
		if len(lc.ColsToProcess) == 0 {
			return fmt.Errorf("logger %s: cols_to_process is required", lc.ID)
		}
		for _, col := range lc.ColsToProcess {
			if col < 2 {
				return fmt.Errorf("logger %s: cols_to_process entries must be >= 2 (column 1 is the time column)", lc.ID)
			}
		}
		if len(lc.UnitConvFactors) > 0 && len(lc.UnitConvFactors) != len(lc.ColsToProcess) {
			return fmt.Errorf("logger %s: unit_conv_factors must match cols_to_process length", lc.ID)
		}
		byTime := lc.ProcessStart != "" || lc.ProcessEnd != ""
		byFile := lc.ProcessStartFile != 0 || lc.ProcessEndFile != 0
		if byTime && byFile {
			return fmt.Errorf("logger %s: process range by timestamp and by file number are mutually exclusive", lc.ID)
		}
		if byTime && lc.FileTimestamp == "" {
			return fmt.Errorf("logger %s: timestamp process range requires file_timestamp", lc.ID)
		}
		if lc.LowCutoff != nil && lc.HighCutoff != nil && *lc.LowCutoff >= *lc.HighCutoff {
			return fmt.Errorf("logger %s: low_cutoff must be below high_cutoff", lc.ID)
		}
		if lc.StatsInterval < 0 || lc.SpectInterval < 0 {
			return fmt.Errorf("logger %s: sample intervals must not be negative", lc.ID)
		}
		if lc.StatsInterval == 0 && lc.SpectInterval == 0 {
			return fmt.Errorf("logger %s: at least one of stats_interval or spect_interval is required", lc.ID)
		}
		// A sample window must hold at least one point, or the window loop
		// has nothing to consume.
		if lc.StatsInterval > 0 && sampler.TargetLength(lc.StatsInterval, lc.Frequency) < 1 {
			return fmt.Errorf("logger %s: stats_interval %gs at %g Hz yields a sample shorter than one point", lc.ID, lc.StatsInterval, lc.Frequency)
		}
		if lc.SpectInterval > 0 {
			if sampler.TargetLength(lc.SpectInterval, lc.Frequency) < 1 {
				return fmt.Errorf("logger %s: spect_interval %gs at %g Hz yields a sample shorter than one point", lc.ID, lc.SpectInterval, lc.Frequency)
			}
			if lc.PSD.Nperseg < 1 {
				return fmt.Errorf("logger %s: psd nperseg must be positive", lc.ID)
			}
			if _, err := dsp.NewWindow(lc.PSD.Window, lc.PSD.Nperseg); err != nil {
				return fmt.Errorf("logger %s: %w", lc.ID, err)
			}
		}
		if _, err := parseRangeTime(lc.ProcessStart, lc.DatetimeFmt); err != nil {
			return fmt.Errorf("logger %s: invalid process_start: %w", lc.ID, err)
		}
		if _, err := parseRangeTime(lc.ProcessEnd, lc.DatetimeFmt); err != nil {
			return fmt.Errorf("logger %s: invalid process_end: %w", lc.ID, err)
		}
	}
	return nil
}

// ExpectedPoints returns the nominal point count per file.
func (lc *LoggerConfig) ExpectedPoints() int {
	return int(lc.Frequency * lc.Duration)
}

// parseRangeTime parses a process-range bound, accepting the logger's own
// datetime layout, RFC3339, or the common "2006-01-02 15:04:05" form.
func parseRangeTime(s, layout string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	layouts := []string{layout, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	for _, l := range layouts {
		if l == "" {
			continue
		}
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
