package config

import (
	"errors"
	"fmt"
	"strings"
)

var validResolutions = map[string]struct{}{
	"720p":  {},
	"1080p": {},
	"4k":    {},
}

var validLogFormats = map[string]struct{}{
	"console": {},
	"json":    {},
}

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		problems = append(problems, "paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.PublishDir) == "" {
		problems = append(problems, "paths.publish_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}

	if c.Sourcing.DownloadTimeout <= 0 {
		problems = append(problems, "sourcing.download_timeout must be positive")
	}
	if c.Encoding.EncodeTimeout <= 0 {
		problems = append(problems, "encoding.encode_timeout must be positive")
	}
	if c.Tracking.AnalyzeTimeout <= 0 {
		problems = append(problems, "tracking.analyze_timeout must be positive")
	}

	if c.Workflow.QueuePollInterval <= 0 {
		problems = append(problems, "workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		problems = append(problems, "workflow.error_retry_interval must be positive")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		problems = append(problems, "workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		problems = append(problems, "workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	if c.Workflow.MaxRetries < 0 {
		problems = append(problems, "workflow.max_retries must not be negative")
	}
	if c.Workflow.StaleWorkspaceHours <= 0 {
		problems = append(problems, "workflow.stale_workspace_hours must be positive")
	}
	if c.Workflow.ClientPollInterval <= 0 {
		problems = append(problems, "workflow.client_poll_interval must be positive")
	}

	if _, ok := validLogFormats[c.Logging.Format]; !ok {
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}
	if _, ok := validLogLevels[c.Logging.Level]; !ok {
		problems = append(problems, fmt.Sprintf("logging.level %q is not supported (debug, info, warn, error)", c.Logging.Level))
	}

	if len(c.Plans) == 0 {
		problems = append(problems, "at least one [plans.<code>] section is required")
	}
	for code, p := range c.Plans {
		resolution := strings.ToLower(strings.TrimSpace(p.MaxResolution))
		if _, ok := validResolutions[resolution]; !ok {
			problems = append(problems, fmt.Sprintf("plans.%s.max_resolution %q is not supported (720p, 1080p, 4k)", code, p.MaxResolution))
		}
		if p.DailyClipLimit < -1 || p.DailyClipLimit == 0 {
			problems = append(problems, fmt.Sprintf("plans.%s.daily_clip_limit must be positive or -1 for unlimited", code))
		}
		if p.MonthlyClipLimit < -1 || p.MonthlyClipLimit == 0 {
			problems = append(problems, fmt.Sprintf("plans.%s.monthly_clip_limit must be positive or -1 for unlimited", code))
		}
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
