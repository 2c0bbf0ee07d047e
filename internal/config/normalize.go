package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return err
	}
	if c.Paths.PublishDir, err = expandPath(c.Paths.PublishDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	c.Encoding.FFmpegBinary = strings.TrimSpace(c.Encoding.FFmpegBinary)
	c.Encoding.FFprobeBinary = strings.TrimSpace(c.Encoding.FFprobeBinary)
	c.Tracking.AnalyzerBinary = strings.TrimSpace(c.Tracking.AnalyzerBinary)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if c.Encoding.FFmpegBinary == "" {
		c.Encoding.FFmpegBinary = "ffmpeg"
	}
	if c.Encoding.FFprobeBinary == "" {
		c.Encoding.FFprobeBinary = "ffprobe"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	// User-provided plan sections override the built-in tier with the same
	// code but never remove the defaults.
	defaults := Default().Plans
	if c.Plans == nil {
		c.Plans = defaults
	} else {
		for code, p := range defaults {
			if _, ok := c.Plans[code]; !ok {
				c.Plans[code] = p
			}
		}
	}

	normalized := make(map[string]Plan, len(c.Plans))
	for code, p := range c.Plans {
		normalized[strings.ToLower(strings.TrimSpace(code))] = p
	}
	c.Plans = normalized

	return nil
}
