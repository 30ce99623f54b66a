package config

import "fmt"

// ConfigurationError is fatal and reported before any frame is produced.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func NewError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (c *Config) Validate() error {
	switch {
	case c.Width%2 != 0:
		return NewError("width", "must be an even number, got %d", c.Width)
	case c.Width < 100:
		return NewError("width", "can't be less than 100px, got %d", c.Width)
	case c.Height%2 != 0:
		return NewError("height", "must be an even number, got %d", c.Height)
	case c.Height < 32:
		return NewError("height", "can't be less than 32px, got %d", c.Height)
	case c.FPS < 1:
		return NewError("fps", "can't be less than 1, got %d", c.FPS)
	case c.StartTime < 0:
		return NewError("start", "can't be negative, got %g", c.StartTime)
	case c.EndTime < 0:
		return NewError("end", "can't be negative, got %g", c.EndTime)
	case c.EndTime != 0 && c.EndTime < c.StartTime:
		return NewError("end", "end time %gs is before start time %gs", c.EndTime, c.StartTime)
	case c.Padding < 0:
		return NewError("padding", "can't be negative, got %d", c.Padding)
	case c.Scale <= 0:
		return NewError("scale", "must be positive, got %g", c.Scale)
	case 2*c.Padding >= c.Width:
		return NewError("padding", "padding %d leaves no room in a %dpx wide frame", c.Padding, c.Width)
	}
	if _, err := ParseHexColor(c.Background); err != nil {
		return NewError("background", "%v", err)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}
