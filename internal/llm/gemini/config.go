package gemini

import "time"

// Config for the Gemini vision client.
type Config struct {
	APIKey      string
	Model       string  // default "gemini-2.0-flash"
	Temperature float32 // 0..2
	Timeout     time.Duration
	// StructuredOutput attaches a response schema so the service constrains the reply itself.
	StructuredOutput bool
	// RequestsPerMinute caps the call rate of this client. 0 disables the limiter.
	RequestsPerMinute int
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "gemini-2.0-flash"
	}
	if c.Timeout <= 0 {
		c.Timeout = 90 * time.Second
	}
}
