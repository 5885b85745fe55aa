package server

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// CORSOrigins is the comma-separated list of allowed origins.
	CORSOrigins string `mapstructure:"cors_origins" default:"*"`
	// SweepSchedule is the cron expression for the reservation expiry sweep.
	SweepSchedule string `mapstructure:"sweep_schedule" default:"@hourly"`
	// CookieSecure marks the session cookie as HTTPS-only.
	CookieSecure bool `mapstructure:"cookie_secure" default:"false"`
}
