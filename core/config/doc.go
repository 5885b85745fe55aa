// Package config provides configuration management for Loankeeper.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, CORS origins, sweep schedule)
//   - Database: MySQL connection details
//   - Session: Redis address and session TTL
//   - Storage: S3/MinIO credentials and bucket settings for item photos
//   - Log: Logging level and format
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
