// Package config handles configuration loading for the bemily data layer.
//
// Configuration is loaded from YAML files with environment variable
// expansion and validated with sensible defaults.
//
// # Configuration Sections
//
// Database:
//
//	database:
//	  path: "/var/lib/bemily/bemily.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  path: "${BEMILY_DB}"
//
// Unset variables expand to the empty string, which validation then
// rejects for required fields.
package config
