// Package config handles configuration loading for counsel-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${COUNSEL_JWT_SECRET}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	agent:
//	  request_timeout: "45s"
//	auth:
//	  session_ttl: "12h"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # chat UI, API, agent ingest
//
// Database:
//
//	database:
//	  path: "/var/lib/counsel/counsel.db"
//
// Agent connection:
//
//	agent:
//	  endpoint: "http://localhost:9090/webhook"
//	  ingest_token: "${COUNSEL_AGENT_TOKEN}"
//	  request_timeout: "30s"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${COUNSEL_JWT_SECRET}"
//	  session_ttl: "24h"
//	  users:
//	    - email: "ada@example.com"
//	      name: "Ada"
//	      password_hash: "$2a$10$..."   # see: counsel-gateway hash-password
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
