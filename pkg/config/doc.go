// Package config loads gateway configuration from an optional YAML file and
// environment variables, with defaults for everything but secrets.
//
// # Sources
//
// Defaults are applied first, then the YAML file named by AUTHGATE_CONFIG_FILE,
// then the environment. An empty environment variable counts as unset.
//
// # Environment
//
// Server settings:
//
//	AUTHGATE_HOST="0.0.0.0"
//	AUTHGATE_PORT="8000"
//	AUTHGATE_HEALTH_PORT="9090"
//	AUTHGATE_SHUTDOWN_TIMEOUT="30s"
//
// Google and the state token:
//
//	GOOGLE_OAUTH_CLIENT_ID="..."
//	GOOGLE_OAUTH_CLIENT_SECRET="..."
//	GOOGLE_OAUTH_REDIRECT_URI="http://localhost:8000/api/auth/sso/google/callback"
//	FRONTEND_BASE_URL="http://localhost:3000"
//	SSO_STATE_SECRET="..."  # defaults to JWT_SECRET
//	SSO_STATE_TTL="10m"
//	SSO_HTTP_TIMEOUT="10s"
//
// Rate limiting:
//
//	REDIS_URL="redis://localhost:6379/0"  # empty keeps counters in process
//	AUTHGATE_TRUST_FORWARDED_FOR="false"
//	SSO_START_RATE_LIMIT="30"
//	SSO_START_RATE_WINDOW="5m"
//	SSO_CALLBACK_RATE_LIMIT="60"
//	SSO_CALLBACK_RATE_WINDOW="10m"
//
// Storage and tokens:
//
//	DATABASE_DRIVER="postgres"  # postgres, sqlite3
//	DATABASE_URL="postgres://localhost/authgate"
//	JWT_SECRET="..."
//	JWT_ACCESS_TTL="1h"
//	JWT_ISSUER="authgate"
//
// Observability settings:
//
//	AUTHGATE_LOG_LEVEL="info"  # debug, info, warn, error
//	AUTHGATE_LOG_FORMAT="json"  # json, text
//	AUTHGATE_METRICS_ENABLED="true"
//	AUTHGATE_OTEL_ENABLED="true"
//	AUTHGATE_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Listening on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
package config
