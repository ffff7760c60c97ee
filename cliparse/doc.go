// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse loads server configuration.

# Layering

Settings are applied in order, each layer overriding the one before:

 1. built-in Defaults
 2. YAML file given with --config
 3. a .env file in the working directory (never overrides real env vars)
 4. environment variables
 5. command-line flags that were explicitly set

# Settings

Required settings:

  - DATABASE_URL (-d): PostgreSQL connection string or SQLite path
  - IDENTITY_SECRET (--identity-secret): HMAC secret shared with the gateway
    (serve only)

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): postgres or sqlite (default: sqlite)
  - DEBUG (--debug): debug logging
  - RETRY_ATTEMPTS, RETRY_MIN_BACKOFF, RETRY_MAX_BACKOFF: transient failure retries
  - SHUTDOWN_TIMEOUT: graceful shutdown budget (default: 10s)
*/
package cliparse
