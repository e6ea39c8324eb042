// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: connection string (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - AdminKey: shared secret for /admin routes (required)
  - IPSalt: salt for click IP hashes (default: AdminKey)
  - PublicOrigin: origin for affiliate links (default: http://localhost:<port>)
  - RedisURL: attribution session backend (optional, memory when empty)
  - SessionKey: storage key for the remembered referral code (default: referral_code)
  - SessionTTL: lifetime of a remembered code (default: 720h)

# Environment Variables

Flags fall back to environment variables:

	PORT                 → -p
	DATABASE_URL         → -d
	DATABASE_TYPE        → -t
	PUBLIC_ORIGIN        → --origin
	REDIS_URL            → --redis
	SESSION_TTL          → --session-ttl
	ADMIN_KEY            → --admin-key
	IP_HASH_SALT         → --ip-salt
	REFERRAL_SESSION_KEY (env only)

CLI flags take precedence over environment variables. main loads a .env
file with godotenv before calling ParseFlags, so .env values behave like
real environment variables.
*/
package cliparse
