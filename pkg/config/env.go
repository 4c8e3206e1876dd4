package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvDefaultSessionTitle = "DEFAULT_SESSION_TITLE"
	EnvDefaultDurationMin  = "DEFAULT_DURATION_MIN"
	EnvSlotLockTTL         = "SLOT_LOCK_TTL"
	EnvFeedSnapshotLimit   = "FEED_SNAPSHOT_LIMIT"
	EnvFeedSnapshotTimeout = "FEED_SNAPSHOT_TIMEOUT"
	EnvConflictScanLimit   = "CONFLICT_SCAN_LIMIT"
)
