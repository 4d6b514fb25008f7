package postgres

// schema mirrors the SQLite layout, including the estimated column that
// SQLite adds in migration v2.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS providers (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    family TEXT NOT NULL DEFAULT 'unsupported',
    api_key TEXT NOT NULL DEFAULT '',
    base_url TEXT NOT NULL DEFAULT '',
    models TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL DEFAULT '',
    default_model TEXT NOT NULL DEFAULT '',
    priority INTEGER NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_providers_name ON providers (lower(name))`,
	`CREATE INDEX IF NOT EXISTS idx_providers_active ON providers (active, priority)`,
	`CREATE TABLE IF NOT EXISTS usage_records (
    id TEXT PRIMARY KEY,
    timestamp TIMESTAMPTZ NOT NULL,
    provider_id BIGINT NOT NULL REFERENCES providers(id),
    provider_name TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL DEFAULT '',
    tokens_in INTEGER NOT NULL DEFAULT 0,
    tokens_out INTEGER NOT NULL DEFAULT 0,
    cost DOUBLE PRECISION NOT NULL DEFAULT 0,
    organization_id TEXT NOT NULL DEFAULT '',
    agent_id TEXT NOT NULL DEFAULT '',
    estimated BOOLEAN NOT NULL DEFAULT FALSE
)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_records (timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_org ON usage_records (organization_id, timestamp)`,
}
