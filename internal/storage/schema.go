package storage

const schema = `
CREATE TABLE IF NOT EXISTS unified_events (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp       TEXT NOT NULL,
	event_type      TEXT NOT NULL,
	details         TEXT NOT NULL,
	metadata_fields TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_unified_events_type_ts
	ON unified_events (event_type, timestamp DESC);
`
