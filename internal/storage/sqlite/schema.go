package sqlite

// Schema defines the SQLite database schema for the knowledge graph and the
// episodic memory store. Executed on every open; all statements are
// idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    properties TEXT,
    confidence REAL NOT NULL DEFAULT 0.7,
    sources TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE(name, type)
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_entities_updated_at ON entities(updated_at);

CREATE TABLE IF NOT EXISTS relationships (
    id TEXT PRIMARY KEY,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    type TEXT NOT NULL,
    properties TEXT,
    confidence REAL NOT NULL DEFAULT 0.7,
    sources TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE(source_id, target_id, type),
    FOREIGN KEY (source_id) REFERENCES entities(id) ON DELETE CASCADE,
    FOREIGN KEY (target_id) REFERENCES entities(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(type);

CREATE TABLE IF NOT EXISTS contradictions (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    property_key TEXT NOT NULL,
    old_value TEXT,
    new_value TEXT,
    old_sources TEXT,
    new_sources TEXT,
    old_confidence REAL NOT NULL DEFAULT 0,
    new_confidence REAL NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'unresolved',
    resolved_value TEXT,
    created_at TIMESTAMP NOT NULL,
    resolved_at TIMESTAMP,
    FOREIGN KEY (entity_id) REFERENCES entities(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_contradictions_entity ON contradictions(entity_id);
CREATE INDEX IF NOT EXISTS idx_contradictions_status ON contradictions(status);

CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    timestamp TIMESTAMP NOT NULL,
    content TEXT NOT NULL,
    importance REAL NOT NULL DEFAULT 0.5,
    context TEXT,
    source TEXT,
    tags TEXT,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_memories_timestamp ON memories(timestamp);
CREATE INDEX IF NOT EXISTS idx_memories_source ON memories(source);

CREATE TABLE IF NOT EXISTS embeddings (
    namespace TEXT NOT NULL,
    key TEXT NOT NULL,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    text TEXT,
    metadata TEXT,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (namespace, key)
);

CREATE INDEX IF NOT EXISTS idx_embeddings_namespace ON embeddings(namespace);
`
