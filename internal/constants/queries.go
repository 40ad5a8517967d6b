package constants

// Statement names
const (
	StmtUpsertRecord = "upsert_record"
	StmtGetRecord    = "get_record"
	StmtDeleteRecord = "delete_record"
	StmtListRecords  = "list_records"
	StmtCountRecords = "count_records"
)

// PostgresQueries holds the record statements for PostgreSQL.
// updated_at always advances by at least one microsecond on conflict, so
// created_at = updated_at in the RETURNING row means the row was inserted.
var PostgresQueries = map[string]string{
	StmtUpsertRecord: `
		INSERT INTO records (id, value, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE
		SET value = EXCLUDED.value,
			updated_at = GREATEST(EXCLUDED.updated_at, records.updated_at + INTERVAL '1 microsecond')
		RETURNING created_at, updated_at`,

	StmtGetRecord: `
		SELECT id, value, created_at, updated_at
		FROM records
		WHERE id = $1`,

	StmtDeleteRecord: `
		DELETE FROM records WHERE id = $1`,

	StmtListRecords: `
		SELECT id, value, created_at, updated_at
		FROM records
		ORDER BY id
		LIMIT $1 OFFSET $2`,

	StmtCountRecords: `
		SELECT COUNT(*) FROM records`,
}

// SQLiteQueries holds the record statements for SQLite. Timestamps are
// stored as unix microseconds.
var SQLiteQueries = map[string]string{
	StmtUpsertRecord: `
		INSERT INTO records (id, value, created_at, updated_at)
		VALUES (?1, ?2, ?3, ?3)
		ON CONFLICT (id) DO UPDATE
		SET value = excluded.value,
			updated_at = MAX(excluded.updated_at, records.updated_at + 1)
		RETURNING created_at, updated_at`,

	StmtGetRecord: `
		SELECT id, value, created_at, updated_at
		FROM records
		WHERE id = ?1`,

	StmtDeleteRecord: `
		DELETE FROM records WHERE id = ?1`,

	StmtListRecords: `
		SELECT id, value, created_at, updated_at
		FROM records
		ORDER BY id
		LIMIT ?1 OFFSET ?2`,

	StmtCountRecords: `
		SELECT COUNT(*) FROM records`,
}
