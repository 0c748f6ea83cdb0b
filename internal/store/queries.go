package store

// queries holds the statements that differ between dialects.
type queries struct {
	readBlock   string
	advance     string
	insertIfNew string
	setSize     string
	get         string
	list        string
}

func queriesFor(d Dialect) queries {
	q := queries{
		readBlock: "SELECT next_block_start, block_size FROM sequence_counters WHERE name = ?",
		advance: "UPDATE sequence_counters SET next_block_start = ?, updated_seq = updated_seq + 1 " +
			"WHERE name = ? AND next_block_start < ?",
		insertIfNew: "INSERT INTO sequence_counters (name, next_block_start, block_size) VALUES (?, ?, ?) " +
			"ON CONFLICT(name) DO NOTHING",
		setSize: "UPDATE sequence_counters SET block_size = ? WHERE name = ?",
		get:     "SELECT name, next_block_start, block_size, updated_seq FROM sequence_counters WHERE name = ?",
		list:    "SELECT name, next_block_start, block_size, updated_seq FROM sequence_counters ORDER BY name ASC",
	}
	if d == DialectMySQL {
		// InnoDB: lock the row on read so concurrent reservations queue.
		q.readBlock += " FOR UPDATE"
		q.insertIfNew = "INSERT IGNORE INTO sequence_counters (name, next_block_start, block_size) VALUES (?, ?, ?)"
	}
	return q
}
