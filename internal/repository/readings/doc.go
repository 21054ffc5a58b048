// Package readings is the retention-bounded reading store.
//
// Every successful Store inserts one reading and evicts everything older
// than the retention window as a single atomic step. MemoryRepository does
// this under one write lock, PostgresRepository inside one transaction.
package readings
