// Package persistence provides durable snapshot storage for the vector store.
//
// Three drivers implement vectorstore.Persistence:
//   - file: a single JSON document (optionally gzip-compressed), replaced
//     atomically with a temp file, fsync and rename
//   - sqlite: one row per entry, replaced inside a single transaction
//   - redis: a single JSON value under one key, replaced with SET
//
// Every driver writes the whole snapshot on each save and reads it whole on
// startup. A missing snapshot loads as an empty store.
package persistence
