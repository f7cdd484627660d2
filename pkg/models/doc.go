// Package models holds the entities shared by both stores of gamesense.
//
// Document entities ([User], [Game], [ActivityLog], [DeadLetter]) are the canonical
// records. Graph entities ([UserNode], [GameNode], [TeamNode]) and edges
// ([GameOwnership], [TeamFollow], [UserFollow]) are projections that reference
// document entities by id.
//
// # Typed IDs
//
// [UserID], [GameID] and [TeamID] wrap a UUID and know how to travel through every
// backend:
//   - JSON: a plain UUID string
//   - SQL: a uuid column in PostgreSQL, text in sqlite
//   - SurrealDB: a RecordID (CBOR tag 8 holding [table, id]) such as users:⟨uuid⟩
//
// Because the graph node id is the document id, a node can never point at more
// than one document entity, and SurrealQL parameters take the typed id directly:
//
//	surrealdb.Query[any](ctx, db, "SELECT * FROM $user", map[string]any{
//		"user": userID.RecordID(),
//	})
package models
