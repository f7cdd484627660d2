// Package gamesense wires the stores, the consistency coordinator and the
// reconciliation services into one application, and exposes them through a
// cobra CLI and an admin HTTP server.
//
// # Usage Example
//
//	gamesense --document-driver sqlite --document-dsn gamesense.db \
//		--graph-driver surrealdb --graph-url ws://localhost:8000/rpc migrate
//	gamesense serve --monitor
//	gamesense check --strict
//	gamesense dlq list
//	gamesense dlq replay --limit 50
package gamesense
