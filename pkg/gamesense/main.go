package gamesense

import (
	"context"
)

// Main runs the gamesense CLI with args (without the program name). It can be
// called from tests without building the binary.
//
// # Environment Variables
//
// Settings from the config file are overridden by:
//
//	GAMESENSE_DOCUMENT_DRIVER - postgres, sqlite or memory (default: postgres)
//	GAMESENSE_DOCUMENT_DSN    - document store connection string
//	GAMESENSE_GRAPH_DRIVER    - surrealdb, neo4j or memory (default: surrealdb)
//	GAMESENSE_GRAPH_URL       - graph store URL (default: ws://localhost:8000/rpc)
//	GAMESENSE_GRAPH_NS        - SurrealDB namespace (default: gamesense)
//	GAMESENSE_GRAPH_DB        - graph database name (default: graph)
//	GAMESENSE_GRAPH_USER      - graph store username (default: root)
//	GAMESENSE_GRAPH_PASS      - graph store password (default: root)
//	GAMESENSE_DLQ_BACKEND     - document, badger or memory (default: document)
//	GAMESENSE_DLQ_DIR         - badger directory
//	GAMESENSE_ADDR            - admin server listen address (default: :8080)
//	GAMESENSE_LOG_LEVEL       - debug, info, warn or error (default: info)
//
// Command line flags override both.
func Main(ctx context.Context, args []string) error {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
