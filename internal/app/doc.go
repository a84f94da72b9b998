// Package app composes the settlement layer into a running application.
//
// The package sits above the core packages and wires them together; it holds
// no business logic of its own. Settlement semantics live in
// internal/app/services/settlement.
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   └── settlement/     # Settlement record and status machine
//	├── dlock/              # Distributed lock manager (memory, redis)
//	├── idempotency/        # Idempotency key store (file, postgres)
//	├── ledger/             # Chain ledger interface and simulator
//	├── storage/            # Storage interfaces and implementations
//	│   ├── memory/         # In-memory implementation for tests
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic
//	│   └── settlement/     # Settlement engine and worker pool
//	├── httpapi/            # REST handlers and routing
//	├── system/             # Service lifecycle management
//	└── metrics/            # Prometheus collectors
//
// Dependency direction: cmd/settlementd -> internal/app -> services -> storage.
package app
