// Package stores persists compile history in SQLite.
// Each recorded run keeps its summary, the emitted wiring plans, per-component
// failures and plan diagnostics. The schema is managed by embedded
// golang-migrate migrations.
package stores
