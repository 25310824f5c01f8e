// Package main provides the cfihos command line tool.
//
// The CLI supports:
//   - build: Compile the configured sources into a container or view model
//   - validate: Load and group the sources without emitting a model
//   - scopes: List configured scopes and what they resolve to
//   - status: Show recorded runs from the ledger
//   - doctor: Run health checks on sources, scopes and the ledger
//
// Commands that touch the ledger (status, build --record) need ledger
// settings in cfihos.yaml or --db.
//
// Usage:
//
//	cfihos [flags] <command>
package main

func main() {
	Execute()
}
