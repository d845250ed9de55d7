package main

import (
	"os"

	"github.com/wonny/helios/backend/cmd/helios/commands"
)

// main is the entry point for the Helios CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/helios [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
