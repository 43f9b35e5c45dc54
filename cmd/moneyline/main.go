package main

import (
	"os"
	_ "time/tzdata"

	"github.com/KevinGoltermann/moneyline-sub000/cmd/moneyline/commands"
)

// main is the entry point for the moneyline CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/moneyline [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
