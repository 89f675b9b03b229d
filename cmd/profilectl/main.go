package main

import (
	"os"

	"github.com/zhouzirui/profile-service/backend/cmd/profilectl/commands"
)

var version = "dev"

func main() {
	commands.SetVersion(version)
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
