package main

import (
	"os"

	"github.com/JonMunkholm/coursedesk/cmd/coursedesk/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
