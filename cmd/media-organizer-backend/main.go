package main

import (
	"os"

	"media-organizer/cmd/media-organizer-backend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
