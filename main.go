package main

import (
	"github.com/happytube/tmdbsync/internal/cmd"
)

func main() {
	cmd.Execute()
}
