package main

import (
	"TgFM/cmd"
	"log"
)

func main() {
	cmd.Execute()
	// If Execute() had a problem, Cobra would have called os.Exit.
	// Reaching here means the command completed (or the long-running
	// bot shut down cleanly).
	log.Println("Application command execution finished.")
}
