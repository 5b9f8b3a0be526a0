package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pantrychef/livecoach/internal/app"
)

func main() {
	application, err := app.NewApp()
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Tear down audio streams and temp files on SIGINT/SIGTERM.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		if err := application.Cleanup(); err != nil {
			log.Printf("Error during cleanup: %v", err)
		}
		os.Exit(0)
	}()

	if err := application.Run(); err != nil {
		application.Cleanup()
		log.Fatalf("Application error: %v", err)
	}

	if err := application.Cleanup(); err != nil {
		log.Printf("Error during cleanup: %v", err)
	}
}
