package main

import (
	"log"

	"github.com/smartmark/smartmark/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ smartmarkd failed to start: %v", err)
	}
}
