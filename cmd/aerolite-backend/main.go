package main

import (
	"log"

	"aerolite/backend/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("aerolite backend failed: %v", err)
	}
}
