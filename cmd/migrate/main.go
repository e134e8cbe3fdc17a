package main

import (
	"log"

	tool "github.com/urbanloom/storefront/internal/tools/migrate"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
