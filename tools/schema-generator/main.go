package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/booth/config"
	"github.com/grovetools/booth/logging"
	"github.com/grovetools/booth/schema"
)

func main() {
	base, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}
	logSchema, err := logging.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating logging schema: %v", err)
	}
	composed, err := schema.Compose(base, map[string][]byte{"logging": logSchema})
	if err != nil {
		log.Fatalf("Error composing schema: %v", err)
	}

	outputDir := "schema"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	outputPath := filepath.Join(outputDir, "booth.schema.json")
	if err := os.WriteFile(outputPath, composed, 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}

	log.Printf("Successfully generated schema at %s", outputPath)
}
