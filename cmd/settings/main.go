package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/app/repository"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/database"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/env"
)

// Reads and changes the runtime settings stored in the settings table.
// Running instances pick up changes on their next restart.
func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())
	settings := repository.GetGlobalFactory().GetRepositories().Setting

	switch os.Args[1] {
	case "list":
		current, err := settings.Get()
		if err != nil {
			log.Fatalf("Failed to load settings: %v", err)
		}
		out, err := current.ToJSON()
		if err != nil {
			log.Fatalf("Failed to encode settings: %v", err)
		}
		fmt.Println(string(out))

	case "get":
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(1)
		}
		value, err := settings.GetValue(os.Args[2])
		if err != nil {
			log.Fatalf("Failed to read %s: %v", os.Args[2], err)
		}
		fmt.Println(value)

	case "set":
		if len(os.Args) < 4 {
			printUsage()
			os.Exit(1)
		}
		key, value := os.Args[2], os.Args[3]
		if models.IsIntegerSetting(key) {
			if _, err := strconv.Atoi(value); err != nil {
				log.Fatalf("%s expects an integer, got %q", key, value)
			}
		}
		if err := settings.SetValue(key, value); err != nil {
			log.Fatalf("Failed to store %s: %v", key, err)
		}
		current, err := settings.Get()
		if err == nil {
			if err := current.Validate(); err != nil {
				log.Printf("Warning: settings are out of range and fall back to defaults where possible: %v", err)
			}
		}
		log.Printf("Set %s = %s", key, value)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run cmd/settings/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  list              - Print all settings as JSON")
	fmt.Println("  get <key>         - Print one stored value")
	fmt.Println("  set <key> <value> - Store a value")
}
