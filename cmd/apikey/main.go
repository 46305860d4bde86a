package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/ManuelReschke/AgroCoop/app/repository"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/database"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/env"
)

// Issues or revokes a member API key. The raw key is printed once.
func main() {
	env.SetupEnvFile()

	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}

	id, err := strconv.ParseUint(os.Args[2], 10, 64)
	if err != nil || id == 0 {
		log.Fatalf("Invalid member id: %s", os.Args[2])
	}

	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())
	members := repository.GetGlobalFactory().GetMemberRepository()

	ctx := context.Background()
	member, err := members.GetByID(ctx, uint(id))
	if err != nil {
		log.Fatalf("Failed to load member %d: %v", id, err)
	}

	switch os.Args[1] {
	case "issue":
		raw, err := member.IssueAPIKey()
		if err != nil {
			log.Fatalf("Failed to generate API key: %v", err)
		}
		if err := members.Update(ctx, member); err != nil {
			log.Fatalf("Failed to store API key: %v", err)
		}
		log.Printf("Issued API key for member %d (%s, role %s)", member.ID, member.Email, member.Role)
		fmt.Println(raw)

	case "revoke":
		member.RevokeAPIKey()
		if err := members.Update(ctx, member); err != nil {
			log.Fatalf("Failed to revoke API key: %v", err)
		}
		log.Printf("Revoked API key for member %d", member.ID)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run cmd/apikey/main.go [command] [member-id]")
	fmt.Println("Commands:")
	fmt.Println("  issue  - Generate a new API key and print it")
	fmt.Println("  revoke - Remove the member's API key")
}
