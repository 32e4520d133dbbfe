package main

import (
	"fmt"
	"os"

	"github.com/pevans/newsvote"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func printUsage() {
	fmt.Println("newsvote -- Moderate crowd-voted news articles from the terminal")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsvote <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  submit     Submit a new article for moderation")
	fmt.Println("  vote       Vote to approve or disapprove a pending article")
	fmt.Println("  pending    List articles awaiting moderation")
	fmt.Println("  approved   List approved articles")
	fmt.Println("  search     Search approved articles")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  NEWSVOTE_DSN   Database path (default: newsvote.db)")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	dsn := getEnv("NEWSVOTE_DSN", "newsvote.db")

	subcommand := os.Args[1]

	switch subcommand {
	case "submit":
		handleSubmit(dsn, os.Args[2:])
	case "vote":
		handleVote(dsn, os.Args[2:])
	case "pending":
		handlePending(dsn, os.Args[2:])
	case "approved":
		handleApproved(dsn, os.Args[2:])
	case "search":
		handleSearch(dsn, os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

// openSystem opens the store and builds the engine and query surface over it.
// The caller must Close the returned store.
func openSystem(dsn string) (*newsvote.Store, *newsvote.Engine, *newsvote.QueryService) {
	store, err := newsvote.NewStore(dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open store: %v\n", err)
		os.Exit(1)
	}

	engine, err := newsvote.NewEngine(store, newsvote.DefaultPolicy())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return store, engine, newsvote.NewQueryService(store)
}
