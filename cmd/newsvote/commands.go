package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/pevans/newsvote"
)

func handleSubmit(dsn string, args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	headline := fs.String("headline", "", "article headline (required)")
	body := fs.String("body", "", "article body (required)")
	author := fs.String("author", "", "article author")
	fs.Parse(args)

	store, engine, _ := openSystem(dsn)
	defer store.Close()

	article, created, err := engine.Submit(*headline, *body, *author)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if created {
		fmt.Printf("Submitted article %s (pending moderation)\n", article.ID)
	} else {
		fmt.Printf("Identical article already exists: %s (state: %s)\n", article.ID, article.State)
	}
}

func handleVote(dsn string, args []string) {
	fs := flag.NewFlagSet("vote", flag.ExitOnError)
	voter := fs.String("voter", "", "voter identity (required)")
	action := fs.String("action", "", "approve or disapprove (required)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: article ID is required\n")
		fmt.Fprintf(os.Stderr, "Usage: newsvote vote -voter <name> -action <approve|disapprove> <article-id>\n")
		os.Exit(1)
	}

	id, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid article ID: %v\n", err)
		os.Exit(1)
	}

	act, ok := newsvote.ParseAction(*action)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: action must be 'approve' or 'disapprove'\n")
		os.Exit(1)
	}

	store, engine, _ := openSystem(dsn)
	defer store.Close()

	result, err := engine.CastVote(id, *voter, act)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Vote recorded. Tally: %d approve / %d disapprove (%.1f%% approval)\n",
		result.Tally.Approvals, result.Tally.Disapprovals, result.ApprovalRate)
	if result.Article.State != newsvote.StatePending {
		fmt.Printf("Article is now %s\n", result.Article.State)
	}
}

func handlePending(dsn string, args []string) {
	fs := flag.NewFlagSet("pending", flag.ExitOnError)
	limit := fs.Int("limit", 50, "maximum number of articles to show")
	offset := fs.Int("offset", 0, "number of articles to skip")
	fs.Parse(args)

	store, _, query := openSystem(dsn)
	defer store.Close()

	pending, err := query.ListPending(*limit, *offset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list pending articles: %v\n", err)
		os.Exit(1)
	}

	printPendingTable(pending)
}

func handleApproved(dsn string, args []string) {
	fs := flag.NewFlagSet("approved", flag.ExitOnError)
	limit := fs.Int("limit", 50, "maximum number of articles to show")
	offset := fs.Int("offset", 0, "number of articles to skip")
	fs.Parse(args)

	store, _, query := openSystem(dsn)
	defer store.Close()

	page, err := query.ListApproved(*limit, *offset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list approved articles: %v\n", err)
		os.Exit(1)
	}

	printArticleTable(page.Results, page.Total, page.Offset)
}

func handleSearch(dsn string, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	limit := fs.Int("limit", 50, "maximum number of articles to show")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: search term is required\n")
		fmt.Fprintf(os.Stderr, "Usage: newsvote search <term>\n")
		os.Exit(1)
	}

	store, _, query := openSystem(dsn)
	defer store.Close()

	page, err := query.Search(fs.Arg(0), *limit, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: search failed: %v\n", err)
		os.Exit(1)
	}

	printArticleTable(page.Results, page.Total, page.Offset)
}
