package main

import (
	"fmt"

	"github.com/pevans/newsvote"
)

// printArticleTable prints articles in human-readable form.
func printArticleTable(articles []newsvote.Article, total, offset int) {
	if len(articles) == 0 {
		fmt.Println("No articles to display.")
		return
	}

	fmt.Printf("Showing %d-%d of %d articles\n\n", offset+1, offset+len(articles), total)

	for _, article := range articles {
		fmt.Printf("%s\n", truncate(article.Headline, 70))
		fmt.Printf("   %s | %s | Submitted: %s\n",
			article.Author,
			article.State,
			article.CreatedAt.Format("2006-01-02 15:04"),
		)
		if body := truncate(article.Body, 150); body != "" {
			fmt.Printf("   %s\n", body)
		}
		fmt.Printf("   ID: %s\n", article.ID.String())
		fmt.Println()
	}
}

// printPendingTable prints pending articles with their vote tallies.
func printPendingTable(pending []newsvote.PendingArticle) {
	if len(pending) == 0 {
		fmt.Println("No articles awaiting moderation.")
		return
	}

	for _, item := range pending {
		fmt.Printf("%s\n", truncate(item.Headline, 70))
		fmt.Printf("   %s | Submitted: %s\n",
			item.Author,
			item.CreatedAt.Format("2006-01-02 15:04"),
		)
		fmt.Printf("   Votes: %d approve / %d disapprove (%.1f%% approval)\n",
			item.Tally.Approvals, item.Tally.Disapprovals, item.ApprovalRate)
		fmt.Printf("   ID: %s\n", item.ID.String())
		fmt.Println()
	}
}

// truncate shortens a string for table display.
func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
