package main

import (
	"context"
	"log"
	"os"
	"time"

	jimmy "github.com/st-keller/jimmy-client"
	"github.com/st-keller/jimmy-client/apitest"
	"github.com/st-keller/jimmy-client/diag"
	"github.com/st-keller/jimmy-client/sink"
	"github.com/st-keller/jimmy-client/types"
)

func main() {
	log.Println("🚀 Starting jimmy-client example against a local demo backend")

	// Demo backend: question 42 sits at position 25, then gets answered
	backend := apitest.New()
	backend.DoubleEncode = true
	backend.SetQuestion(42, "What is the answer to life, the universe and everything?")
	backend.SetStatus(42,
		apitest.Pending(25),
		apitest.Answered("42", types.Link{Title: "Hitchhiker's Guide", URL: "https://example.com/hhgttg"}),
	)
	backend.SetRecents(types.RecentItem{Type: "search", Text: "Is water wet?", Answer: "Depends who you ask."})
	baseURL := backend.Start()
	defer backend.Close()

	logger, closer, err := diag.NewLogger("", "info")
	if err != nil {
		log.Fatalf("❌ Failed to create logger: %v", err)
	}
	defer closer.Close()

	// Print every event, and stop once the answer arrives
	rec := sink.NewRecorder()
	printer := sink.NewWriter(os.Stdout)

	client, err := jimmy.New(jimmy.Config{
		BaseURL: baseURL,
		Version: "1.0.0",
		Logger:  logger,
	}, sink.Multi{printer, rec})
	if err != nil {
		log.Fatalf("❌ Failed to create jimmy client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	// Example 1: recently answered searches
	log.Println("📝 Example 1: Recent answers")
	recent, err := client.Recent(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to load recent answers: %v", err)
	}
	for _, item := range recent {
		log.Printf("   Q: %s / A: %s", item.Text, item.Answer)
	}

	// Example 2: search and wait. Position 25 means the next check is due in
	// (25+1)*5s = 130s, so the escalation offer is shown first.
	log.Println("🔎 Example 2: Search")
	if err := client.Search(ctx, 42); err != nil {
		log.Fatalf("❌ Search failed: %v", err)
	}

	for deadline := time.Now().Add(5 * time.Second); len(rec.ProgressEvents()) == 0 && time.Now().Before(deadline); {
		time.Sleep(50 * time.Millisecond)
	}

	// Example 3: pay to skip the queue; the next check answers right away
	log.Println("💳 Example 3: Bump")
	if err := client.Bump(ctx, 42, "tok_demo"); err != nil {
		log.Printf("⚠️  Bump failed: %v", err)
	}
	if err := client.Scheduler().Refresh(42, false); err != nil {
		log.Printf("⚠️  Refresh failed: %v", err)
	}

	select {
	case <-rec.Answered():
		log.Println("✅ Answer received")
	case <-time.After(10 * time.Second):
		log.Println("⏱️  Gave up waiting")
	}

	// Example 4: diagnostics
	log.Println("🔗 Example 4: Connectivity")
	for _, ep := range client.Connectivity().Stats() {
		log.Printf("   %s: %s, %d calls, p50 %s", ep.Name, ep.Status, ep.Total, ep.P50)
	}
	stats := client.Logs().Stats()
	log.Printf("   logs: %d entries (%d warnings, %d errors)", stats.Total, stats.Warnings, stats.Errors)
}
