package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Global flags
	apiURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "full":
		fullCmd(apiURL, args)
	case "populate":
		populateCmd(apiURL, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Auction Simulator - Development tool for exercising a Calcutta auction

USAGE:
  simulator <command> [options]

COMMANDS:
  full      Create a session, add bidders and auction every team
  populate  Add fake bidders to an existing session
  help      Show this help message

ENVIRONMENT:
  API_URL   Backend API URL (default: http://localhost:8080)

EXAMPLES:
  # Auction every team of a seeded tournament with 6 bidders
  simulator full --tournament=ncaa-2025 --bidders=6

  # Leave the session in the lobby so you can join before it starts
  simulator full --tournament=ncaa-2025 --lobby-only

  # Add 4 bidders to an existing session
  simulator populate --session=ABC123 --count=4`)
}

type bidder struct {
	name  string
	token string
	// appetite scales the fair value this bidder is willing to pay
	appetite float64
}

func fullCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("full", flag.ExitOnError)
	tournamentID := fs.String("tournament", "", "Tournament ID (required)")
	count := fs.Int("bidders", 4, "Number of fake bidders")
	pot := fs.Int64("pot", 10000, "Estimated pot size")
	timer := fs.Int("timer", 0, "Bidding timer in seconds (0 disables it)")
	lobbyOnly := fs.Bool("lobby-only", false, "Stop after populating the lobby")
	fs.Parse(args)

	if *tournamentID == "" {
		fmt.Println("Error: --tournament is required")
		os.Exit(1)
	}
	if *count < 1 {
		fmt.Println("Error: --bidders must be at least 1")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)

	fmt.Println("=== Auction Simulator: Full Flow ===")
	fmt.Println()

	// 1. Create session with a commissioner
	fmt.Print("Creating commissioner and session... ")
	commish, commishToken, err := client.RegisterUser("Commish")
	if err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	session, err := client.CreateSession(commishToken, *tournamentID, decimal.NewFromInt(*pot), *timer)
	if err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK (user: %s)\n", commish.DisplayName)
	fmt.Printf("  Session created: %s (code: %s, %d teams)\n", session.ID, session.JoinCode, len(session.TeamOrder))

	// 2. Create and join bidders
	fmt.Println()
	fmt.Printf("Adding %d bidders:\n", *count)
	bidders := make([]bidder, 0, *count)
	for i := 0; i < *count; i++ {
		user, token, err := client.RegisterUser(fmt.Sprintf("Bidder%d", i+1))
		if err != nil {
			fmt.Printf("  [%d/%d] FAILED to create user: %v\n", i+1, *count, err)
			os.Exit(1)
		}
		if err := client.JoinSession(token, session.JoinCode); err != nil {
			fmt.Printf("  [%d/%d] FAILED to join: %v\n", i+1, *count, err)
			os.Exit(1)
		}
		bidders = append(bidders, bidder{
			name:     user.DisplayName,
			token:    token,
			appetite: 0.6 + rand.Float64()*0.8,
		})
		fmt.Printf("  [%d/%d] %s joined\n", i+1, *count, user.DisplayName)
	}

	if *lobbyOnly {
		fmt.Println()
		fmt.Println("=========================================")
		fmt.Println("  SESSION WAITING IN LOBBY")
		fmt.Println("=========================================")
		fmt.Println()
		fmt.Printf("  Join Code:  %s\n", session.JoinCode)
		fmt.Printf("  Session ID: %s\n", session.ID)
		fmt.Println()
		return
	}

	valuations, err := client.GetValuations(commishToken, session.ID)
	if err != nil {
		fmt.Printf("Failed to load valuations: %v\n", err)
		os.Exit(1)
	}
	fairValues := make(map[string]decimal.Decimal, len(valuations.Teams))
	for _, v := range valuations.Teams {
		fairValues[v.TeamID] = v.FairValue
	}

	// 3. Auction every team
	fmt.Println()
	fmt.Print("Starting auction... ")
	if _, err := client.Transition(commishToken, session.ID, "start"); err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
	fmt.Println()

	for _, teamID := range session.TeamOrder {
		if _, err := client.Transition(commishToken, session.ID, "open"); err != nil {
			fmt.Printf("  %-20s FAILED to open: %v\n", teamID, err)
			os.Exit(1)
		}

		accepted, err := runBidding(client, session.ID, bidders, fairValues[teamID])
		if err != nil {
			fmt.Printf("  %-20s bidding error: %v\n", teamID, err)
		}

		closed, err := client.Transition(commishToken, session.ID, "close")
		if err != nil {
			fmt.Printf("  %-20s FAILED to close: %v\n", teamID, err)
			os.Exit(1)
		}

		action := "skip"
		if closed.CurrentHighestBid.IsPositive() {
			action = "sell"
		}
		if _, err := client.Transition(commishToken, session.ID, action); err != nil {
			fmt.Printf("  %-20s FAILED to %s: %v\n", teamID, action, err)
			os.Exit(1)
		}

		if action == "sell" {
			fmt.Printf("  %-20s SOLD  $%s (fair $%s, %d bids accepted)\n", teamID, closed.CurrentHighestBid.StringFixed(2), fairValues[teamID].StringFixed(2), accepted)
		} else {
			fmt.Printf("  %-20s SKIP  no bids\n", teamID)
		}
	}

	// 4. Print settlement
	settlement, err := client.GetSettlement(commishToken, session.ID)
	if err != nil {
		fmt.Printf("Failed to load settlement: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("=========================================")
	fmt.Println("  AUCTION COMPLETE")
	fmt.Println("=========================================")
	fmt.Println()
	fmt.Printf("  Pot: $%s\n", settlement.Pot.StringFixed(2))
	fmt.Println()
	for _, b := range settlement.Balances {
		fmt.Printf("  %-20s spent $%10s  net $%10s\n", b.DisplayName, b.TotalSpent.StringFixed(2), b.NetBalance.StringFixed(2))
	}
	fmt.Println()
	fmt.Printf("  Session ID: %s\n", session.ID)
	fmt.Println("  Record results with PUT /sessions/{id}/results to see payouts.")
	fmt.Println()
}

// runBidding lets every bidder raise concurrently until nobody is willing to
// go higher. Racing bids exercise the conditional high-bid write; losers
// simply see a conflict and try again above the new high.
func runBidding(client *APIClient, sessionID string, bidders []bidder, fairValue decimal.Decimal) (int, error) {
	increment := decimal.NewFromInt(5)
	accepted := make(chan struct{}, 1024)

	g, _ := errgroup.WithContext(context.Background())
	for _, b := range bidders {
		limit := fairValue.Mul(decimal.NewFromFloat(b.appetite)).Round(0)
		g.Go(func() error {
			amount := increment
			for amount.LessThanOrEqual(limit) {
				ok, err := client.PlaceBid(b.token, sessionID, amount)
				if err != nil {
					return err
				}
				if ok {
					accepted <- struct{}{}
				}
				amount = amount.Add(increment.Mul(decimal.NewFromInt(int64(1 + rand.Intn(3)))))
			}
			return nil
		})
	}
	err := g.Wait()
	close(accepted)

	n := 0
	for range accepted {
		n++
	}
	return n, err
}

func populateCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("populate", flag.ExitOnError)
	sessionCode := fs.String("session", "", "Session ID or join code (required)")
	count := fs.Int("count", 4, "Number of bidders to add")
	fs.Parse(args)

	if *sessionCode == "" {
		fmt.Println("Error: --session is required")
		fmt.Println("\nUsage: simulator populate --session=ABC123 [--count=4]")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)

	fmt.Printf("Adding %d bidders to session %s...\n\n", *count, *sessionCode)

	for i := 0; i < *count; i++ {
		user, token, err := client.RegisterUser(fmt.Sprintf("Bidder%d", i+1))
		if err != nil {
			fmt.Printf("  [%d/%d] FAILED to create user: %v\n", i+1, *count, err)
			continue
		}

		if err := client.JoinSession(token, *sessionCode); err != nil {
			fmt.Printf("  [%d/%d] FAILED to join: %v\n", i+1, *count, err)
			continue
		}

		fmt.Printf("  [%d/%d] %s joined\n", i+1, *count, user.DisplayName)
	}

	fmt.Println()
	fmt.Printf("Done! Join code: %s\n", *sessionCode)
}
