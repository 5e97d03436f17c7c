// Command listingsctl manages the listing database directly. A running server
// picks up its writes on the next resync.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/docopt/docopt-go"
	"github.com/joho/godotenv"

	"github.com/imuhira/listings/internal/config"
	"github.com/imuhira/listings/internal/imagehost"
	"github.com/imuhira/listings/internal/storage"
	"github.com/imuhira/listings/internal/storage/models"
)

const CtlVersion = "0.1.0"

func main() {
	// .env is optional
	_ = godotenv.Load()
	defaults := config.FromEnv()

	opts, err := parseArgs(os.Args[1:], defaults.DataDir, printHelp)
	if err != nil {
		fail("invalid arguments: %v", err)
	}

	dataDir := defaults.DataDir
	if d, err := opts.String("--data"); err == nil && d != "" {
		dataDir = d
	}

	db, err := storage.OpenDataDir(dataDir)
	if err != nil {
		fail("opening database in %s: %v", dataDir, err)
	}
	defer db.Close()

	repo := storage.NewListingRepository(db)
	ctx := context.Background()

	switch {
	case flag(opts, "import"):
		file, _ := opts.String("<file>")
		err = importListings(ctx, repo, imagehost.NewPolicy(defaults.ImageHosts), file)
	case flag(opts, "list"):
		err = list(ctx, repo, opts)
	case flag(opts, "stats"):
		err = stats(ctx, repo)
	case flag(opts, "activate"):
		err = repo.SetActive(ctx, id(opts), true)
	case flag(opts, "deactivate"):
		err = repo.SetActive(ctx, id(opts), false)
	case flag(opts, "like"):
		var likes int
		likes, err = repo.Like(ctx, id(opts))
		if err == nil {
			fmt.Printf("%s now has %d like(s)\n", id(opts), likes)
		}
	case flag(opts, "delete"):
		err = repo.Delete(ctx, id(opts))
	}

	if err != nil {
		db.Close()
		fail("%v", err)
	}
}

func usage(dataDir string) string {
	return fmt.Sprintf(
		`Listings admin tool.

The default data directory is %s (LISTINGS_DATA_DIR).

Usage:
    listingsctl import <file> [--data=<dir>]
    listingsctl list [--kind=<kind>] [--all] [--data=<dir>]
    listingsctl stats [--data=<dir>]
    listingsctl activate <id> [--data=<dir>]
    listingsctl deactivate <id> [--data=<dir>]
    listingsctl like <id> [--data=<dir>]
    listingsctl delete <id> [--data=<dir>]

Options:
    -h --help          Show this screen.
    --version          Show version.
    --data=<dir>       Data directory holding the listing database.
    --kind=<kind>      Only listings of this type: rent or sale.
    --all              Include inactive listings.`,
		dataDir,
	)
}

// parseArgs parses argv against the usage text. Bad input is reported as an
// error after help has shown the usage.
func parseArgs(argv []string, dataDir string, help func(err error, usage string)) (docopt.Opts, error) {
	parser := &docopt.Parser{HelpHandler: help}
	return parser.ParseArgs(usage(dataDir), argv, CtlVersion)
}

// printHelp prints requested help or version and exits; on bad input it only
// prints the usage so the caller can fail with the error.
func printHelp(err error, usage string) {
	if err != nil {
		fmt.Fprintln(os.Stderr, usage)
		return
	}
	fmt.Println(usage)
	os.Exit(0)
}

func flag(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

func id(opts docopt.Opts) string {
	v, _ := opts.String("<id>")
	return v
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "listingsctl: "+format+"\n", args...)
	os.Exit(1)
}

// importListings reads a JSON array of listings and stores each one. Every
// record is validated before anything is written.
func importListings(ctx context.Context, repo *storage.ListingRepository, policy *imagehost.Policy, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	var listings []models.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return fmt.Errorf("decoding %s: %w", file, err)
	}

	for i := range listings {
		if err := listings[i].Validate(); err != nil {
			return fmt.Errorf("listing %d (%s): %w", i, listings[i].Title, err)
		}
		if err := policy.CheckAll(listings[i].Images); err != nil {
			return fmt.Errorf("listing %d (%s): %w", i, listings[i].Title, err)
		}
	}

	for i := range listings {
		listings[i].ID = ""
		if err := repo.Create(ctx, &listings[i]); err != nil {
			return fmt.Errorf("storing listing %d: %w", i, err)
		}
	}

	fmt.Printf("Imported %d listing(s)\n", len(listings))
	return nil
}

func list(ctx context.Context, repo *storage.ListingRepository, opts docopt.Opts) error {
	filter := models.ListingFilter{ActiveOnly: !flag(opts, "--all")}
	if k, err := opts.String("--kind"); err == nil && k != "" {
		kind, err := models.ParseListingKind(k)
		if err != nil {
			return err
		}
		filter.Kind = kind
	}

	listings, err := repo.List(ctx, filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tACTIVE\tPRICE\tLIKES\tIMAGES\tTITLE")
	for _, l := range listings {
		fmt.Fprintf(w, "%s\t%s\t%t\t%.0f\t%d\t%d\t%s\n",
			l.ID, l.Kind, l.IsActive, l.Price, l.LikeCount, len(l.Images), l.Title)
	}
	return w.Flush()
}

func stats(ctx context.Context, repo *storage.ListingRepository) error {
	counts, err := repo.CountByKind(ctx)
	if err != nil {
		return err
	}
	for _, c := range counts {
		fmt.Printf("%-6s %d\n", c.Kind.Label(), c.Count)
	}
	return nil
}
