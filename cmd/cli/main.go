package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/covid-award-summary/internal/backend"
	"github.com/dvloznov/covid-award-summary/internal/config"
	"github.com/dvloznov/covid-award-summary/internal/export"
	"github.com/dvloznov/covid-award-summary/internal/logger"
	"github.com/dvloznov/covid-award-summary/internal/pipeline"
	"github.com/dvloznov/covid-award-summary/internal/recipient"
	"github.com/dvloznov/covid-award-summary/internal/store"
	"github.com/dvloznov/covid-award-summary/internal/summary"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "refresh":
		runRefresh()
	case "backfill":
		runBackfill()
	case "inspect":
		runInspect()
	case "fingerprint":
		runFingerprint()
	case "resolve":
		runResolve()
	case "export":
		runExport()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("COVID-19 Award Summary CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  refresh      Rebuild and publish the award financial summary")
	fmt.Println("  backfill     Seed the recipient lookup table for unidentified recipients")
	fmt.Println("  inspect      Build the summary without publishing and print it")
	fmt.Println("  fingerprint  Print the content fingerprint of a fresh build")
	fmt.Println("  resolve      Print the fallback recipient hash for identifying fields")
	fmt.Println("  export       Build the summary and upload it to Cloud Storage as NDJSON")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// commonFlags registers the flags every backend-backed command shares.
func commonFlags(fs *flag.FlagSet) (envFile *string, timeout *time.Duration) {
	envFile = fs.String("env", ".env", "Optional dotenv file")
	timeout = fs.Duration("timeout", 30*time.Minute, "Command deadline")
	return envFile, timeout
}

// openStore loads configuration and opens the configured backend.
func openStore(envFile string, timeout time.Duration) (context.Context, context.CancelFunc, store.Store, zerolog.Logger) {
	ctx, cancel, st, log, _ := openStoreWithConfig(envFile, timeout)
	return ctx, cancel, st, log
}

func openStoreWithConfig(envFile string, timeout time.Duration) (context.Context, context.CancelFunc, store.Store, zerolog.Logger, *config.Config) {
	cfg, err := config.Load(envFile)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = logger.WithContext(ctx, log)

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to open backend")
	}
	return ctx, cancel, st, log, cfg
}

func runRefresh() {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	envFile, timeout := commonFlags(fs)
	fs.Parse(os.Args[2:])

	ctx, cancel, st, log := openStore(*envFile, *timeout)
	defer cancel()
	defer st.Close()

	res, err := pipeline.RunRefresh(ctx, st)
	if err != nil {
		log.Fatal().Err(err).Msg("Refresh failed")
	}
	printRunResult(os.Stdout, res)
}

func runBackfill() {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	envFile, timeout := commonFlags(fs)
	fs.Parse(os.Args[2:])

	ctx, cancel, st, log := openStore(*envFile, *timeout)
	defer cancel()
	defer st.Close()

	res, err := pipeline.RunBackfill(ctx, st)
	if err != nil {
		log.Fatal().Err(err).Msg("Backfill failed")
	}
	printRunResult(os.Stdout, res)
}

func runInspect() {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	envFile, timeout := commonFlags(fs)
	awardID := fs.Int64("award-id", 0, "Only show this award")
	limit := fs.Int("limit", 20, "Maximum rows to print (0 for all)")
	format := fs.String("format", "table", "Output format: table or ndjson")
	fs.Parse(os.Args[2:])

	ctx, cancel, st, log := openStore(*envFile, *timeout)
	defer cancel()
	defer st.Close()

	snap, err := st.ReadSnapshot(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read snapshot")
	}
	rows, err := summary.Build(snap)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build summary")
	}
	if err := summary.Verify(rows); err != nil {
		log.Warn().Err(err).Msg("Summary failed verification and would not be published")
	}

	rows = selectRows(rows, *awardID, *limit)
	switch *format {
	case "table":
		printSummaryTable(os.Stdout, snap.AsOf, rows)
	case "ndjson":
		if err := summary.WriteNDJSON(os.Stdout, rows); err != nil {
			log.Fatal().Err(err).Msg("Failed to write rows")
		}
	default:
		log.Fatal().Str("format", *format).Msg("Unknown format")
	}
}

func runFingerprint() {
	fs := flag.NewFlagSet("fingerprint", flag.ExitOnError)
	envFile, timeout := commonFlags(fs)
	fs.Parse(os.Args[2:])

	ctx, cancel, st, log := openStore(*envFile, *timeout)
	defer cancel()
	defer st.Close()

	snap, err := st.ReadSnapshot(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read snapshot")
	}
	rows, err := summary.Build(snap)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build summary")
	}
	fp, err := summary.Fingerprint(rows)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fingerprint summary")
	}
	fmt.Printf("%s  rows=%d  as_of=%s\n", fp, len(rows), snap.AsOf.UTC().Format(time.RFC3339))
}

func runResolve() {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	duns := fs.String("duns", "", "Business identifier (DUNS)")
	uei := fs.String("uei", "", "Unique entity identifier")
	name := fs.String("name", "", "Legal business name")
	fs.Parse(os.Args[2:])

	printResolve(os.Stdout, recipient.Fields{
		BusinessIdentifier: *duns,
		UEI:                *uei,
		LegalName:          *name,
	})
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	envFile, timeout := commonFlags(fs)
	bucket := fs.String("bucket", "", "GCS bucket (defaults to GCS_EXPORT_BUCKET)")
	verify := fs.Bool("verify", true, "Read the object back and compare it with what was written")
	fs.Parse(os.Args[2:])

	ctx, cancel, st, log, cfg := openStoreWithConfig(*envFile, *timeout)
	defer cancel()
	defer st.Close()

	if *bucket == "" {
		*bucket = cfg.ExportBucket
	}
	if *bucket == "" {
		log.Fatal().Msg("Error: -bucket or GCS_EXPORT_BUCKET is required")
	}

	snap, err := st.ReadSnapshot(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read snapshot")
	}
	rows, err := summary.Build(snap)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build summary")
	}
	if err := summary.Verify(rows); err != nil {
		log.Fatal().Err(err).Msg("Summary failed verification")
	}

	var buf bytes.Buffer
	if err := summary.WriteNDJSON(&buf, rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode rows")
	}
	written := buf.Bytes()

	objects, err := export.NewGCSStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer objects.Close()

	object := export.ObjectName(cfg.SummaryTable, snap.AsOf, uuid.NewString())
	uri, err := objects.Upload(ctx, *bucket, object, bytes.NewReader(written))
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	if *verify {
		got, err := objects.Fetch(ctx, uri)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read export back")
		}
		if !bytes.Equal(got, written) {
			log.Fatal().Str("gcs_uri", uri).Int("want_bytes", len(written)).Int("got_bytes", len(got)).Msg("Export does not match what was written")
		}
	}

	fmt.Printf("Exported %d rows to %s\n", len(rows), uri)
}
