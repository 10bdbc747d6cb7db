package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

func main() {
	cfg := loadConfig()
	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "import":
			runImport(cfg, log, os.Args[2:])
			return
		case "verify":
			runVerify(cfg, log)
			return
		case "index":
			runIndex(cfg, log)
			return
		case "suggest":
			runSuggest(cfg, log, os.Args[2:])
			return
		case "help":
			printUsage()
			return
		}
	}
	runServe(cfg, log)
}

func printUsage() {
	fmt.Println("Usage: interaction-checker [command]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  (no args)  Start the HTTP server")
	fmt.Println("  import     Import interaction records: import -file interactions.csv [-format csv|sql] [-resume-after N]")
	fmt.Println("  verify     Run post-import invariant checks")
	fmt.Println("  index      Push the reference catalog into Meilisearch")
	fmt.Println("  suggest    Try autocomplete from the CLI: suggest \"omega\"")
	fmt.Println("  help       Show this help message")
}

func connectDB(cfg Config) (*sql.DB, error) {
	return sql.Open("postgres", cfg.DatabaseURL)
}

func runImport(cfg Config, log *zap.SugaredLogger, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "path to the interactions source (CSV or SQL VALUES dump)")
	format := fs.String("format", "", "source format: csv or sql (default: by file extension)")
	resumeAfter := fs.Int("resume-after", cfg.ResumeAfter, "skip batches up to and including this ordinal")
	_ = fs.Parse(args)

	if *file == "" {
		log.Fatal("import requires -file")
	}
	cfg.ResumeAfter = *resumeAfter

	src, err := os.Open(*file)
	if err != nil {
		log.Fatalf("failed to open source: %v", err)
	}
	defer src.Close()

	db, err := connectDB(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	catalog, err := LoadCatalog(ctx, db)
	if err != nil {
		log.Fatalf("failed to load catalog: %v", err)
	}

	pipeline := NewPipeline(cfg, NewPostgresStore(db), log)
	report := pipeline.Run(ctx, src, sourceFormatFor(*file, *format), catalog)

	printJSON(report)

	if report.Failed {
		os.Exit(1)
	}
	if report.Verification != nil && !report.Verification.Pass {
		log.Warn("import applied but verification failed")
		os.Exit(1)
	}
}

func runVerify(cfg Config, log *zap.SugaredLogger) {
	db, err := connectDB(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	report := NewVerifier(NewPostgresStore(db), cfg.Thresholds).Verify(context.Background())
	printJSON(report)

	if !report.Pass {
		os.Exit(1)
	}
}

func runIndex(cfg Config, log *zap.SugaredLogger) {
	db, err := connectDB(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	catalog, err := LoadCatalog(context.Background(), db)
	if err != nil {
		log.Fatalf("failed to load catalog: %v", err)
	}

	if err := indexCatalogToMeili(catalog, cfg.MeiliURL, cfg.MeiliAPIKey, log); err != nil {
		log.Fatalf("indexing failed: %v", err)
	}
}

func runSuggest(cfg Config, log *zap.SugaredLogger, args []string) {
	query := "omega"
	if len(args) > 0 {
		query = args[0]
	}

	db, err := connectDB(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	catalog, err := LoadCatalog(context.Background(), db)
	if err != nil {
		log.Fatalf("failed to load catalog: %v", err)
	}

	suggestions := NewSuggestIndex(catalog).Suggest("", query, 10)
	fmt.Printf("%d suggestions for %q:\n", len(suggestions), query)
	for i, s := range suggestions {
		fmt.Printf("  %d. %s (%s)\n", i+1, s.Name, s.Kind)
	}
}

func runServe(cfg Config, log *zap.SugaredLogger) {
	db, err := connectDB(cfg)
	if err != nil {
		log.Warnf("failed to connect to database: %v", err)
		db = nil
	} else {
		defer db.Close()
	}

	catalog := NewCatalog(nil, nil, nil, nil)
	if db != nil {
		loaded, err := LoadCatalog(context.Background(), db)
		if err != nil {
			log.Warnf("failed to load catalog, autocomplete will be empty: %v", err)
		} else {
			catalog = loaded
			log.Infow("catalog loaded",
				"supplements", catalog.Len(KindSupplement),
				"medications", catalog.Len(KindMedication),
			)
		}
	}

	srv := newServer(db, catalog, cfg, log)
	if err := srv.listenAndServe(); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}

func sourceFormatFor(file, override string) SourceFormat {
	switch strings.ToLower(override) {
	case "csv":
		return FormatCSV
	case "sql":
		return FormatSQLValues
	}
	if strings.HasSuffix(strings.ToLower(file), ".sql") {
		return FormatSQLValues
	}
	return FormatCSV
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to render report: %v\n", err)
		return
	}
	fmt.Println(string(b))
}
