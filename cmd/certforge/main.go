package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/certforge/certforge/internal/api"
	"github.com/certforge/certforge/internal/batch"
	"github.com/certforge/certforge/internal/config"
	"github.com/certforge/certforge/internal/cron"
	"github.com/certforge/certforge/internal/engine"
	"github.com/certforge/certforge/internal/store"
	"github.com/certforge/certforge/internal/template"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printExtendedHelp()
		return
	}

	switch os.Args[1] {
	case "validate":
		handleValidateCommand(os.Args[2:])
	case "generate":
		handleGenerateCommand(os.Args[2:])
	case "preview":
		handlePreviewCommand(os.Args[2:])
	case "batch":
		handleBatchCommand(os.Args[2:])
	case "serve":
		handleServeCommand(os.Args[2:])
	case "status":
		handleStatusCommand()
	case "doctor":
		handleDoctorCommand()
	case "version", "--version", "-v":
		fmt.Printf("CertForge version %s\n", version)
	case "help", "--help", "-h":
		printExtendedHelp()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printExtendedHelp()
		os.Exit(1)
	}
}

// newEngine builds the engine for one-shot commands. No store, no cache:
// CLI invocations are ephemeral.
func newEngine() (*engine.Engine, *zap.Logger) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cfg, err := config.Load("", "")
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	return engine.New(cfg, nil, nil, logger), logger
}

func handleValidateCommand(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: certforge validate <template.pdf>")
		os.Exit(1)
	}

	eng, logger := newEngine()
	defer logger.Sync()

	report := eng.ValidateTemplate(args[0])

	fmt.Printf("Template: %s\n", args[0])
	fmt.Printf("Size:     %d bytes\n", report.FileSizeBytes)
	fmt.Printf("Pages:    %d\n", report.PageCount)
	fmt.Printf("Fields:   %d\n", len(report.FieldsFound))
	for _, f := range report.FieldsFound {
		fmt.Printf("  - %s\n", f)
	}

	if report.Valid {
		fmt.Println("\nTemplate is valid for certificate generation.")
		return
	}

	fmt.Println("\nTemplate is NOT valid:")
	for _, e := range report.Errors {
		fmt.Printf("  - %s\n", e)
	}
	os.Exit(1)
}

func handleGenerateCommand(args []string) {
	templatePath := ""
	first := ""
	last := ""
	output := ""
	extras := map[string]string{}
	overrides := map[string]string{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-t", "--template":
			if i+1 < len(args) {
				templatePath = args[i+1]
				i++
			}
		case "-f", "--first":
			if i+1 < len(args) {
				first = args[i+1]
				i++
			}
		case "-l", "--last":
			if i+1 < len(args) {
				last = args[i+1]
				i++
			}
		case "-o", "--output":
			if i+1 < len(args) {
				output = args[i+1]
				i++
			}
		case "--field":
			if i+1 < len(args) {
				addPair(extras, args[i+1])
				i++
			}
		case "--map":
			if i+1 < len(args) {
				addPair(overrides, args[i+1])
				i++
			}
		case "-h", "--help":
			printGenerateHelp()
			return
		}
	}

	if templatePath == "" || first == "" || last == "" {
		fmt.Println("Error: template, first name, and last name are required")
		printGenerateHelp()
		os.Exit(1)
	}

	eng, logger := newEngine()
	defer logger.Sync()

	rec := template.Recipient{FirstName: first, LastName: last, ExtraFields: extras}
	outputPath, err := eng.GenerateCertificate(engine.CertificateRequest{
		TemplatePath: templatePath,
		Recipient:    rec,
		OutputPath:   output,
		Overrides:    overrides,
	})
	if err != nil {
		fmt.Printf("Error generating certificate: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Certificate written to %s\n", outputPath)
}

func handlePreviewCommand(args []string) {
	templatePath := ""
	output := "preview.pdf"
	overrides := map[string]string{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-t", "--template":
			if i+1 < len(args) {
				templatePath = args[i+1]
				i++
			}
		case "-o", "--output":
			if i+1 < len(args) {
				output = args[i+1]
				i++
			}
		case "--map":
			if i+1 < len(args) {
				addPair(overrides, args[i+1])
				i++
			}
		case "-h", "--help":
			fmt.Println("Usage: certforge preview -t <template.pdf> [-o preview.pdf] [--map role=field]")
			return
		}
	}

	if templatePath == "" {
		fmt.Println("Error: template is required")
		fmt.Println("Usage: certforge preview -t <template.pdf> [-o preview.pdf]")
		os.Exit(1)
	}

	eng, logger := newEngine()
	defer logger.Sync()

	data, err := eng.GeneratePreview(templatePath, overrides)
	if err != nil {
		fmt.Printf("Error generating preview: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		fmt.Printf("Error writing preview: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Preview written to %s (%d bytes)\n", output, len(data))
}

func handleBatchCommand(args []string) {
	if len(args) == 0 {
		printBatchHelp()
		return
	}

	templatePath := ""
	inputFile := ""
	outputDir := ""
	archive := false
	overrides := map[string]string{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-t", "--template":
			if i+1 < len(args) {
				templatePath = args[i+1]
				i++
			}
		case "-i", "--input":
			if i+1 < len(args) {
				inputFile = args[i+1]
				i++
			}
		case "-o", "--output":
			if i+1 < len(args) {
				outputDir = args[i+1]
				i++
			}
		case "--zip":
			archive = true
		case "--map":
			if i+1 < len(args) {
				addPair(overrides, args[i+1])
				i++
			}
		case "-h", "--help":
			printBatchHelp()
			return
		}
	}

	if templatePath == "" || inputFile == "" {
		fmt.Println("Error: template and input file are required")
		printBatchHelp()
		os.Exit(1)
	}

	recipients, err := batch.LoadRecipients(inputFile)
	if err != nil {
		fmt.Printf("Error loading recipients: %v\n", err)
		os.Exit(1)
	}
	if len(recipients) == 0 {
		fmt.Println("No recipients found in input file")
		os.Exit(1)
	}

	eng, logger := newEngine()
	defer logger.Sync()

	fmt.Printf("Generating %d certificates from %s\n\n", len(recipients), filepath.Base(templatePath))

	progress := func(current, total int, message string) {
		fmt.Printf("[%d/%d] %s\n", current, total, message)
	}

	outcome, err := eng.GenerateBatch(context.Background(), engine.BatchRequest{
		TemplatePath: templatePath,
		Recipients:   recipients,
		OutputDir:    outputDir,
		Overrides:    overrides,
		Archive:      archive,
		Progress:     progress,
	})
	if err != nil {
		fmt.Printf("Error running batch: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(outcome.Summary())

	if outcome.Failed > 0 {
		fmt.Println("Failed recipients:")
		for i, res := range outcome.Results {
			if !res.Success {
				fmt.Printf("  - #%d %s %s: %s\n", i+1,
					recipients[i].FirstName, recipients[i].LastName, res.Error)
			}
		}
		os.Exit(1)
	}
}

func handleServeCommand(args []string) {
	configPath := ""
	dataDir := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--data":
			if i+1 < len(args) {
				dataDir = args[i+1]
				i++
			}
		}
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting CertForge", zap.String("version", version))

	cfg, err := config.Load(configPath, dataDir)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	st, err := store.New(&cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	cache := template.NewValidationCache(st.Badger(), logger)
	if err := cache.Watch(cfg.Storage.TemplatesDir); err != nil {
		logger.Warn("Failed to watch templates directory", zap.Error(err))
	}
	defer cache.Close()

	eng := engine.New(cfg, st, cache, logger)

	janitor := cron.NewJanitor(cfg.Cleanup, cfg.Storage.OutputDir, st, logger)
	if err := janitor.Start(); err != nil {
		logger.Error("Failed to start retention janitor", zap.Error(err))
	}
	defer janitor.Stop()

	server := api.New(cfg, eng, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("address", cfg.Server.Address),
		zap.Int("port", cfg.Server.Port),
		zap.String("url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port)),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	if err := server.Shutdown(); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
}

func handleStatusCommand() {
	cfg, err := config.Load("", "")
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("CertForge Status")
	fmt.Println("================")
	fmt.Println()
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Data:    %s\n", cfg.Storage.DataDir)
	fmt.Println()
	fmt.Println("Server Configuration:")
	fmt.Printf("  Address: %s:%d\n", cfg.Server.Address, cfg.Server.Port)
	fmt.Printf("  URL: http://localhost:%d\n", cfg.Server.Port)
	fmt.Println()
	fmt.Println("Rendering:")
	fmt.Printf("  Font size: %.0f-%.0f pt\n", cfg.Render.MinFontSize, cfg.Render.MaxFontSize)
	fmt.Printf("  Flatten:   %v\n", cfg.Render.Flatten)
	fmt.Println()
	fmt.Println("Batch:")
	fmt.Printf("  Parallel:    %v\n", cfg.Batch.Parallel)
	fmt.Printf("  Max workers: %d (0 = auto)\n", cfg.Batch.MaxWorkers)

	st, err := store.New(&cfg.Storage)
	if err != nil {
		fmt.Printf("\nRun history unavailable: %v\n", err)
		return
	}
	defer st.Close()

	runs, err := st.ListBatchRuns(5, 0)
	if err != nil || len(runs) == 0 {
		fmt.Println("\nNo recent batch runs.")
		return
	}

	fmt.Println()
	fmt.Println("Recent Batch Runs:")
	for _, run := range runs {
		fmt.Printf("  %s  %-9s %d/%d ok  %s\n",
			run.CreatedAt.Format("2006-01-02 15:04"),
			run.Status, run.Succeeded, run.Total,
			filepath.Base(run.TemplatePath))
	}
}

func handleDoctorCommand() {
	fmt.Println("CertForge Diagnostics")
	fmt.Println("=====================")
	fmt.Println()

	issues := 0

	cfg, err := config.Load("", "")
	if err != nil {
		fmt.Println("FAIL Config: error loading configuration")
		fmt.Printf("     %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK   Config: loaded successfully")

	for _, dir := range []struct{ name, path string }{
		{"Data directory", cfg.Storage.DataDir},
		{"Templates directory", cfg.Storage.TemplatesDir},
		{"Output directory", cfg.Storage.OutputDir},
	} {
		if _, err := os.Stat(dir.path); err != nil {
			fmt.Printf("FAIL %s: %s not accessible\n", dir.name, dir.path)
			issues++
		} else {
			fmt.Printf("OK   %s: %s\n", dir.name, dir.path)
		}
	}

	probe := filepath.Join(cfg.Storage.OutputDir, ".certforge-doctor")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		fmt.Println("FAIL Output directory: not writable")
		issues++
	} else {
		os.Remove(probe)
		fmt.Println("OK   Output directory: writable")
	}

	st, err := store.New(&cfg.Storage)
	if err != nil {
		fmt.Printf("FAIL Databases: %v\n", err)
		issues++
	} else {
		st.Close()
		fmt.Println("OK   Databases: SQLite and Badger open cleanly")
	}

	templates, _ := filepath.Glob(filepath.Join(cfg.Storage.TemplatesDir, "*.pdf"))
	if len(templates) == 0 {
		fmt.Println("WARN Templates: no PDF templates found")
		fmt.Printf("     Place templates in %s\n", cfg.Storage.TemplatesDir)
	} else {
		fmt.Printf("OK   Templates: %d found\n", len(templates))
	}

	fmt.Println()
	if issues == 0 {
		fmt.Println("All checks passed.")
	} else {
		fmt.Printf("Found %d issue(s).\n", issues)
		os.Exit(1)
	}
}

func addPair(m map[string]string, pair string) {
	parts := strings.SplitN(pair, "=", 2)
	if len(parts) == 2 && parts[0] != "" {
		m[parts[0]] = parts[1]
	}
}

func printGenerateHelp() {
	fmt.Println("Generate a single certificate:")
	fmt.Println()
	fmt.Println("  certforge generate -t <template.pdf> -f <first> -l <last> [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -t, --template <file>   Template PDF with AcroForm text fields")
	fmt.Println("  -f, --first <name>      Recipient first name")
	fmt.Println("  -l, --last <name>       Recipient last name")
	fmt.Println("  -o, --output <file>     Output path (default: auto-named in output dir)")
	fmt.Println("  --field <role=value>    Extra role value (repeatable, e.g. date=\"July 04, 2025\")")
	fmt.Println("  --map <role=field>      Explicit role-to-field mapping (repeatable)")
}

func printBatchHelp() {
	fmt.Println("Batch certificate generation:")
	fmt.Println()
	fmt.Println("  certforge batch -t <template.pdf> -i <recipients> [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -t, --template <file>   Template PDF with AcroForm text fields")
	fmt.Println("  -i, --input <file>      Recipients file (CSV with header, or JSONL)")
	fmt.Println("  -o, --output <dir>      Output directory (default: timestamped under output dir)")
	fmt.Println("  --zip                   Package successful outputs into certificates.zip")
	fmt.Println("  --map <role=field>      Explicit role-to-field mapping (repeatable)")
	fmt.Println()
	fmt.Println("Input Formats:")
	fmt.Println("  CSV:   first_name,last_name[,extra columns mapped as roles]")
	fmt.Println("  JSONL: {\"first_name\": \"...\", \"last_name\": \"...\", \"extra_fields\": {...}}")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  certforge batch -t cert.pdf -i class.csv --zip")
	fmt.Println("  certforge batch -t cert.pdf -i class.jsonl -o ./out --map first_name=FullName")
}

func printExtendedHelp() {
	fmt.Println("CertForge - Certificate Rendering and Batch Generation")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  certforge validate <template.pdf>        Check a template for usable fields")
	fmt.Println("  certforge generate [options]             Generate a single certificate")
	fmt.Println("  certforge preview -t <template.pdf>      Render a John Doe sample")
	fmt.Println("  certforge batch [options]                Generate certificates in bulk")
	fmt.Println("  certforge serve [--config] [--data]      Run the HTTP API server")
	fmt.Println()
	fmt.Println("System & Diagnostics:")
	fmt.Println("  certforge status                         Show configuration and recent runs")
	fmt.Println("  certforge doctor                         Run diagnostics")
	fmt.Println("  certforge version                        Show version")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  certforge validate cert_template.pdf")
	fmt.Println("  certforge generate -t cert.pdf -f John -l Doe")
	fmt.Println("  certforge batch -t cert.pdf -i class.csv --zip")
	fmt.Println("  certforge serve --data ./data")
	fmt.Println()
	fmt.Println("Run 'certforge <command> --help' for command details.")
}
