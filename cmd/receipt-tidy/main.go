package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"receipt-tidy/internal/receipt"
	"receipt-tidy/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("receipt-tidy")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		backend      = fs.StringLong("backend", "gemini", "Extraction backend: 'gemini', 'tesseract' or 'ollama'")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		ocrLanguages = fs.StringLong("ocr-languages", "kor,eng", "Tesseract language codes, comma separated")
		dbPath       = fs.StringLong("db", "", "Database file path (empty: in-memory session)")
		storagePath  = fs.StringLong("storage", "", "Directory for archived uploads (empty: uploads are not kept)")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_TIDY"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var store receipt.Store
	var err error
	if *dbPath != "" {
		slog.Info("Opening database...", "path", *dbPath)
		store, err = receipt.NewBoltStore(*dbPath)
		if err != nil {
			slog.Error("Failed to open database", "error", err)
			os.Exit(1)
		}
	} else {
		store = receipt.NewMemoryStore()
	}
	defer store.Close()

	var scanner scanning.Scanner
	switch *backend {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini backend...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "tesseract":
		languages := strings.Split(*ocrLanguages, ",")
		for i := range languages {
			languages[i] = strings.TrimSpace(languages[i])
		}
		slog.Info("Initializing Tesseract backend...", "languages", languages)
		tesseract := scanning.NewTesseract(languages...)
		tesseract.Progress = func(stage string) {
			slog.Debug("OCR progress", "stage", stage)
		}
		scanner = tesseract
	case "ollama":
		slog.Info("Initializing Ollama backend...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid backend", "backend", *backend, "valid", "gemini, tesseract or ollama")
		os.Exit(1)
	}
	defer scanner.Close()

	var archive receipt.Archive = receipt.NopArchive{}
	if *storagePath != "" {
		slog.Info("Initializing upload archive...", "path", *storagePath)
		archive, err = receipt.NewDirArchive(*storagePath)
		if err != nil {
			slog.Error("Failed to initialize upload archive", "error", err)
			os.Exit(1)
		}
	}

	service := receipt.NewService(store, scanner, archive)

	server := receipt.NewServer(service, receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "backend", *backend)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
