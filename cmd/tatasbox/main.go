// ABOUTME: Entry point for the tatasbox server
// ABOUTME: Subcommands to serve, write a config, check health and mint device tokens

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/tatasbox/internal/auth"
	"github.com/2389/tatasbox/internal/config"
	"github.com/2389/tatasbox/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _        _            _
 | |_ __ _| |_ __ _ ___| |__   _____  __
 | __/ _' | __/ _' / __| '_ \ / _ \ \/ /
 | || (_| | || (_| \__ \ |_) | (_) >  <
  \__\__,_|\__\__,_|___/_.__/ \___/_/\_\
`

// getDataPath returns the tatasbox data directory.
// Priority: XDG_DATA_HOME/tatasbox > ~/.local/share/tatasbox
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "tatasbox")
}

func usage() {
	fmt.Println("Usage: tatasbox <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                       Start the server")
	fmt.Println("  init                        Create a new config file interactively")
	fmt.Println("  health                      Check server health")
	fmt.Println("  token --device ID [--ttl]   Mint a bearer token for a device")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "token":
		err = runToken(os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when none exists.
func loadConfig() (*config.Config, string, error) {
	configPath := config.DefaultPath()
	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default(getDataPath())
		if err := cfg.Validate(); err != nil {
			return nil, "", fmt.Errorf("validating default config: %w", err)
		}
		return cfg, "(defaults)", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	if configPath == "(defaults)" {
		if err := os.MkdirAll(getDataPath(), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Storage:   %s\n", cfg.Database.Driver)
	if !cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	green.Print("    ▶ ")
	fmt.Printf("Model:     %s\n", cfg.LLM.Model)
	if cfg.Auth.JWTSecret == "" {
		yellow.Println("    ! auth disabled: all requests share the local device")
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting tatasbox",
		"config", configPath,
		"driver", cfg.Database.Driver,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	url := fmt.Sprintf("http://%s/health", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		DBState string `json:"dbState"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}

	fmt.Printf("healthy (db: %s)\n", body.DBState)
	return nil
}

// runToken mints a JWT for a device using the configured secret and writes it to out.
func runToken(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("token", flag.ContinueOnError)
	deviceID := flags.String("device", "", "device id to embed in the token")
	ttl := flags.Duration("ttl", 30*24*time.Hour, "token lifetime")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}

	id := strings.TrimSpace(*deviceID)
	if id == "" {
		return errors.New("--device is required")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret not configured (run tatasbox init)")
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(id, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Fprintln(out, token)
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("tatasbox configuration setup")
	fmt.Println("============================")
	fmt.Println()

	defaultDbPath := filepath.Join(getDataPath(), "tatasbox.db")

	outputFile := prompt(reader, "Config file path", config.DefaultPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !yes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server ---")
	httpAddr := prompt(reader, "HTTP address", config.DefaultHTTPAddr)

	fmt.Println("\n--- Storage ---")
	driver := prompt(reader, "Driver (sqlite/sqlite3/postgres/redis/file/memory)", "sqlite")
	var dbPath, dsn string
	switch driver {
	case "postgres", "redis":
		dsn = prompt(reader, "Connection string", "")
	case "memory":
	default:
		dbPath = prompt(reader, "Database path", defaultDbPath)
	}
	var encryptionKey string
	if yes(prompt(reader, "Encrypt values at rest?", "no")) {
		key, err := randomSecret()
		if err != nil {
			return err
		}
		encryptionKey = key
	}

	fmt.Println("\n--- Auth ---")
	var jwtSecret string
	if yes(prompt(reader, "Require device tokens?", "yes")) {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		jwtSecret = secret
	}

	fmt.Println("\n--- Story ---")
	model := prompt(reader, "Model", config.DefaultModel)
	fmt.Println("The API key is read from OPENAI_API_KEY unless llm.api_key is set.")

	fmt.Println("\n--- Tailscale ---")
	tailscaleEnabled := yes(prompt(reader, "Enable Tailscale?", "no"))
	var tsHostname, tsAuthKey string
	var tsEphemeral, tsFunnel bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", "tatasbox")
		tsAuthKey = prompt(reader, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		tsEphemeral = yes(prompt(reader, "Ephemeral node?", "no"))
		tsFunnel = yes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Println("\n--- Logging ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# tatasbox configuration\n")
	cfg.WriteString("# Generated by tatasbox init\n\n")

	cfg.WriteString("server:\n")
	if !tailscaleEnabled {
		fmt.Fprintf(&cfg, "  http_addr: %q\n", httpAddr)
	}
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	fmt.Fprintf(&cfg, "  driver: %q\n", driver)
	if dbPath != "" {
		fmt.Fprintf(&cfg, "  path: %q\n", dbPath)
	}
	if dsn != "" {
		fmt.Fprintf(&cfg, "  dsn: %q\n", dsn)
	}
	if encryptionKey != "" {
		fmt.Fprintf(&cfg, "  encryption_key: %q\n", encryptionKey)
	}
	cfg.WriteString("\n")

	if jwtSecret != "" {
		cfg.WriteString("auth:\n")
		fmt.Fprintf(&cfg, "  jwt_secret: %q\n\n", jwtSecret)
	}

	cfg.WriteString("llm:\n")
	cfg.WriteString("  api_key: \"${OPENAI_API_KEY}\"\n")
	fmt.Fprintf(&cfg, "  model: %q\n", model)
	cfg.WriteString("  timeout: \"60s\"\n\n")

	cfg.WriteString("journal:\n")
	cfg.WriteString("  ephemeral_sweep: \"0 4 * * *\"\n\n")

	cfg.WriteString("tailscale:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", tailscaleEnabled)
	if tailscaleEnabled {
		fmt.Fprintf(&cfg, "  hostname: %q\n", tsHostname)
		if tsAuthKey != "" {
			fmt.Fprintf(&cfg, "  auth_key: %q\n", tsAuthKey)
		}
		fmt.Fprintf(&cfg, "  ephemeral: %t\n", tsEphemeral)
		fmt.Fprintf(&cfg, "  funnel: %t\n", tsFunnel)
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	fmt.Fprintf(&cfg, "  level: %q\n", logLevel)
	fmt.Fprintf(&cfg, "  format: %q\n\n", logFormat)

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("  path: \"/metrics\"\n")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// Secrets live in this file.
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Println("  tatasbox serve")
	if jwtSecret != "" {
		fmt.Println("\nTo mint a device token:")
		fmt.Println("  tatasbox token --device my-phone")
	}

	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func yes(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	return a == "yes" || a == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF, take the default.
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
