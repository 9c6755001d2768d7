// ABOUTME: Entry point for the silverfox relay server
// ABOUTME: Relays browser viewers to an OpenClaw agent session and records every exchange

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/silverfox/internal/agent"
	"github.com/2389/silverfox/internal/config"
	"github.com/2389/silverfox/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
      _ _                  __
  ___(_) |_   _____ _ __  / _| _____  __
 / __| | \ \ / / _ \ '__|| |_ / _ \ \/ /
 \__ \ | |\ V /  __/ |   |  _| (_) >  <
 |___/_|_| \_/ \___|_|   |_|  \___/_/\_\
`

// getConfigPath returns the path to the relay config file.
// Priority: SILVERFOX_CONFIG env var > XDG_CONFIG_HOME/silverfox/relay.yaml > ~/.config/silverfox/relay.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SILVERFOX_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "relay.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "silverfox", "relay.yaml")
}

// loadConfig reads the config file, falling back to defaults when it does not exist.
func loadConfig(path string) (*config.Config, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), false, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, true, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: silverfox <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the relay server")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check relay health")
		fmt.Println("  status   Show the OpenClaw session status as seen by the relay")
		os.Exit(1)
	}

	// A missing .env is normal; the environment is used as is.
	_ = godotenv.Load()

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
	case "status":
		err = runStatus(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, fromFile, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s", configPath)
	if !fromFile {
		yellow.Print(" (not found, using defaults)")
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("OpenClaw:  %s ", cfg.OpenClaw.URL)
	gray.Printf("(%s)\n", cfg.OpenClaw.SessionKey)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}
	fmt.Println()

	logger.Info("starting silverfox",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"openclaw_url", cfg.OpenClaw.URL,
		"reply_timeout", cfg.Relay.ReplyTimeout,
		"poll_interval", cfg.Relay.PollInterval,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// relayURL builds a URL on the local relay from the configured listen address.
func relayURL(cfg *config.Config, path string) string {
	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, "0.0.0.0:") {
		addr = "localhost" + strings.TrimPrefix(addr, "0.0.0.0")
	}
	return fmt.Sprintf("http://%s%s", addr, path)
}

func getRelay(ctx context.Context, path string) (*http.Response, error) {
	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, relayURL(cfg, path), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return http.DefaultClient.Do(req)
}

func runHealth(ctx context.Context) error {
	resp, err := getRelay(ctx, "/health/ready")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

func runStatus(ctx context.Context) error {
	resp, err := getRelay(ctx, "/api/status")
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status check failed: status %d", resp.StatusCode)
	}

	var status agent.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decoding status: %w", err)
	}

	printStatus(os.Stdout, status)
	return nil
}

func printStatus(w io.Writer, status agent.Status) {
	state := color.RedString("disconnected")
	if status.Connected {
		state = color.GreenString("connected")
	}

	fmt.Fprintf(w, "OpenClaw:     %s\n", state)
	fmt.Fprintf(w, "Session:      %s\n", status.SessionKey)
	fmt.Fprintf(w, "Runtime:      %s\n", status.Runtime)
	if status.Model != "" {
		fmt.Fprintf(w, "Model:        %s\n", status.Model)
	}
	if status.Channel != "" {
		fmt.Fprintf(w, "Channel:      %s\n", status.Channel)
	}
	fmt.Fprintf(w, "Total tokens: %d\n", status.TotalTokens)
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("silverfox configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", config.DefaultHTTPAddr)

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", config.DefaultDatabasePath)

	fmt.Println("\n--- OpenClaw Configuration ---")
	openclawURL := prompt(reader, "OpenClaw URL", config.DefaultOpenClawURL)
	sessionKey := prompt(reader, "Session key", config.DefaultSessionKey)

	fmt.Println("\n--- Relay Configuration ---")
	replyTimeout := prompt(reader, "Reply timeout", config.DefaultReplyTimeout.String())
	pollInterval := prompt(reader, "Poll interval", config.DefaultPollInterval.String())

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	fmt.Println("\n--- Metrics ---")
	metricsEnabled := isYes(prompt(reader, "Expose Prometheus metrics?", "no"))

	content := renderConfig(initAnswers{
		HTTPAddr:       httpAddr,
		DBPath:         dbPath,
		OpenClawURL:    openclawURL,
		SessionKey:     sessionKey,
		ReplyTimeout:   replyTimeout,
		PollInterval:   pollInterval,
		LogLevel:       logLevel,
		LogFormat:      logFormat,
		MetricsEnabled: metricsEnabled,
	})

	// Refuse to write something serve would reject
	if _, err := config.Parse([]byte(content)); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  silverfox serve\n")

	return nil
}

// initAnswers holds the values collected by runInit.
type initAnswers struct {
	HTTPAddr       string
	DBPath         string
	OpenClawURL    string
	SessionKey     string
	ReplyTimeout   string
	PollInterval   string
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# silverfox configuration\n")
	cfg.WriteString("# Generated by silverfox init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n\n", a.HTTPAddr))

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", a.DBPath))

	cfg.WriteString("openclaw:\n")
	cfg.WriteString(fmt.Sprintf("  url: %q\n", a.OpenClawURL))
	cfg.WriteString(fmt.Sprintf("  session_key: %q\n", a.SessionKey))
	cfg.WriteString(fmt.Sprintf("  request_timeout: %q\n\n", config.DefaultRequestTimeout.String()))

	cfg.WriteString("relay:\n")
	cfg.WriteString(fmt.Sprintf("  reply_timeout: %q\n", a.ReplyTimeout))
	cfg.WriteString(fmt.Sprintf("  poll_interval: %q\n", a.PollInterval))
	cfg.WriteString(fmt.Sprintf("  status_interval: %q\n", config.DefaultStatusInterval.String()))
	cfg.WriteString(fmt.Sprintf("  history_limit: %d\n", config.DefaultHistoryLimit))
	cfg.WriteString(fmt.Sprintf("  fingerprint_capacity: %d\n", config.DefaultFingerprintCapacity))
	cfg.WriteString(fmt.Sprintf("  max_content_length: %d\n\n", config.DefaultMaxContentLength))

	cfg.WriteString("websocket:\n")
	cfg.WriteString("  allowed_origins: []\n\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", a.LogLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n\n", a.LogFormat))

	cfg.WriteString("metrics:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", a.MetricsEnabled))
	cfg.WriteString(fmt.Sprintf("  path: %q\n", config.DefaultMetricsPath))

	return cfg.String()
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

// setupLogger builds the root logger from the logging config.
func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(newColorHandler(w, level))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
