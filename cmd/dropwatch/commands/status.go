package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/MEKXH/dropwatch/internal/config"
	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Dropwatch configuration status",
		RunE:  runStatus,
	}
	cmd.Flags().Bool("json", false, "Output status as JSON")
	return cmd
}

type statusReport struct {
	GeneratedAt string         `json:"generated_at"`
	ConfigPath  string         `json:"config_path"`
	ConfigFound bool           `json:"config_found"`
	Mode        string         `json:"mode"`
	Product     string         `json:"product"`
	Notify      string         `json:"notify_provider"`
	Secrets     string         `json:"secrets_provider"`
	WorkerURL   string         `json:"worker_url"`
	TraceDir    string         `json:"trace_dir"`
	Approval    map[string]int `json:"approval"`
	Server      serverProbe    `json:"server"`
}

type serverProbe struct {
	URL     string `json:"url"`
	Running bool   `json:"running"`
	Mode    string `json:"mode,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	path := effectiveConfigPath()
	_, statErr := os.Stat(path)
	report := statusReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		ConfigPath:  path,
		ConfigFound: statErr == nil,
		Mode:        cfg.Mode,
		Product:     cfg.Product.Name,
		Notify:      cfg.Notify.Provider,
		Secrets:     cfg.Secrets.Provider,
		WorkerURL:   cfg.Browser.WorkerURL,
		TraceDir:    cfg.Audit.Dir,
		Approval: map[string]int{
			"timeout_seconds":       cfg.Approval.TimeoutSeconds,
			"poll_interval_seconds": cfg.Approval.PollIntervalSeconds,
			"rate_limit_requests":   cfg.RateLimit.Requests,
			"rate_limit_window_sec": cfg.RateLimit.WindowSeconds,
		},
		Server: probeServer(cfg),
	}

	if cmd != nil {
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
	}

	fmt.Println(headerStyle.Render("Dropwatch Status"))

	fmt.Println(sectionStyle.Render("Config"))
	printRow("Path", report.ConfigPath)
	if report.ConfigFound {
		printRow("Status", colored(okColor, "OK"))
	} else {
		printRow("Status", colored(warnColor, "Not found (run 'dropwatch init')"))
	}
	printRow("Mode", modeLabel(report.Mode))
	printRow("Product", valueOr(report.Product, "(not set)"))
	fmt.Println()

	fmt.Println(sectionStyle.Render("Integrations"))
	printRow("Notify", report.Notify)
	printRow("Secrets", report.Secrets)
	printRow("Worker", report.WorkerURL)
	printRow("Traces", valueOr(report.TraceDir, "disabled"))
	fmt.Println()

	fmt.Println(sectionStyle.Render("Approval"))
	printRow("Timeout", strconv.Itoa(cfg.Approval.TimeoutSeconds)+"s")
	printRow("Poll", strconv.Itoa(cfg.Approval.PollIntervalSeconds)+"s")
	if cfg.RateLimitEnabled() {
		printRow("Rate limit", fmt.Sprintf("%d per %ds", cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds))
	} else {
		printRow("Rate limit", "disabled")
	}
	fmt.Println()

	fmt.Println(sectionStyle.Render("Server"))
	printRow("URL", report.Server.URL)
	if report.Server.Running {
		printRow("Status", colored(okColor, "running"))
		printRow("Version", report.Server.Version)
	} else {
		printRow("Status", colored(badColor, "not running"))
	}
	return nil
}

func probeServer(cfg *config.Config) serverProbe {
	probe := serverProbe{URL: cfg.Gateway.PublicURL}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(cfg.Gateway.PublicURL + "/")
	if err != nil {
		probe.Error = err.Error()
		return probe
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		probe.Error = resp.Status
		return probe
	}
	var body struct {
		Mode    string `json:"mode"`
		Version string `json:"version"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	probe.Running = true
	probe.Mode = body.Mode
	probe.Version = body.Version
	return probe
}

func modeLabel(mode string) string {
	switch mode {
	case "prod":
		return colored(badColor, mode)
	case "test":
		return colored(warnColor, mode)
	default:
		return colored(okColor, mode)
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
