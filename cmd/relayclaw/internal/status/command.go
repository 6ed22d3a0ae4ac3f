package status

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/relayclaw/cmd/relayclaw/internal"
)

func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show the status of a running gateway",
		Args:    cobra.NoArgs,
		Example: "  relayclaw status",
		RunE: func(_ *cobra.Command, _ []string) error {
			return statusCmd()
		},
	}

	return cmd
}

func statusCmd() error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	host := cfg.Gateway.Host
	if host == "0.0.0.0" || host == "" {
		host = "127.0.0.1"
	}
	url := fmt.Sprintf("http://%s:%d/healthz", host, cfg.Gateway.Port)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Printf("✗ Gateway not reachable at %s\n", url)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return err
	}

	var health struct {
		Status string           `json:"status"`
		Stats  map[string]int64 `json:"stats"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("parsing health response: %w", err)
	}

	fmt.Printf("✓ Gateway %s at %s\n", health.Status, url)
	keys := make([]string, 0, len(health.Stats))
	for k := range health.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %d\n", k, health.Stats[k])
	}
	return nil
}
