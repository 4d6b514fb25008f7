package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/welinkai/llmgateway/internal/config"
	"github.com/welinkai/llmgateway/internal/daemon"
	"github.com/welinkai/llmgateway/internal/store"
	"github.com/welinkai/llmgateway/internal/vault"
)

func loadConfig() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		fatalf("error loading config: %v", err)
	}
	return cfg
}

// cliLogger writes warnings and above to stderr for one-shot commands.
func cliLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()
}

func openStore(ctx context.Context, cfg *config.Config) store.Backend {
	st, err := daemon.OpenBackend(ctx, cfg, cliLogger())
	if err != nil {
		fatalf("error opening store: %v", err)
	}
	return st
}

func cmdStart(args []string) {
	foreground := false
	for _, a := range args {
		if a == "--foreground" || a == "-f" {
			foreground = true
		}
	}

	if err := daemon.Run(loadConfig(), foreground); err != nil {
		fatalf("error: %v", err)
	}
}

func cmdStop() {
	loadConfig()
	if err := daemon.Stop(); err != nil {
		fatalf("error stopping daemon: %v", err)
	}
	fmt.Println("llmgateway stopped")
}

func cmdStatus() {
	loadConfig()
	if err := daemon.Status(); err != nil {
		fatalf("%v", err)
	}
}

func cmdProviders(args []string) {
	if len(args) == 0 {
		fatalf("Usage: llmgateway providers <list|activate|deactivate> [id]")
	}

	ctx := context.Background()
	cfg := loadConfig()
	st := openStore(ctx, cfg)
	defer st.Close()

	switch args[0] {
	case "list":
		providers, err := st.ListProviders(ctx)
		if err != nil {
			fatalf("error listing providers: %v", err)
		}
		if len(providers) == 0 {
			fmt.Println("No providers configured")
			return
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tFAMILY\tPRIORITY\tACTIVE\tKEY\tMODELS")
		for _, p := range providers {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%t\t%s\t%s\n",
				p.ID, p.Name, p.Family, p.Priority, p.Active, keySource(p.APIKey), p.Models)
		}
		tw.Flush()

	case "activate", "deactivate":
		if len(args) < 2 {
			fatalf("Usage: llmgateway providers %s <id>", args[0])
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatalf("invalid provider id %q", args[1])
		}
		active := args[0] == "activate"
		if err := st.SetProviderActive(ctx, id, active); err != nil {
			fatalf("error updating provider %d: %v", id, err)
		}
		fmt.Printf("Provider %d %sd\n", id, args[0])

	default:
		fatalf("unknown providers command: %s", args[0])
	}
}

// keySource describes a stored api_key without revealing it.
func keySource(apiKey string) string {
	switch {
	case apiKey == "":
		return "-"
	case vault.IsKeyRef(apiKey):
		return apiKey
	default:
		return "inline"
	}
}

func cmdBillingSync(args []string) {
	days, err := parseDays(args)
	if err != nil {
		fatalf("%v", err)
	}

	ctx := context.Background()
	cfg := loadConfig()
	if !cfg.Billing.Enabled {
		fatalf("billing is disabled; set billing.enabled = true")
	}
	st := openStore(ctx, cfg)
	defer st.Close()

	syncer, err := daemon.NewBillingSyncer(cfg, st, vault.New(), cliLogger())
	if err != nil {
		fatalf("error: %v", err)
	}

	since, until := billingWindow(time.Now(), days)
	report, syncErr := syncer.Sync(ctx, since, until)
	if report != nil {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
	}
	if syncErr != nil {
		fatalf("billing sync: %v", syncErr)
	}
}

// parseDays reads the optional --days N (or --days=N) flag. The default is 1.
func parseDays(args []string) (int, error) {
	days := 1
	for i := 0; i < len(args); i++ {
		a := args[i]
		var val string
		switch {
		case a == "--days":
			if i+1 >= len(args) {
				return 0, fmt.Errorf("--days requires a value")
			}
			i++
			val = args[i]
		case strings.HasPrefix(a, "--days="):
			val = strings.TrimPrefix(a, "--days=")
		default:
			return 0, fmt.Errorf("unknown billing-sync option: %s", a)
		}
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 {
			return 0, fmt.Errorf("--days must be a positive integer, got %q", val)
		}
		days = n
	}
	return days, nil
}

// billingWindow returns the last days full UTC days before now. Windows are
// aligned to midnight so reruns produce the same idempotency keys.
func billingWindow(now time.Time, days int) (since, until time.Time) {
	now = now.UTC()
	until = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since = until.AddDate(0, 0, -days)
	return since, until
}

func cmdInitConfig() {
	path, created, err := config.InitConfig()
	if err != nil {
		fatalf("error generating config: %v", err)
	}
	if !created {
		fmt.Printf("Config already exists: %s\n", path)
		return
	}
	fmt.Printf("Config written to %s\n", path)
}

func cmdConfigExport(args []string) {
	path := "llmgateway-export.toml"
	if len(args) > 0 {
		path = args[0]
	}
	loadConfig()
	if err := config.ExportConfig(path); err != nil {
		fatalf("error exporting config: %v", err)
	}
	fmt.Printf("Config exported to %s\n", path)
}

func cmdConfigImport(args []string) {
	if len(args) == 0 {
		fatalf("usage: llmgateway config-import <file>")
	}
	loadConfig()
	if err := config.ImportConfig(args[0]); err != nil {
		fatalf("error importing config: %v", err)
	}
	fmt.Printf("Config imported from %s\n", args[0])
}

func cmdService(args []string) {
	if len(args) == 0 {
		fatalf("Usage: llmgateway service <install|uninstall>")
	}
	switch args[0] {
	case "install":
		if err := daemon.InstallService(loadConfig().Server.DataDir); err != nil {
			fatalf("error installing service: %v", err)
		}
		fmt.Println("Service installed")
	case "uninstall":
		if err := daemon.UninstallService(); err != nil {
			fatalf("error removing service: %v", err)
		}
	default:
		fatalf("unknown service command: %s", args[0])
	}
}
