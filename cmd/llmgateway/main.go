package main

import (
	"fmt"
	"os"

	"github.com/welinkai/llmgateway/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		cmdStart(os.Args[2:])
	case "stop":
		cmdStop()
	case "status":
		cmdStatus()
	case "keys":
		cmdKeys(os.Args[2:])
	case "providers":
		cmdProviders(os.Args[2:])
	case "billing-sync":
		cmdBillingSync(os.Args[2:])
	case "init-config":
		cmdInitConfig()
	case "config-export":
		cmdConfigExport(os.Args[2:])
	case "config-import":
		cmdConfigImport(os.Args[2:])
	case "service":
		cmdService(os.Args[2:])
	case "version":
		fmt.Println(version.String())
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: llmgateway <command> [options]

Commands:
  start                      Start the gateway daemon
  stop                       Stop the running daemon
  status                     Show daemon status and summary stats
  keys list|set|delete       Manage keychain-stored API keys
  providers list             List configured providers
  providers deactivate <id>  Deactivate a provider
  providers activate <id>    Reactivate a provider
  billing-sync [--days N]    Report the last N full days of usage to Stripe
  init-config                Generate default config file
  config-export [file]       Export current config to a TOML file
  config-import <file>       Import config from a TOML file
  service install|uninstall  Manage the user-level system service
  version                    Print version information
  help                       Show this help message

Options:
  --foreground               Run in foreground (with 'start')`)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
