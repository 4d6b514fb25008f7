package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/welinkai/llmgateway/internal/vault"
)

// stripeKeyName is the keychain entry the default billing.stripe_key
// reference points at.
const stripeKeyName = "stripe"

func cmdKeys(args []string) {
	if len(args) == 0 {
		fatalf("Usage: llmgateway keys <list|set|delete> [name]")
	}

	v := vault.New()

	switch args[0] {
	case "list":
		names := keyNames()
		found := v.List(names)
		if len(found) == 0 {
			fmt.Println("No API keys stored")
			return
		}
		for _, name := range found {
			fmt.Printf("  %s: ****  (keyring://llmgateway/%s)\n", name, name)
		}

	case "set":
		if len(args) < 2 {
			fatalf("Usage: llmgateway keys set <name>")
		}
		name := strings.ToLower(args[1])
		fmt.Printf("Enter API key for %s: ", name)
		key, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			fatalf("error reading key: %v", err)
		}
		if strings.TrimSpace(string(key)) == "" {
			fatalf("empty key; nothing stored")
		}
		if err := v.Set(name, strings.TrimSpace(string(key))); err != nil {
			fatalf("error storing key: %v", err)
		}
		fmt.Printf("Key for %s stored; reference it as keyring://llmgateway/%s\n", name, name)

	case "delete":
		if len(args) < 2 {
			fatalf("Usage: llmgateway keys delete <name>")
		}
		name := strings.ToLower(args[1])
		if err := v.Delete(name); err != nil {
			fatalf("error deleting key: %v", err)
		}
		fmt.Printf("Key for %s deleted\n", name)

	default:
		fatalf("unknown keys command: %s", args[0])
	}
}

// keyNames lists the keychain entries worth checking: every provider name
// plus the Stripe key.
func keyNames() []string {
	names := []string{stripeKeyName}

	ctx := context.Background()
	cfg := loadConfig()
	st := openStore(ctx, cfg)
	defer st.Close()

	providers, err := st.ListProviders(ctx)
	if err != nil {
		fatalf("error listing providers: %v", err)
	}
	for _, p := range providers {
		names = append(names, strings.ToLower(p.Name))
	}
	return names
}
