package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/ordergate/internal/auth"
	"github.com/mattjoyce/ordergate/internal/config"
	"github.com/mattjoyce/ordergate/internal/doctor"
	"github.com/mattjoyce/ordergate/internal/secure"
	"github.com/mattjoyce/ordergate/internal/tui/tokenmgr"
)

const tokenBytes = 32

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		return runConfigCheck(actionArgs)
	case "lock":
		return runConfigLock(actionArgs)
	case "get":
		return runConfigGet(actionArgs)
	case "token":
		return runConfigToken(actionArgs)
	case "hash-password":
		return runHashPassword(actionArgs)
	case "gen-key":
		return runGenKey(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		printConfigNounHelp(os.Stderr)
		return 1
	}
}

func printConfigNounHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: ordergate config <action> [flags]

Actions:
  check [--json]            Validate config and environment (exit 2 on warnings)
  lock                      Pin config.yaml and .env checksums
  get <path> [--json]       Print one setting, secrets redacted
  token [--scopes a,b]      Mint an API token (interactive scope picker without --scopes)
  hash-password [--generate] Print a bcrypt hash for a typed or generated password
  gen-key                   Print a new state encryption key
`)
}

// runConfigCheck exits 0 when clean, 2 with warnings only and 1 on errors.
func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		if *jsonOut {
			out, _ := doctor.FormatJSON(&doctor.Result{
				Valid:  false,
				Errors: []doctor.Issue{{Category: "config", Message: err.Error()}},
			})
			fmt.Println(out)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}

	result := doctor.New(cfg).Validate(context.Background())
	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}
	return checkExitCode(result)
}

func checkExitCode(r *doctor.Result) int {
	switch {
	case !r.Valid:
		return 1
	case len(r.Warnings) > 0:
		return 2
	default:
		return 0
	}
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	path, err := configFile(resolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	manifest, err := config.WriteChecksums(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write checksums: %v\n", err)
		return 1
	}
	for name, h := range manifest.Hashes {
		fmt.Printf("pinned %s blake3:%s\n", name, h[:16])
	}
	return 0
}

// configFile maps a config directory to the config.yaml inside it.
func configFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("config not found: %s", path)
	}
	if info.IsDir() {
		return filepath.Join(path, "config.yaml"), nil
	}
	return path, nil
}

func runConfigGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: ordergate config get <path> [--json]")
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	val, err := cfg.GetPath(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(val, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("%v\n", val)
	}
	return 0
}

// runConfigToken prints a fresh bearer token and the YAML entry to paste under
// api.auth.tokens. The secret itself is meant to live in .env.
func runConfigToken(args []string) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	scopesArg := fs.String("scopes", "", "Comma-separated scopes (omit for the interactive picker)")
	envVar := fs.String("env", "ORDERGATE_TOKEN", "Environment variable the token is read from")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	var scopes []string
	if *scopesArg != "" {
		scopes = splitScopes(*scopesArg)
	} else {
		picked, err := pickScopes()
		if err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			return 1
		}
		if picked == nil {
			return 1
		}
		scopes = picked
	}

	out, err := renderToken(scopes, *envVar)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Print(out)
	return 0
}

func splitScopes(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func pickScopes() ([]string, error) {
	final, err := tea.NewProgram(tokenmgr.New()).Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(tokenmgr.Model)
	if !ok {
		return nil, errors.New("unexpected picker model")
	}
	return m.Scopes(), nil
}

// renderToken mints a token for scopes and returns the export line plus the
// config snippet that references it.
func renderToken(scopes []string, envVar string) (string, error) {
	if len(scopes) == 0 {
		return "", errors.New("no scopes selected")
	}
	for _, s := range scopes {
		if !auth.KnownScope(s) {
			return "", fmt.Errorf("unknown scope %q", s)
		}
	}
	token, err := generateSecureToken(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	snippet, err := yaml.Marshal([]config.APIToken{{Token: "${" + envVar + "}", Scopes: scopes}})
	if err != nil {
		return "", fmt.Errorf("render snippet: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Add to .env:\n  %s=%s\n\n", envVar, token)
	b.WriteString("Add under api.auth.tokens:\n")
	for line := range strings.Lines(string(snippet)) {
		b.WriteString("  " + line)
	}
	fmt.Fprintf(&b, "\nEffective scopes: %s\n", strings.Join(auth.Expand(scopes), ", "))
	b.WriteString("\nThen run: ordergate config lock\n")
	return b.String(), nil
}

func generateSecureToken(bytesLen int) (string, error) {
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func runHashPassword(args []string) int {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	generate := fs.Bool("generate", false, "Generate a random password instead of prompting")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	var pw string
	if *generate {
		generated, err := secure.GeneratePassword(0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		pw = generated
		fmt.Fprintf(os.Stderr, "generated password: %s\n", pw)
	} else {
		fmt.Fprint(os.Stderr, "new password: ")
		read, err := readPassword()
		if err != nil {
			fmt.Fprintf(os.Stderr, "read password: %v\n", err)
			return 1
		}
		pw = read
	}

	hash, err := secure.HashPassword(pw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("security:\n  password_hash: %q\n", hash)
	return 0
}

func runGenKey(args []string) int {
	fs := flag.NewFlagSet("gen-key", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := secure.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("state:\n  encryption_key: %s\n", key)
	return 0
}
