package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	apiclient "github.com/melsimpson1023/project-2-gemstone/pkg/api/client"
)

type cliConfig struct {
	APIBaseURL string `json:"api_base_url"`
	Token      string `json:"token"`
	UserID     string `json:"user_id,omitempty"`
	Email      string `json:"email,omitempty"`
}

var buildVersion = "dev"

const requestTimeout = 15 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "sign-up":
		return commandSignUp(args, out)
	case "sign-in":
		return commandSignIn(args, out)
	case "sign-out":
		return commandSignOut(args, out)
	case "change-password":
		return commandChangePassword(args, out)
	case "list":
		return commandList(args, out)
	case "get":
		return commandGet(args, out)
	case "create":
		return commandCreate(args, out)
	case "update":
		return commandUpdate(args, out)
	case "delete":
		return commandDelete(args, out)
	case "version", "--version", "-v":
		fmt.Fprintln(out, strings.TrimSpace(buildVersion))
		return nil
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func commandSignUp(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sign-up", flag.ContinueOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+apiclient.DefaultBaseURL+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, confirmation := *password, *password
	if secret == "" {
		var err error
		if secret, err = promptPassword("Password: "); err != nil {
			return err
		}
		if confirmation, err = promptPassword("Confirm password: "); err != nil {
			return err
		}
	}

	cfg, client, err := clientFor(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	user, err := client.SignUp(ctx, *email, secret, confirmation)
	if err != nil {
		return err
	}
	cfg.Email = user.Email
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "account created: %s (%s)\n", user.Email, user.ID)
	return nil
}

func commandSignIn(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sign-in", flag.ContinueOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+apiclient.DefaultBaseURL+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret := *password
	if secret == "" {
		var err error
		if secret, err = promptPassword("Password: "); err != nil {
			return err
		}
	}

	cfg, client, err := clientFor(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	user, err := client.SignIn(ctx, *email, secret)
	if err != nil {
		return err
	}
	cfg.Token = user.Token
	cfg.UserID = user.ID
	cfg.Email = user.Email
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, "signed in as", user.Email)
	return nil
}

func commandSignOut(args []string, out io.Writer) error {
	cfg, client, err := signedInClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := client.SignOut(ctx, cfg.Token); err != nil {
		return err
	}
	cfg.Token = ""
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, "signed out")
	return nil
}

func commandChangePassword(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("change-password", flag.ContinueOnError)
	oldPassword := fs.String("old", "", "Current password (supply to avoid prompt)")
	newPassword := fs.String("new", "", "New password (supply to avoid prompt)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, client, err := signedInClient()
	if err != nil {
		return err
	}
	oldSecret, newSecret := *oldPassword, *newPassword
	if oldSecret == "" {
		if oldSecret, err = promptPassword("Current password: "); err != nil {
			return err
		}
	}
	if newSecret == "" {
		if newSecret, err = promptPassword("New password: "); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := client.ChangePassword(ctx, cfg.Token, oldSecret, newSecret); err != nil {
		return err
	}
	fmt.Fprintln(out, "password changed")
	return nil
}

func commandList(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	limit := fs.Int("limit", 0, "Maximum number of gemstones to display")
	mine := fs.Bool("mine", false, "Only show gemstones you own")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, client, err := signedInClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	gems, err := client.ListGemstones(ctx, cfg.Token)
	if err != nil {
		return err
	}
	var owner string
	if *mine {
		if cfg.UserID == "" {
			return errors.New("sign in again to use --mine")
		}
		owner = cfg.UserID
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	shown := 0
	for _, gem := range gems {
		if owner != "" && gem.Owner != owner {
			continue
		}
		if *limit > 0 && shown >= *limit {
			break
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", gem.ID, gem.Title, gem.Text, gem.UpdatedAt.Format(time.RFC3339))
		shown++
	}
	return tw.Flush()
}

func commandGet(args []string, out io.Writer) error {
	id, err := idArg("get", args)
	if err != nil {
		return err
	}
	cfg, client, err := signedInClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	gem, err := client.GetGemstone(ctx, cfg.Token, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(gem)
}

func commandCreate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	title := fs.String("title", "", "Gemstone title")
	text := fs.String("text", "", "Gemstone text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*title) == "" {
		return errors.New("--title is required")
	}
	if strings.TrimSpace(*text) == "" {
		return errors.New("--text is required")
	}
	cfg, client, err := signedInClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	gem, err := client.CreateGemstone(ctx, cfg.Token, apiclient.GemstoneInput{Title: *title, Text: *text})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "gemstone created: %s (%s)\n", gem.ID, gem.Title)
	return nil
}

func commandUpdate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	id := fs.String("id", "", "Gemstone identifier")
	title := fs.String("title", "", "New title (left unchanged when empty)")
	text := fs.String("text", "", "New text (left unchanged when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}
	cfg, client, err := signedInClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := client.UpdateGemstone(ctx, cfg.Token, *id, apiclient.GemstoneInput{Title: *title, Text: *text}); err != nil {
		return err
	}
	fmt.Fprintln(out, "gemstone updated")
	return nil
}

func commandDelete(args []string, out io.Writer) error {
	id, err := idArg("delete", args)
	if err != nil {
		return err
	}
	cfg, client, err := signedInClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := client.DeleteGemstone(ctx, cfg.Token, id); err != nil {
		return err
	}
	fmt.Fprintln(out, "gemstone deleted")
	return nil
}

func idArg(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	id := fs.String("id", "", "Gemstone identifier")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if strings.TrimSpace(*id) == "" && fs.NArg() > 0 {
		*id = fs.Arg(0)
	}
	if strings.TrimSpace(*id) == "" {
		return "", errors.New("--id is required")
	}
	return strings.TrimSpace(*id), nil
}

func promptPassword(label string) (string, error) {
	fmt.Print(label)
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

func clientFor(apiBase string) (cliConfig, *apiclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cliConfig{}, nil, err
	}
	if strings.TrimSpace(apiBase) != "" {
		cfg.APIBaseURL = strings.TrimSpace(apiBase)
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return cliConfig{}, nil, err
	}
	return cfg, client, nil
}

func signedInClient() (cliConfig, *apiclient.Client, error) {
	cfg, client, err := clientFor("")
	if err != nil {
		return cliConfig{}, nil, err
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return cliConfig{}, nil, errors.New("please sign in first using 'gemctl sign-in'")
	}
	return cfg, client, nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: apiclient.DefaultBaseURL}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = apiclient.DefaultBaseURL
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// configPath honours GEMCTL_CONFIG before falling back to the user config dir.
func configPath() (string, error) {
	if override := strings.TrimSpace(os.Getenv("GEMCTL_CONFIG")); override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "gemctl", "config.json"), nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "gemctl %s\n\n", buildVersion)
	fmt.Fprint(w, `Usage:
	gemctl sign-up --email user@example.com [--password secret] [--api `+apiclient.DefaultBaseURL+`]
	gemctl sign-in --email user@example.com [--password secret] [--api `+apiclient.DefaultBaseURL+`]
	gemctl sign-out
	gemctl change-password [--old secret] [--new secret]
	gemctl list [--limit N] [--mine]
	gemctl get --id <gemstone-id>
	gemctl create --title <title> --text <text>
	gemctl update --id <gemstone-id> [--title <title>] [--text <text>]
	gemctl delete --id <gemstone-id>
	gemctl version
`)
}
