// Command keygen creates an errdesk API key directly in the database and
// prints the raw key once. It is used to bootstrap the first admin key.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kiranshivaraju/errdesk/internal/apikey"
	"github.com/kiranshivaraju/errdesk/internal/config"
	"github.com/kiranshivaraju/errdesk/internal/store"
	"github.com/kiranshivaraju/errdesk/pkg/models"
)

type options struct {
	name   string
	scopes []string
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		slog.Error("keygen failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, errOut io.Writer) (options, error) {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(errOut)
	name := fs.String("name", "", "human readable key name (required)")
	scopes := fs.String("scopes", models.ScopeAdmin, "comma separated scopes: ingest, read, admin")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{name: strings.TrimSpace(*name)}
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			opts.scopes = append(opts.scopes, s)
		}
	}
	if opts.name == "" {
		return options{}, errors.New("-name is required")
	}
	if err := apikey.ValidateScopes(opts.scopes); err != nil {
		return options{}, err
	}
	return opts, nil
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	key, raw, err := apikey.New(opts.name, opts.scopes, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := store.NewPostgresStore(pool).CreateAPIKey(ctx, key); err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Fprintf(out, "id:     %s\nname:   %s\nscopes: %s\nkey:    %s\n\nStore this key now; it cannot be shown again.\n",
		key.ID, key.Name, strings.Join(key.Scopes, ","), raw)
	return nil
}
