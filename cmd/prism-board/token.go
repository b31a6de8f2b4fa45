package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"prism-board/api"
)

type tokenOptions struct {
	count  int
	prefix string
	start  int
	ttl    time.Duration
	output string
}

func tokenCmd(root *rootOptions) *cobra.Command {
	opts := tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token [scope]",
		Short: "Sign bearer tokens with the local shared secret",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}
			if cfg.Auth.SharedSecret == "" {
				return errors.New("auth.shared_secret must be set to sign tokens")
			}
			tokens, err := generateTokens([]byte(cfg.Auth.SharedSecret), cfg.Auth.Audience, opts, args)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			if opts.output != "" {
				if err := writeTokens(opts.output, tokens); err != nil {
					return fmt.Errorf("write tokens: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), tokens[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.count, "count", 1, "number of tokens to generate")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "user", "scope prefix when count > 1")
	cmd.Flags().IntVar(&opts.start, "start", 1, "first scope index when count > 1")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&opts.output, "output", "", "also write all tokens to this file as a JSON array")
	return cmd
}

func generateTokens(secret []byte, audience string, opts tokenOptions, args []string) ([]string, error) {
	if opts.count < 1 {
		return nil, errors.New("count must be at least 1")
	}
	if opts.start < 1 {
		return nil, errors.New("start index must be at least 1")
	}
	if len(args) > 0 && opts.count > 1 {
		return nil, errors.New("explicit scope cannot be combined with count > 1")
	}
	tokens := make([]string, opts.count)
	for i := range tokens {
		scope := opts.prefix
		switch {
		case len(args) > 0:
			scope = args[0]
		case opts.count > 1:
			scope = fmt.Sprintf("%s-%d", opts.prefix, opts.start+i)
		}
		tok, err := api.IssueToken(secret, scope, audience, opts.ttl)
		if err != nil {
			return nil, err
		}
		tokens[i] = tok
	}
	return tokens, nil
}

func writeTokens(path string, tokens []string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
