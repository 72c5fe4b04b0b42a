package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/reqflow/pkg/client"
	"github.com/Sternrassler/reqflow/pkg/transport"
	"github.com/spf13/cobra"
)

func (a *app) getCommand() *cobra.Command {
	var (
		params   []string
		dataType string
		method   string
	)

	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Perform one request and print the response",
		Long: `Perform one request through the parser registry and print {status, body} as JSON.

URL may be absolute or relative to the configured upstream.`,
		Example: `  reqflow get https://api.example.com/v1/users --param id=7
  reqflow get /v1/orders --param region=2 --param type=sell --config reqflow.toml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}

			rt, err := newRuntime(cmd.Context(), a.settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.client.
				Do(cmd.Context(), method, args[0], p, client.WithDataType(dataType), client.WithTTL(0)).
				Await(cmd.Context())
			if err != nil {
				return err
			}
			if resp.IsParseError() {
				return fmt.Errorf("parse response: %w", resp.Err())
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload{Status: resp.Status, Body: resp.Body})
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "request parameter key=value (repeatable)")
	cmd.Flags().StringVar(&dataType, "data-type", transport.DefaultDataType, "payload type: json, text, html, xml, bytes")
	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")

	return cmd
}

// parseParams turns repeated key=value flags into params. Repeated keys
// collect into a slice.
func parseParams(pairs []string) (transport.Params, error) {
	params := transport.Params{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.New("param must be key=value: " + pair)
		}
		switch existing := params[key].(type) {
		case nil:
			params[key] = value
		case string:
			params[key] = []string{existing, value}
		case []string:
			params[key] = append(existing, value)
		}
	}
	return params, nil
}
