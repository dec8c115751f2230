// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/wayfinder/cmd/wayfinder/cli"
	"github.com/bureau-foundation/wayfinder/lib/kerberos"
	"github.com/bureau-foundation/wayfinder/lib/world"
)

type opsParams struct {
	cli.JSONOutput
}

type operationEntry struct {
	Name       string           `json:"name"`
	Protection string           `json:"protection"`
	Params     []parameterEntry `json:"params"`

	// ParamsKnown is false when the server's parameter list for the
	// operation is not declared.
	ParamsKnown bool `json:"params_known"`
}

type parameterEntry struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

func (a *App) opsCommand() *cli.Command {
	var params opsParams
	return &cli.Command{
		Name:    "ops",
		Summary: "List the operations the client knows",
		Description: `List every operation in the client's catalog with its protection
class and declared parameters. Protected operations go through the
ticket protocol; restricted ones are refused locally.`,
		Usage: "wayfinder ops [--json]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("ops", &params)
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			var entries []operationEntry
			for _, operation := range kerberos.DefaultCatalog().Operations() {
				entry := operationEntry{
					Name:        operation.Name,
					Protection:  operation.Protection.String(),
					Params:      []parameterEntry{},
					ParamsKnown: operation.Params != nil,
				}
				for _, param := range operation.Params {
					entry.Params = append(entry.Params, parameterEntry{Name: param.Name, Type: param.Type, Required: param.Required})
				}
				entries = append(entries, entry)
			}
			if done, err := params.EmitJSON(a.Stdout, entries); done {
				return err
			}

			writer := tabwriter.NewWriter(a.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "OPERATION\tPROTECTION\tPARAMETERS")
			for _, entry := range entries {
				fmt.Fprintf(writer, "%s\t%s\t%s\n", entry.Name, entry.Protection, describeParams(entry))
			}
			return writer.Flush()
		},
	}
}

func describeParams(entry operationEntry) string {
	if !entry.ParamsKnown {
		return "?"
	}
	if len(entry.Params) == 0 {
		return "-"
	}
	names := make([]string, 0, len(entry.Params))
	for _, param := range entry.Params {
		name := param.Name
		if !param.Required {
			name += "?"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

type manParams struct {
	globalParams
	All bool `flag:"all" desc:"print the manual of every invocable operation"`
}

func (a *App) manCommand() *cli.Command {
	var params manParams
	return &cli.Command{
		Name:    "man",
		Summary: "Show the server's manual for an operation",
		Usage:   "wayfinder man <operation> | wayfinder man --all",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("man", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			var names []string
			switch {
			case params.All && len(args) == 0:
				for _, operation := range kerberos.DefaultCatalog().Operations() {
					if operation.Protection != kerberos.Restricted {
						names = append(names, operation.Name)
					}
				}
			case !params.All && len(args) == 1:
				names = args
			default:
				return fmt.Errorf("usage: wayfinder man <operation> | wayfinder man --all")
			}

			session, err := a.session(ctx, params.globalParams, "man")
			if err != nil {
				return err
			}
			defer session.Close()

			client := world.New(session.client)
			for _, name := range names {
				manual, err := client.Man(ctx, name)
				if err != nil {
					return err
				}
				if len(names) > 1 {
					fmt.Fprintf(a.Stdout, "== %s ==\n", name)
				}
				if err := writeRaw(a.Stdout, manual); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

type callParams struct {
	globalParams
	Params     string `flag:"params" desc:"parameters as a JSON object; comments and trailing commas are allowed"`
	ParamsFile string `flag:"params-file" desc:"read the parameter object from a file"`
}

func (a *App) callCommand() *cli.Command {
	var params callParams
	return &cli.Command{
		Name:    "call",
		Summary: "Invoke any catalog operation",
		Description: `Invoke one operation and print its result. Parameters come from
--params or --params-file (JSON with comments), then from key=value
arguments, which override. Values are converted by the declared
parameter type: booleans parse as true/false, arrays accept JSON or a
comma-separated list, and undeclared values are taken as JSON when
they parse and as strings otherwise.`,
		Usage: "wayfinder call <operation> [key=value ...] [--params JSONC | --params-file PATH]",
		Examples: []cli.Example{
			{
				Description: "Ask for a room's name",
				Command:     "wayfinder call room.name world_id=w1 room=r1",
			},
			{
				Description: "Submit ciphertexts from a file",
				Command:     "wayfinder call chip.whisperer --params-file whisper.jsonc",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("call", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: wayfinder call <operation> [key=value ...]")
			}
			operation, known := kerberos.DefaultCatalog().Lookup(args[0])
			switch {
			case !known:
				return fmt.Errorf("unknown operation %q (run 'wayfinder ops' for the catalog)", args[0])
			case operation.Protection == kerberos.Restricted:
				return fmt.Errorf("operation %q is restricted", args[0])
			}

			named, err := buildCallParams(operation, params.Params, params.ParamsFile, args[1:])
			if err != nil {
				return err
			}

			session, err := a.session(ctx, params.globalParams, "call")
			if err != nil {
				return err
			}
			defer session.Close()

			result, err := session.client.Invoke(ctx, operation.Name, named)
			if err != nil {
				return err
			}
			return writeRaw(a.Stdout, result)
		},
	}
}

// buildCallParams merges the JSONC object from inline or file with
// key=value pairs.
func buildCallParams(operation kerberos.Operation, inline, file string, pairs []string) (map[string]any, error) {
	if inline != "" && file != "" {
		return nil, fmt.Errorf("--params and --params-file are mutually exclusive")
	}
	source := []byte(inline)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading parameters: %w", err)
		}
		source = data
	}

	named := map[string]any{}
	if len(source) > 0 {
		if err := json.Unmarshal(jsonc.ToJSON(source), &named); err != nil {
			return nil, fmt.Errorf("parameters must be a JSON object: %w", err)
		}
	}

	types := make(map[string]string, len(operation.Params))
	for _, param := range operation.Params {
		types[param.Name] = param.Type
	}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		converted, err := convertParam(types[key], value)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", key, err)
		}
		named[key] = converted
	}
	return named, nil
}

func convertParam(declared, value string) (any, error) {
	switch declared {
	case "string":
		return value, nil
	case "boolean":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", value)
		}
		return parsed, nil
	case "array":
		if strings.HasPrefix(strings.TrimSpace(value), "[") {
			var items []any
			if err := json.Unmarshal(jsonc.ToJSON([]byte(value)), &items); err != nil {
				return nil, fmt.Errorf("invalid JSON array: %w", err)
			}
			return items, nil
		}
		if value == "" {
			return []string{}, nil
		}
		return strings.Split(value, ","), nil
	default:
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			return parsed, nil
		}
		return value, nil
	}
}
