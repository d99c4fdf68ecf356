// openapi validates and exports the HTTP API's OpenAPI document.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"taskflow-ai/internal/api"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: openapi <command> [file]")
		fmt.Println("Commands:")
		fmt.Println("  validate - Validate the OpenAPI document and list its operations")
		fmt.Println("  export   - Write the document as JSON to file, or stdout")
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	switch command {
	case "validate":
		return validate(os.Stdout)
	case "export":
		if len(args) == 0 {
			return export(os.Stdout)
		}
		f, err := os.Create(args[0]) // #nosec G304 -- operator supplied path
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", args[0], err)
		}
		if err := export(f); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func validate(w io.Writer) error {
	doc, err := api.OpenAPISpec(context.Background())
	if err != nil {
		return err
	}

	var ops []string
	for path, item := range doc.Paths.Map() {
		for method := range item.Operations() {
			ops = append(ops, method+" "+path)
		}
	}
	sort.Strings(ops)

	fmt.Fprintf(w, "OpenAPI %s document %q v%s is valid\n", doc.OpenAPI, doc.Info.Title, doc.Info.Version)
	for _, op := range ops {
		fmt.Fprintf(w, "  %s\n", op)
	}
	return nil
}

func export(w io.Writer) error {
	doc, err := api.OpenAPISpec(context.Background())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
