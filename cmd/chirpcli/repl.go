package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/jasonrowsell/chirpstore/pkg/client"
)

// runInteractiveMode starts the Read-Eval-Print Loop.
func runInteractiveMode(cli *client.Client, addr string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Connected to chirpstore at %s (revision %s)\n", addr, cli.Revision().Name())
	fmt.Fprintln(out, "Type commands (e.g., GET key, LIST, LEN, STATUS, QUIT)")

	reader := bufio.NewReader(in)

	for {
		fmt.Fprintf(out, "%s> ", addr)

		input, err := reader.ReadString('\n')
		if err != nil {
			// Handle EOF (Ctrl+D) gracefully
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("error reading input: %w", err)
		}

		parts := strings.Fields(input)
		if len(parts) == 0 {
			continue
		}

		switch strings.ToUpper(parts[0]) {
		case "QUIT", "EXIT":
			fmt.Fprintln(out, "Exiting.")
			return nil
		case "HELP":
			printHelp(out)
			continue
		}

		output, err := executeCommand(cli, parts)
		if err != nil {
			fmt.Fprintf(out, "(error) %v\n", err)
			if client.IsFatal(err) {
				return err
			}
			continue
		}
		fmt.Fprintln(out, output)
	}
}

// executeCommand takes the command parts, calls the appropriate client method,
// and formats the output string or returns an error.
func executeCommand(cli *client.Client, parts []string) (string, error) {
	if len(parts) == 0 {
		return "", fmt.Errorf("no command provided")
	}

	command := strings.ToUpper(parts[0])
	args := parts[1:]

	switch command {
	case "STATUS":
		if len(args) != 0 {
			return "", fmt.Errorf("ERR wrong number of arguments for 'STATUS' command (usage: STATUS)")
		}
		doc, err := cli.Status()
		if err != nil {
			return "", err
		}
		return renderStatus(doc)

	case "LEN":
		if len(args) != 0 {
			return "", fmt.Errorf("ERR wrong number of arguments for 'LEN' command (usage: LEN)")
		}
		n, err := cli.Len()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(integer) %d", n), nil

	case "LIST":
		if len(args) > 2 {
			return "", fmt.Errorf("ERR wrong number of arguments for 'LIST' command (usage: LIST [start] [count])")
		}
		var start string
		count := 0
		if len(args) > 0 {
			start = args[0]
		}
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 0 {
				return "", fmt.Errorf("ERR count must be a non-negative integer, got %q", args[1])
			}
			count = n
		}
		page, err := cli.List(count, start)
		if err != nil {
			return "", err
		}
		return formatListing(page.Keys, page.Cursor), nil

	case "GET":
		if len(args) != 1 {
			return "", fmt.Errorf("ERR wrong number of arguments for 'GET' command (usage: GET key)")
		}
		value, err := cli.Get(args[0])
		if err != nil {
			if client.IsNotFound(err) {
				return "(nil)", nil
			}
			return "", err
		}
		return fmt.Sprintf("%q", string(value)), nil

	case "SIZE":
		if len(args) != 1 {
			return "", fmt.Errorf("ERR wrong number of arguments for 'SIZE' command (usage: SIZE key)")
		}
		n, err := cli.Size(args[0])
		if err != nil {
			if client.IsNotFound(err) {
				return "(nil)", nil
			}
			return "", err
		}
		return fmt.Sprintf("(integer) %d", n), nil

	default:
		return "", fmt.Errorf("ERR unknown command '%s'", parts[0])
	}
}

func formatListing(keys [][]byte, cursor []byte) string {
	if len(keys) == 0 {
		return "(empty list)"
	}
	var b strings.Builder
	for i, key := range keys {
		fmt.Fprintf(&b, "%d) %q\n", i+1, string(key))
	}
	if len(cursor) != 0 {
		fmt.Fprintf(&b, "(next) %q", string(cursor))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// renderStatus formats the status document as a two-column table.
func renderStatus(doc map[string]any) (string, error) {
	fields := make([]string, 0, len(doc))
	for field := range doc {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	data := pterm.TableData{{"Field", "Value"}}
	for _, field := range fields {
		data = append(data, []string{field, formatValue(doc[field])})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, v[k])
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(v)
	}
}

// printHelp displays basic usage instructions.
func printHelp(out io.Writer) {
	fmt.Fprintln(out, "chirpstore CLI Help:")
	fmt.Fprintln(out, "  STATUS                 - Show the server status document.")
	fmt.Fprintln(out, "  LEN                    - Show the number of keys.")
	fmt.Fprintln(out, "  LIST [start] [count]   - List keys at or after start.")
	fmt.Fprintln(out, "  GET <key>              - Get the value of key.")
	fmt.Fprintln(out, "  SIZE <key>             - Get the size of the value of key.")
	fmt.Fprintln(out, "  HELP                   - Show this help message.")
	fmt.Fprintln(out, "  QUIT / EXIT            - Disconnect and exit the CLI.")
}
