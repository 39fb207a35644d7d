// metricsctl is an interactive console for a running metricsd server.
//
// With arguments it runs one command and exits; without, and when stdin
// is a terminal, it starts an interactive prompt.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"golang.org/x/term"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8000", "metricsd server address")
	flag.Parse()

	c := &console{
		base:   strings.TrimRight(*addr, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
	}

	// One-shot mode: metricsctl summary myhost 24
	if flag.NArg() > 0 {
		c.execute(strings.Join(flag.Args(), " "))
		return
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "stdin is not a terminal; pass a command as arguments")
		os.Exit(1)
	}

	fmt.Printf("metricsctl connected to %s (type 'help' for commands)\n", c.base)
	p := prompt.New(
		c.execute,
		completer,
		prompt.OptionPrefix("metricsd> "),
		prompt.OptionTitle("metricsctl"),
	)
	p.Run()
}

// =============================================================================
// Console
// =============================================================================

type console struct {
	base   string
	client *http.Client
}

func (c *console) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "recent":
		c.get("/metrics", windowQuery(args))
	case "summary":
		c.get("/metrics/summary", windowQuery(args))
	case "live":
		q := url.Values{}
		if len(args) > 0 {
			q.Set("hostname", args[0])
		}
		c.get("/metrics/live", q)
	case "health":
		c.get("/health", nil)
	case "cleanup":
		q := url.Values{}
		if len(args) > 0 {
			q.Set("days_to_keep", args[0])
		}
		c.post("/cleanup", q)
	case "help":
		printHelp()
	case "exit", "quit":
		os.Exit(0)
	default:
		fmt.Printf("unknown command %q (type 'help')\n", cmd)
	}
}

// windowQuery builds hostname/hours query parameters from positional args.
func windowQuery(args []string) url.Values {
	q := url.Values{}
	if len(args) > 0 {
		q.Set("hostname", args[0])
	}
	if len(args) > 1 {
		q.Set("hours", args[1])
	}
	return q
}

func (c *console) get(path string, q url.Values) {
	c.do(http.MethodGet, path, q)
}

func (c *console) post(path string, q url.Values) {
	c.do(http.MethodPost, path, q)
}

func (c *console) do(method, path string, q url.Values) {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	resp, err := c.client.Do(req)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		// Not JSON; print raw.
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}

func printHelp() {
	fmt.Print(`commands:
  recent  [hostname] [hours]   recent records for a window
  summary [hostname] [hours]   aggregate statistics for a window
  live    [hostname]           in-memory streaming aggregates
  health                       server liveness
  cleanup [days]               expire records older than N days
  help                         this text
  exit                         leave the console
`)
}

func completer(d prompt.Document) []prompt.Suggest {
	suggestions := []prompt.Suggest{
		{Text: "recent", Description: "recent records for a window"},
		{Text: "summary", Description: "aggregate statistics for a window"},
		{Text: "live", Description: "in-memory streaming aggregates"},
		{Text: "health", Description: "server liveness"},
		{Text: "cleanup", Description: "expire old records"},
		{Text: "help", Description: "list commands"},
		{Text: "exit", Description: "leave the console"},
	}
	return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
}
