package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "discover":
		cmdDiscover(os.Args[2:])
	case "worker":
		cmdTick(os.Args[2:], "/worker")
	case "maintenance":
		cmdTick(os.Args[2:], "/maintenance")
	case "monitor":
		cmdTick(os.Args[2:], "/monitor")
	case "health":
		cmdHealth(os.Args[2:])
	case "enqueue":
		cmdEnqueue(os.Args[2:])
	case "status":
		cmdHealth(os.Args[2:])
	case "dlq-list":
		cmdDLQList(os.Args[2:])
	case "dlq-replay":
		cmdDLQReplay(os.Args[2:])
	case "queue-depths":
		cmdGet(os.Args[2:], "queue-depths", "/queue-depths")
	case "rate-limits":
		cmdGet(os.Args[2:], "rate-limits", "/rate-limits")
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Print(`enrichqueue-cli

Usage:
  enrichqueue-cli <command> [flags]

Commands:
  enqueue       Seed a batch of a given type (discover-artists, album_page, track_page, producer_discovery)
  status        Check server readiness
  dlq-list      List parked dead-letter items
  dlq-replay    Requeue dead-letter items back onto the queue
  queue-depths  Show per-batch-type, per-status queue depths
  rate-limits   Show last-observed upstream rate-limit state

  discover      Seed a discover-artists batch (shorthand for enqueue --type discover-artists)
  worker        Fire one dispatcher tick
  maintenance   Fire one maintenance tick
  monitor       Fire one health-monitor check
  health        Alias for status

Global flags:
  --api string   Base API URL (default from ENRICHQUEUE_API or http://localhost:8080)
`)
}

func apiBase(fs *flag.FlagSet) *string {
	defaultAPI := os.Getenv("ENRICHQUEUE_API")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:8080"
	}
	return fs.String("api", defaultAPI, "Base API URL")
}

func cmdDiscover(args []string) {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	api := apiBase(fs)
	query := fs.String("query", "", "Free-text artist search query")
	genre := fs.String("genre", "", "Genre sent in the request body (the server does not read it; without --query the server sweeps the first five genre seeds)")
	limit := fs.Int("limit", 0, "Result limit (optional)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	body := map[string]any{}
	if *query != "" {
		body["query"] = *query
	}
	if *genre != "" {
		body["genre"] = *genre
	}
	if *limit > 0 {
		body["limit"] = *limit
	}
	payload, err := json.Marshal(body)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	resp, err := httpPost(*api+"/discover-artists", payload)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(resp))
}

func cmdTick(args []string, path string) {
	fs := flag.NewFlagSet(strings.TrimPrefix(path, "/"), flag.ExitOnError)
	api := apiBase(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	resp, err := httpPost(*api+path, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(resp))
}

var enqueueRoutes = map[string]string{
	"discover-artists":   "/discover-artists",
	"album_page":         "/process-album-page",
	"track_page":         "/process-track-page",
	"producer_discovery": "/identify-producers",
}

func cmdEnqueue(args []string) {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	api := apiBase(fs)
	batchType := fs.String("type", "", "Batch type: discover-artists, album_page, track_page, producer_discovery")
	body := fs.String("body", "", "Raw JSON metadata to send as the request body")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	path, ok := enqueueRoutes[*batchType]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown --type %q, expected one of discover-artists, album_page, track_page, producer_discovery\n", *batchType)
		os.Exit(2)
	}

	var payload []byte
	if *body != "" {
		payload = []byte(*body)
	}

	resp, err := httpPost(*api+path, payload)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(resp))
}

func cmdDLQList(args []string) {
	fs := flag.NewFlagSet("dlq-list", flag.ExitOnError)
	api := apiBase(fs)
	limit := fs.Int("limit", 50, "Maximum number of items to list")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	resp, err := httpGet(fmt.Sprintf("%s/dlq?limit=%d", *api, *limit))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(resp))
}

func cmdDLQReplay(args []string) {
	fs := flag.NewFlagSet("dlq-replay", flag.ExitOnError)
	api := apiBase(fs)
	limit := fs.Int("limit", 50, "Maximum number of items to requeue")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	resp, err := httpPost(fmt.Sprintf("%s/dlq/replay?limit=%d", *api, *limit), nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(resp))
}

func cmdGet(args []string, name, path string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	api := apiBase(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	resp, err := httpGet(*api + path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(resp))
}

func cmdHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	api := apiBase(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	resp, err := httpGet(*api + "/healthz")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(resp))
}

func httpGet(url string) ([]byte, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func httpPost(url string, body []byte) ([]byte, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(http.MethodPost, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
