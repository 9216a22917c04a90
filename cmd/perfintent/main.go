package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Adityashandilya555/personifi-aria-sub001/internal/events"
)

type options struct {
	baseURL    string
	userID     string
	rounds     int
	interDelay time.Duration
	watch      bool
	verbose    bool
	steps      []scriptStep
}

type scriptStep struct {
	label  string
	signal string
	text   string
}

type processRequest struct {
	UserID     string `json:"user_id"`
	Message    string `json:"message"`
	TopicLabel string `json:"topic_label,omitempty"`
	Signal     string `json:"signal,omitempty"`
}

type processResult struct {
	Detected   bool   `json:"detected"`
	Created    bool   `json:"created,omitempty"`
	TopicID    string `json:"topic_id,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Confidence int    `json:"confidence"`
	Phase      string `json:"phase,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
}

type stageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type stageIndicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type latencySnapshot struct {
	GeneratedAt string           `json:"generated_at"`
	WindowSize  int              `json:"window_size"`
	Stages      []stageStats     `json:"stages"`
	Indicators  []stageIndicator `json:"indicators,omitempty"`
}

// defaultScript walks one topic from first mention to execution while a
// second topic idles, so the warmest-topic routing and every confidence
// band show up in a single replay round.
var defaultScript = []scriptStep{
	{label: "sushi dinner", signal: "positive", text: "that new omakase counter looks amazing"},
	{label: "sushi dinner", signal: "positive", text: "I keep circling back to going this weekend"},
	{label: "museum pass", signal: "neutral", text: "the print exhibit opens next month apparently"},
	{label: "sushi dinner", signal: "committed", text: "booked a table for Saturday at eight"},
	{label: "", signal: "positive", text: "should I invite the others along too?"},
	{label: "", signal: "committed", text: "just paid the deposit for all of us"},
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfintent: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "perfintent: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var scriptRaw string
	var interMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "Aria base URL")
	flag.StringVar(&cfg.userID, "user-id", "perf-replay", "user_id used for the synthetic conversation")
	flag.IntVar(&cfg.rounds, "rounds", 3, "number of times to replay the script")
	flag.IntVar(&interMS, "inter-message-ms", 120, "delay between messages in milliseconds")
	flag.BoolVar(&cfg.watch, "watch", true, "subscribe to the topic event stream and count events")
	flag.StringVar(&scriptRaw, "script", "", "steps separated by '|', each 'label::signal::message' (optional)")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if strings.TrimSpace(cfg.userID) == "" {
		return options{}, fmt.Errorf("user-id is required")
	}
	if cfg.rounds <= 0 {
		return options{}, fmt.Errorf("rounds must be > 0")
	}
	if interMS < 0 {
		interMS = 0
	}
	cfg.interDelay = time.Duration(interMS) * time.Millisecond

	if strings.TrimSpace(scriptRaw) == "" {
		cfg.steps = append([]scriptStep(nil), defaultScript...)
	} else {
		for _, part := range strings.Split(scriptRaw, "|") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			fields := strings.SplitN(part, "::", 3)
			if len(fields) != 3 {
				return options{}, fmt.Errorf("script step %q is not 'label::signal::message'", part)
			}
			step := scriptStep{
				label:  strings.TrimSpace(fields[0]),
				signal: strings.TrimSpace(fields[1]),
				text:   strings.TrimSpace(fields[2]),
			}
			if step.text == "" {
				return options{}, fmt.Errorf("script step %q has an empty message", part)
			}
			cfg.steps = append(cfg.steps, step)
		}
		if len(cfg.steps) == 0 {
			return options{}, fmt.Errorf("script produced no steps")
		}
	}
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	httpClient := &http.Client{Timeout: 15 * time.Second}

	var conn *websocket.Conn
	countsCh := make(chan map[string]int, 1)
	if cfg.watch {
		wsURL, err := wsURLForUser(cfg.baseURL, cfg.userID)
		if err != nil {
			return fmt.Errorf("build ws URL: %w", err)
		}
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			return fmt.Errorf("open event stream: %w", err)
		}
		defer conn.Close()
		go watchEvents(conn, countsCh)
	}

	if cfg.verbose {
		fmt.Printf("perfintent: user=%s rounds=%d steps=%d watch=%v\n", cfg.userID, cfg.rounds, len(cfg.steps), cfg.watch)
	}

	total := cfg.rounds * len(cfg.steps)
	sent := 0
	for round := 0; round < cfg.rounds; round++ {
		for i, step := range cfg.steps {
			res, err := postMessage(ctx, httpClient, cfg, step)
			if err != nil {
				return fmt.Errorf("round %d step %d: %w", round+1, i+1, err)
			}
			sent++
			if cfg.verbose {
				fmt.Printf("perfintent: %d/%d label=%q signal=%q -> topic=%q phase=%s confidence=%d\n",
					sent, total, step.label, step.signal, res.Topic, res.Phase, res.Confidence)
			}
			if cfg.interDelay > 0 && sent < total {
				time.Sleep(cfg.interDelay)
			}
		}
	}

	snapshot, err := fetchLatency(ctx, httpClient, cfg.baseURL)
	if err != nil {
		return fmt.Errorf("fetch latency snapshot: %w", err)
	}
	printSnapshot(snapshot)

	if cfg.watch && conn != nil {
		// Give the server a beat to flush events queued by the last mutation.
		time.Sleep(300 * time.Millisecond)
		deadline := time.Now().Add(2 * time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
		select {
		case counts := <-countsCh:
			printEventCounts(counts)
		case <-time.After(2 * time.Second):
			fmt.Println("perfintent: event stream did not drain in time")
		}
	}

	if cfg.verbose {
		fmt.Println("perfintent: replay completed")
	}
	return nil
}

func postMessage(ctx context.Context, client *http.Client, cfg options, step scriptStep) (processResult, error) {
	payload, err := json.Marshal(processRequest{
		UserID:     cfg.userID,
		Message:    step.text,
		TopicLabel: step.label,
		Signal:     step.signal,
	})
	if err != nil {
		return processResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/v1/intents/message", bytes.NewReader(payload))
	if err != nil {
		return processResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return processResult{}, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return processResult{}, err
	}
	if res.StatusCode != http.StatusOK {
		return processResult{}, fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out processResult
	if err := json.Unmarshal(body, &out); err != nil {
		return processResult{}, err
	}
	return out, nil
}

func fetchLatency(ctx context.Context, client *http.Client, baseURL string) (latencySnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/perf/latency", nil)
	if err != nil {
		return latencySnapshot{}, err
	}
	res, err := client.Do(req)
	if err != nil {
		return latencySnapshot{}, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return latencySnapshot{}, err
	}
	if res.StatusCode != http.StatusOK {
		return latencySnapshot{}, fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out latencySnapshot
	if err := json.Unmarshal(body, &out); err != nil {
		return latencySnapshot{}, err
	}
	return out, nil
}

func printSnapshot(s latencySnapshot) {
	fmt.Printf("perfintent: mutation stage window size=%d stages=%d\n", s.WindowSize, len(s.Stages))
	for _, st := range s.Stages {
		line := fmt.Sprintf("  %-16s samples=%-4d p50=%.2fms p95=%.2fms p99=%.2fms last=%.2fms",
			st.Stage, st.Samples, st.P50MS, st.P95MS, st.P99MS, st.LastMS)
		if st.TargetP95MS > 0 {
			status := "ok"
			if st.P95MS > st.TargetP95MS {
				status = "over"
			}
			line += fmt.Sprintf(" target_p95=%.0fms [%s]", st.TargetP95MS, status)
		}
		fmt.Println(line)
	}
	for _, ind := range s.Indicators {
		fmt.Printf("  indicator %s=%d\n", ind.Name, ind.Count)
	}
}

func printEventCounts(counts map[string]int) {
	if len(counts) == 0 {
		fmt.Println("perfintent: no events observed")
		return
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	fmt.Printf("perfintent: events %s\n", strings.Join(parts, " "))
}

func wsURLForUser(baseURL, userID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/intents/ws"
	q := u.Query()
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func watchEvents(conn *websocket.Conn, countsCh chan<- map[string]int) {
	counts := make(map[string]int)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			countsCh <- counts
			return
		}
		var ev events.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if ev.Type == "" {
			continue
		}
		counts[string(ev.Type)]++
	}
}
