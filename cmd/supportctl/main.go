// Command supportctl is an interactive terminal client for the support
// agent's HTTP API.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type source struct {
	SourceFile     string  `json:"source_file"`
	Category       string  `json:"category"`
	RelevanceScore float64 `json:"relevance_score"`
}

type chatResponse struct {
	Answer           string   `json:"answer"`
	Sources          []source `json:"sources"`
	Intent           string   `json:"intent"`
	NeedsEscalation  bool     `json:"needs_escalation"`
	ProcessingTimeMS int64    `json:"processing_time_ms"`
}

type apiError struct {
	Status int
	Kind   string `json:"error"`
	Detail string `json:"detail"`
}

func (e *apiError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Detail, e.Status)
}

type client struct {
	base string
	http *http.Client
}

func main() {
	addr := flag.String("addr", "http://localhost:8000", "support agent base URL")
	sessionID := flag.String("session", "", "session id (random when empty)")
	timeout := flag.Duration("timeout", 2*time.Minute, "per-request timeout")
	flag.Parse()

	if *sessionID == "" {
		*sessionID = uuid.NewString()
	}
	c := &client{base: strings.TrimRight(*addr, "/"), http: &http.Client{Timeout: *timeout}}

	if err := repl(context.Background(), c, *sessionID, os.Stdin, color.Output); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func repl(ctx context.Context, c *client, sessionID string, in io.Reader, out io.Writer) error {
	dim := color.New(color.Faint)
	prompt := color.New(color.FgCyan, color.Bold)
	agent := color.New(color.FgGreen)
	warn := color.New(color.FgYellow, color.Bold)
	fail := color.New(color.FgRed)

	dim.Fprintf(out, "NovaTel support (session %s). /reset clears history, /quit exits.\n", sessionID)

	scanner := bufio.NewScanner(in)
	for {
		prompt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			msg, err := c.clear(ctx, sessionID)
			if err != nil {
				fail.Fprintln(out, err)
				continue
			}
			dim.Fprintln(out, msg)
			continue
		}

		resp, err := c.chat(ctx, sessionID, line)
		if err != nil {
			fail.Fprintln(out, err)
			continue
		}
		agent.Fprintf(out, "alex> %s\n", resp.Answer)
		dim.Fprintf(out, "      intent=%s time=%dms\n", resp.Intent, resp.ProcessingTimeMS)
		for _, s := range resp.Sources {
			dim.Fprintf(out, "      source: %s [%s] %.2f\n", s.SourceFile, s.Category, s.RelevanceScore)
		}
		if resp.NeedsEscalation {
			warn.Fprintln(out, "      this conversation has been flagged for a human agent")
		}
	}
}

func (c *client) chat(ctx context.Context, sessionID, message string) (*chatResponse, error) {
	body, err := json.Marshal(chatRequest{SessionID: sessionID, Message: message})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out chatResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) clear(ctx context.Context, sessionID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/session/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return "", err
	}
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(errors.New("unexpected response"), err)
	}
	return nil
}
