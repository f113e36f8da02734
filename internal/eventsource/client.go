// Package eventsource fetches raw behavioral events from the external
// analytics export API.
package eventsource

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/analytics/internal/apperrors"
	"github.com/gosight/gosight/analytics/internal/config"
	"github.com/gosight/gosight/analytics/internal/events"
)

const maxLineSize = 4 * 1024 * 1024

// Fetcher is the Event Source Client contract consumed by the orchestrator.
type Fetcher interface {
	FetchEvents(ctx context.Context, start, end time.Time, names []string) FetchResult
}

// FetchResult carries the events of one window. Err is set when Success is
// false.
type FetchResult struct {
	Success      bool
	Events       []events.RawEvent
	APICallCount int
	Err          error
}

type Client struct {
	baseURL    string
	projectID  string
	apiSecret  string
	maxRetries int
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

func NewClient(cfg config.EventSourceConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		projectID:  cfg.ProjectID,
		apiSecret:  cfg.APISecret,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// FetchEvents exports every event in [start, end). The export API works in
// whole days so the window is widened on the wire and narrowed again here.
// An empty names filter fetches the whole vocabulary; names outside it are
// dropped.
func (c *Client) FetchEvents(ctx context.Context, start, end time.Time, names []string) FetchResult {
	if len(names) == 0 {
		names = events.VocabularyStrings()
	}
	endpoint, err := c.exportURL(start, end, names)
	if err != nil {
		return FetchResult{Err: apperrors.NewFetchError("invalid export url", err)}
	}

	var (
		calls int
		raw   []events.RawEvent
	)

	op := func() error {
		calls++
		out, err := c.export(ctx, endpoint)
		if err != nil {
			log.Warn().Err(err).Int("attempt", calls).Msg("Event export attempt failed")
			return err
		}
		raw = out
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return FetchResult{
			APICallCount: calls,
			Err:          apperrors.NewFetchError(fmt.Sprintf("event export failed after %d calls", calls), err),
		}
	}

	return FetchResult{
		Success:      true,
		Events:       filterEvents(raw, start, end, names),
		APICallCount: calls,
	}
}

func (c *Client) exportURL(start, end time.Time, names []string) (string, error) {
	parsed, err := url.Parse(c.baseURL + "/api/2.0/export")
	if err != nil {
		return "", err
	}

	query := parsed.Query()
	query.Set("from_date", start.UTC().Format("2006-01-02"))
	query.Set("to_date", end.UTC().Add(-time.Nanosecond).Format("2006-01-02"))
	if c.projectID != "" {
		query.Set("project_id", c.projectID)
	}
	if len(names) > 0 {
		filter, err := json.Marshal(names)
		if err != nil {
			return "", err
		}
		query.Set("event", string(filter))
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *Client) export(ctx context.Context, endpoint string) ([]events.RawEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.SetBasicAuth(c.apiSecret, "")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("export api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	return decodeExport(resp.Body)
}

type exportLine struct {
	Event      string                 `json:"event"`
	Properties map[string]interface{} `json:"properties"`
}

// decodeExport reads the newline-delimited export body. A malformed line
// fails the whole attempt.
func decodeExport(r io.Reader) ([]events.RawEvent, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var out []events.RawEvent
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var el exportLine
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&el); err != nil {
			return nil, fmt.Errorf("malformed export line: %w", err)
		}
		if el.Properties == nil {
			el.Properties = map[string]interface{}{}
		}

		out = append(out, events.RawEvent{
			Name:       el.Event,
			DistinctID: events.DistinctIDField.String(el.Properties),
			Timestamp:  eventTime(el.Properties),
			Properties: el.Properties,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// eventTime reads the epoch "time" property, accepting seconds or
// milliseconds.
func eventTime(props map[string]interface{}) time.Time {
	v, ok := events.Field{"time", "$time", "timestamp"}.Float(props)
	if !ok || v <= 0 {
		return time.Time{}
	}
	if v > 1e12 {
		return time.UnixMilli(int64(v)).UTC()
	}
	sec := int64(v)
	return time.Unix(sec, int64((v-float64(sec))*1e9)).UTC()
}

func filterEvents(raw []events.RawEvent, start, end time.Time, names []string) []events.RawEvent {
	var allowed map[string]struct{}
	if len(names) > 0 {
		allowed = make(map[string]struct{}, len(names))
		for _, n := range names {
			allowed[n] = struct{}{}
		}
	}

	out := make([]events.RawEvent, 0, len(raw))
	for _, ev := range raw {
		if ev.Timestamp.Before(start) || !ev.Timestamp.Before(end) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[ev.Name]; !ok {
				continue
			}
		}
		out = append(out, ev)
	}
	return out
}
