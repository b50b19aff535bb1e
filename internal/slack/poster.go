package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/clerk/internal/gateway"
	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// Notify announces newly committed returns in the returns channel.
// Duplicate rejections are not announced.
func (p *Poster) Notify(ctx context.Context, res gateway.Result) error {
	if res.Outcome != gateway.OutcomeCommitted {
		return nil
	}
	_, err := p.PostReturn(ctx, res.Record)
	return err
}

// PostReturn posts a summary of a committed return and returns the message
// timestamp.
func (p *Poster) PostReturn(ctx context.Context, r returns.Record) (string, error) {
	text := formatReturnMessage(r)

	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("Return ID `%s` | key `%s`", r.ID, shortKey(r.DedupKey)),
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}

	p.logger.Info("posted return to slack", "ts", ts, "return_id", r.ID.String())
	return ts, nil
}

// PostThread posts a threaded reply in channel and returns its timestamp.
// An empty channel uses the returns channel.
func (p *Poster) PostThread(ctx context.Context, channel, threadTS, text string) (string, error) {
	if channel == "" {
		channel = p.channel
	}
	return p.post(ctx, map[string]any{
		"channel":   channel,
		"thread_ts": threadTS,
		"text":      text,
	})
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatReturnMessage(r returns.Record) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*New return:* %s from %s\n", r.Product, r.Store)
	fmt.Fprintf(&sb, "*Purchased:* %s | *Returned:* %s\n", returns.FormatDate(r.PurchaseDate), returns.FormatDate(r.ReturnDate))
	fmt.Fprintf(&sb, "*Price:* %s %s\n", r.Price, r.Currency)
	fmt.Fprintf(&sb, "*Reason:* %s", r.Reason)

	var where []string
	for _, v := range []string{r.Category, r.City, r.Country} {
		if v != "" {
			where = append(where, v)
		}
	}
	if len(where) > 0 {
		fmt.Fprintf(&sb, "\n_%s_", strings.Join(where, " / "))
	}
	return sb.String()
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
