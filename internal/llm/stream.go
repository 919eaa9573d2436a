package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// DeltaFunc receives each content fragment; returning an error aborts the stream.
type DeltaFunc func(delta string) error

// ChatStream performs a streaming completion, calling onDelta per fragment,
// and returns the accumulated result.
func (c *Client) ChatStream(ctx context.Context, ep Endpoint, messages []Message, onDelta DeltaFunc) (*ChatResult, error) {
	start := time.Now()
	req, err := c.newRequest(ctx, http.MethodPost, ep, "/chat/completions", chatRequest{
		Model:         ep.Model,
		Messages:      messages,
		Temperature:   ep.Temperature,
		MaxTokens:     ep.MaxTokens,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamHTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := readBody(resp.Body)
		return nil, errorFromResponse(resp.StatusCode, body)
	}

	out := &ChatResult{Model: ep.Model}
	var content strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		data, err := readEventData(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream read failed: %w", err)
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			break
		}
		var chunk streamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			c.log.Debug("skipping malformed stream chunk", "error", err)
			continue
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		if chunk.Usage != nil {
			out.Usage = *chunk.Usage
		}
		for _, choice := range chunk.Choices {
			if choice.FinishReason != nil {
				out.FinishReason = *choice.FinishReason
			}
			if choice.Delta.Content == "" {
				continue
			}
			content.WriteString(choice.Delta.Content)
			if onDelta != nil {
				if err := onDelta(choice.Delta.Content); err != nil {
					return nil, err
				}
			}
		}
	}
	out.Content = content.String()
	out.Duration = time.Since(start)
	if out.Content == "" && out.FinishReason == "" {
		return nil, ErrEmptyResponse
	}
	return out, nil
}

// readEventData returns the joined data lines of the next server-sent event.
func readEventData(r *bufio.Reader) ([]byte, error) {
	var lines [][]byte
	for {
		line, err := r.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")
		if err != nil {
			if err != io.EOF {
				return nil, err
			}
			// the body may end without a trailing newline
			if bytes.HasPrefix(line, []byte("data:")) {
				lines = append(lines, bytes.TrimSpace(line[5:]))
			}
			if len(lines) > 0 {
				return bytes.Join(lines, []byte("\n")), nil
			}
			return nil, io.EOF
		}
		if len(line) == 0 {
			if len(lines) > 0 {
				return bytes.Join(lines, []byte("\n")), nil
			}
			continue
		}
		if bytes.HasPrefix(line, []byte("data:")) {
			lines = append(lines, bytes.TrimSpace(line[5:]))
		}
	}
}
