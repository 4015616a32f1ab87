package titles

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type messageList struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text *struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

type rawTitle struct {
	Index     json.RawMessage `json:"index"`
	Text      string          `json:"text"`
	Style     string          `json:"style"`
	Sentiment string          `json:"sentiment"`
	Keywords  json.RawMessage `json:"keywords"`
}

// ParseMessages extracts title candidates from a raw messages list response.
// Only the first message carrying a text block is considered.
func ParseMessages(raw []byte) ([]TitleCandidate, error) {
	text, err := firstText(raw)
	if err != nil {
		return nil, err
	}
	return ParsePayload(text)
}

func firstText(raw []byte) (string, error) {
	var list messageList
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", newError(NoTextContent, fmt.Errorf("decode messages: %w", err))
	}
	for _, m := range list.Data {
		for _, c := range m.Content {
			if c.Type == "text" && c.Text != nil {
				return c.Text.Value, nil
			}
		}
	}
	return "", newError(NoTextContent, errors.New("no text block in any message"))
}

// ParsePayload decodes the assistant's JSON reply into candidates.
// Entries that are not objects or that carry no text are skipped; a reply
// with a null titles value or no usable entry is UnexpectedResponseFormat.
func ParsePayload(text string) ([]TitleCandidate, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(CleanJSONBlock(text)), &payload); err != nil {
		return nil, newError(UnexpectedResponseFormat, fmt.Errorf("decode payload: %w", err))
	}
	rawTitles, ok := payload["titles"]
	if !ok {
		return nil, newError(UnexpectedResponseFormat, errors.New("missing titles key"))
	}
	if bytes.Equal(bytes.TrimSpace(rawTitles), []byte("null")) {
		return nil, newError(UnexpectedResponseFormat, errors.New("titles is null"))
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(rawTitles, &entries); err != nil {
		return nil, newError(UnexpectedResponseFormat, fmt.Errorf("titles is not an array: %w", err))
	}

	out := make([]TitleCandidate, 0, len(entries))
	for i, e := range entries {
		var rt rawTitle
		if err := json.Unmarshal(e, &rt); err != nil {
			continue
		}
		text := strings.TrimSpace(rt.Text)
		if text == "" {
			continue
		}
		out = append(out, TitleCandidate{
			Index:     parseIndex(rt.Index, i+1),
			Text:      text,
			Style:     strings.TrimSpace(rt.Style),
			Sentiment: NormalizeSentiment(rt.Sentiment),
			Keywords:  parseKeywords(rt.Keywords),
		})
	}
	if len(out) == 0 {
		return nil, newError(UnexpectedResponseFormat, fmt.Errorf("no usable titles in %d entries", len(entries)))
	}
	return out, nil
}

// parseIndex accepts a number or numeric string and falls back to the position.
func parseIndex(raw json.RawMessage, fallback int) int {
	if len(raw) == 0 {
		return fallback
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fallback
		}
		n = json.Number(strings.TrimSpace(s))
	}
	if v, err := n.Int64(); err == nil && v > 0 {
		return int(v)
	}
	return fallback
}

// parseKeywords accepts a string array or a comma separated string.
// Non-string array members and blanks are dropped.
func parseKeywords(raw json.RawMessage) []string {
	kws := []string{}
	if len(raw) == 0 {
		return kws
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, v := range list {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				kws = append(kws, strings.TrimSpace(s))
			}
		}
		return kws
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				kws = append(kws, p)
			}
		}
	}
	return kws
}
