// Package dictionary implements srv.WordChecker against a Merriam-Webster
// style lookup API, grounded on original_source/backend/src/game/utils.py's
// check_word_correctness.
package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var acceptedFuncLabels = map[string]bool{
	"noun": true, "verb": true, "adjective": true, "adverb": true,
}

const maxDefinitions = 3

// Client is an HTTP-backed word checker. URLTemplate must contain the
// literal substrings "{word}" and "{api_key}", substituted per request.
type Client struct {
	HTTPClient  *http.Client
	URLTemplate string
	APIKey      string
}

// New returns a Client with a bounded default timeout; the original source
// has no timeout on its httpx.Client call at all (see spec §9's open
// question on bounding the dictionary roundtrip), so this is a deliberate
// hardening beyond what original_source does.
func New(urlTemplate, apiKey string) *Client {
	return &Client{
		HTTPClient:  &http.Client{Timeout: 5 * time.Second},
		URLTemplate: urlTemplate,
		APIKey:      apiKey,
	}
}

type definition struct {
	Meta struct {
		ID string `json:"id"`
	} `json:"meta"`
	FL       string   `json:"fl"`
	ShortDef []string `json:"shortdef"`
}

// Check reports whether word exists per the external dictionary, along
// with up to three definitions when it does. A 5xx response or transport
// failure is returned as an error; callers treat that as the word being
// incorrect for the current turn (spec §7 DictionaryUnavailable).
func (c *Client) Check(ctx context.Context, word string) (bool, []string, error) {
	url := strings.NewReplacer("{word}", word, "{api_key}", c.APIKey).Replace(c.URLTemplate)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, nil, fmt.Errorf("dictionary: build request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, nil, fmt.Errorf("dictionary: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 5 {
		return false, nil, fmt.Errorf("dictionary: api unavailable, status %d", resp.StatusCode)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return false, nil, fmt.Errorf("dictionary: decode response: %w", err)
	}

	var defs []definition
	for _, elem := range raw {
		var s string
		if err := json.Unmarshal(elem, &s); err == nil {
			// a bare string entry means Merriam-Webster is suggesting
			// similar words: the queried word was not found
			return false, nil, nil
		}
		var d definition
		if err := json.Unmarshal(elem, &d); err != nil {
			continue
		}
		defs = append(defs, d)
	}

	var shortdefs []string
	for _, d := range defs {
		if !acceptedFuncLabels[d.FL] {
			continue
		}
		id := strings.ToLower(strings.SplitN(d.Meta.ID, ":", 2)[0])
		if id != strings.ToLower(word) {
			continue
		}
		shortdefs = append(shortdefs, d.ShortDef...)
		if len(shortdefs) >= maxDefinitions {
			break
		}
	}

	if len(shortdefs) > maxDefinitions {
		shortdefs = shortdefs[:maxDefinitions]
	}
	return true, shortdefs, nil
}
