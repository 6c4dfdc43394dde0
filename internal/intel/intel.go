// Package intel looks up file hashes against public threat-intelligence
// feeds: MalwareBazaar, VirusTotal and URLHaus.
package intel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HashVerdict is one feed's answer for a hash. Fields beyond Found are
// feed-specific and omitted when empty.
type HashVerdict struct {
	Found      bool     `json:"found"`
	Reason     string   `json:"reason,omitempty"`
	Signature  string   `json:"signature,omitempty"`
	FileType   string   `json:"file_type,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Malicious  int      `json:"malicious,omitempty"`
	Suspicious int      `json:"suspicious,omitempty"`
	Harmless   int      `json:"harmless,omitempty"`
	URLs       []string `json:"urls,omitempty"`
}

// Report aggregates all feeds for one hash.
type Report struct {
	SHA256        string      `json:"sha256"`
	MalwareBazaar HashVerdict `json:"malwarebazaar"`
	VirusTotal    HashVerdict `json:"virustotal"`
	URLHaus       HashVerdict `json:"urlhaus"`
}

// Client queries the feeds. MalwareBazaar and URLHaus need no key;
// VirusTotal is skipped without one.
type Client struct {
	MalwareBazaarURL string
	URLHausURL       string
	VTAPIKey         string
	VTBaseURL        string

	HTTP *http.Client
	Log  zerolog.Logger
}

func NewClient(mbURL, urlhausURL, vtAPIKey string, log zerolog.Logger) *Client {
	return &Client{
		MalwareBazaarURL: mbURL,
		URLHausURL:       urlhausURL,
		VTAPIKey:         vtAPIKey,
		VTBaseURL:        "https://www.virustotal.com",
		HTTP:             &http.Client{Timeout: 15 * time.Second},
		Log:              log,
	}
}

// SHA256File hashes the file at path.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// LookupHash queries all feeds in parallel. Individual feed failures
// degrade to not-found verdicts; the report itself never fails.
func (c *Client) LookupHash(ctx context.Context, sha256Hex string) Report {
	report := Report{SHA256: sha256Hex}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		report.MalwareBazaar = c.lookupMalwareBazaar(ctx, sha256Hex)
	}()
	go func() {
		defer wg.Done()
		report.VirusTotal = c.lookupVirusTotal(ctx, sha256Hex)
	}()
	go func() {
		defer wg.Done()
		report.URLHaus = c.lookupURLHaus(ctx, sha256Hex)
	}()
	wg.Wait()

	return report
}

// ScanFile hashes a local file and looks the hash up.
func (c *Client) ScanFile(ctx context.Context, path string) (Report, error) {
	sum, err := SHA256File(path)
	if err != nil {
		return Report{}, fmt.Errorf("hash file: %w", err)
	}
	return c.LookupHash(ctx, sum), nil
}

func (c *Client) lookupMalwareBazaar(ctx context.Context, hash string) HashVerdict {
	form := url.Values{"query": {"get_info"}, "hash": {hash}}
	body, err := c.postForm(ctx, c.MalwareBazaarURL, form)
	if err != nil {
		c.Log.Debug().Err(err).Msg("malwarebazaar lookup failed")
		return HashVerdict{}
	}

	var parsed struct {
		QueryStatus string `json:"query_status"`
		Data        []struct {
			Signature string   `json:"signature"`
			FileType  string   `json:"file_type"`
			Tags      []string `json:"tags"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return HashVerdict{}
	}
	if parsed.QueryStatus != "ok" || len(parsed.Data) == 0 {
		return HashVerdict{}
	}
	info := parsed.Data[0]
	return HashVerdict{
		Found:     true,
		Signature: info.Signature,
		FileType:  info.FileType,
		Tags:      info.Tags,
	}
}

func (c *Client) lookupVirusTotal(ctx context.Context, hash string) HashVerdict {
	if c.VTAPIKey == "" {
		return HashVerdict{Reason: "missing_api_key"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.VTBaseURL+"/api/v3/files/"+hash, nil)
	if err != nil {
		return HashVerdict{}
	}
	req.Header.Set("x-apikey", c.VTAPIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Log.Debug().Err(err).Msg("virustotal lookup failed")
		return HashVerdict{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return HashVerdict{}
	}

	var parsed struct {
		Data struct {
			Attributes struct {
				Stats struct {
					Malicious  int `json:"malicious"`
					Suspicious int `json:"suspicious"`
					Harmless   int `json:"harmless"`
				} `json:"last_analysis_stats"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return HashVerdict{}
	}
	stats := parsed.Data.Attributes.Stats
	return HashVerdict{
		Found:      true,
		Malicious:  stats.Malicious,
		Suspicious: stats.Suspicious,
		Harmless:   stats.Harmless,
	}
}

func (c *Client) lookupURLHaus(ctx context.Context, hash string) HashVerdict {
	form := url.Values{"sha256_hash": {hash}}
	body, err := c.postForm(ctx, c.URLHausURL, form)
	if err != nil {
		c.Log.Debug().Err(err).Msg("urlhaus lookup failed")
		return HashVerdict{}
	}

	var parsed struct {
		QueryStatus string `json:"query_status"`
		Payloads    []struct {
			URL string `json:"url"`
		} `json:"payloads"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return HashVerdict{}
	}
	if parsed.QueryStatus != "ok" {
		return HashVerdict{}
	}
	urls := make([]string, 0, len(parsed.Payloads))
	for _, p := range parsed.Payloads {
		urls = append(urls, p.URL)
	}
	return HashVerdict{Found: true, URLs: urls}
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", endpoint, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
