package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
)

// templateNamespaceID is the MediaWiki namespace number of template pages.
const templateNamespaceID = 10

const userAgent = "go-wikitemplates/1.0 (template name list fetcher)"

// allPagesResponse is the part of an action=query&list=allpages answer we use.
type allPagesResponse struct {
	Continue *struct {
		APContinue string `json:"apcontinue"`
	} `json:"continue"`
	Query struct {
		AllPages []struct {
			Title string `json:"title"`
		} `json:"allpages"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// NameFetcher downloads page titles of one namespace from the MediaWiki API.
type NameFetcher struct {
	Client    *http.Client
	APIURL    string
	Namespace int
	// PageSize is the aplimit per request; zero means "max".
	PageSize int
	Logger   *slog.Logger
}

// FetchTemplateNames writes every title in namespace to w, one per line,
// and returns how many were written.
func FetchTemplateNames(ctx context.Context, client *http.Client, apiURL string, namespace int, w io.Writer) (int, error) {
	f := &NameFetcher{Client: client, APIURL: apiURL, Namespace: namespace}
	return f.Fetch(ctx, w)
}

// Fetch follows apcontinue until the listing is exhausted.
func (f *NameFetcher) Fetch(ctx context.Context, w io.Writer) (int, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	bw := bufio.NewWriter(w)
	total := 0
	cont := ""
	for batch := 1; ; batch++ {
		resp, err := f.fetchBatch(ctx, client, cont)
		if err != nil {
			return total, fmt.Errorf("fetch batch %d: %w", batch, err)
		}

		for _, page := range resp.Query.AllPages {
			if _, err := fmt.Fprintln(bw, page.Title); err != nil {
				return total, fmt.Errorf("write names: %w", err)
			}
			total++
		}
		logger.Debug("Fetched template names", "batch", batch, "count", len(resp.Query.AllPages), "total", total)

		if resp.Continue == nil || resp.Continue.APContinue == "" {
			break
		}
		cont = resp.Continue.APContinue
	}

	if err := bw.Flush(); err != nil {
		return total, fmt.Errorf("write names: %w", err)
	}
	return total, nil
}

func (f *NameFetcher) fetchBatch(ctx context.Context, client *http.Client, cont string) (*allPagesResponse, error) {
	limit := "max"
	if f.PageSize > 0 {
		limit = strconv.Itoa(f.PageSize)
	}
	params := url.Values{
		"action":      {"query"},
		"format":      {"json"},
		"list":        {"allpages"},
		"apnamespace": {strconv.Itoa(f.Namespace)},
		"aplimit":     {limit},
	}
	if cont != "" {
		params.Set("apcontinue", cont)
	}

	u, err := url.Parse(f.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", f.APIURL, err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	httpResp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", httpResp.Status)
	}

	var resp allPagesResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("api error %s: %s", resp.Error.Code, resp.Error.Info)
	}
	return &resp, nil
}

// errNamesExist reports that a name list was already downloaded.
var errNamesExist = errors.New("template name list already exists")

// fetchNamesFile downloads the template names into path. An existing file is
// left alone and reported with errNamesExist.
func fetchNamesFile(ctx context.Context, f *NameFetcher, path string) (int, error) {
	if _, err := os.Stat(path); err == nil {
		return 0, fmt.Errorf("%s: %w", path, errNamesExist)
	} else if !os.IsNotExist(err) {
		return 0, err
	}

	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}

	n, err := f.Fetch(ctx, out)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return n, err
	}

	if err := os.Rename(tmp, path); err != nil {
		return n, fmt.Errorf("rename %s: %w", tmp, err)
	}
	return n, nil
}
