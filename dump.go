package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/pstuifzand/go-wikitemplates/wikitemplate"
)

// maxDumpLine bounds a single line of a dump. Article text lines can be long.
const maxDumpLine = 64 << 20

// DumpPage is one <page> of a pages-articles dump together with the
// templates resolved from its text.
type DumpPage struct {
	Title     string                    `json:"title"`
	NS        string                    `json:"ns"`
	ID        string                    `json:"id"`
	Timestamp string                    `json:"timestamp"`
	Username  string                    `json:"username"`
	Text      string                    `json:"text"`
	SHA1      string                    `json:"sha1"`
	Templates []wikitemplate.Invocation `json:"templates"`
}

// DumpOptions controls a dump scan.
type DumpOptions struct {
	// Namespace is the localized name of the template namespace, used to
	// find its key in the <namespaces> header.
	Namespace string
	// MaxPages stops the scan after this many pages; zero scans everything.
	MaxPages int
	// TemplateOnly emits only pages in the template namespace.
	TemplateOnly bool
	Logger       *slog.Logger
}

// DumpResult summarizes a scan.
type DumpResult struct {
	Pages        int                `json:"pages"`
	Emitted      int                `json:"emitted"`
	NamespaceKey string             `json:"namespace_key"`
	Stats        wikitemplate.Stats `json:"stats"`
}

// ScanDump streams a dump from r, resolves the templates of each page with
// core and passes the pages to emit.
func ScanDump(ctx context.Context, r io.Reader, core *WikiTextCore, opts DumpOptions, emit func(DumpPage) error) (DumpResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Namespace == "" {
		opts.Namespace = wikitemplate.DefaultNamespace
	}

	var result DumpResult
	namespaces := make(map[string]string)
	templateKey := strconv.Itoa(templateNamespaceID)

	var (
		inNamespaces bool
		inPage       bool
		pageLines    []string
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxDumpLine)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case inNamespaces:
			if key, name, ok := parseNamespaceLine(line); ok {
				namespaces[name] = key
			}
			if strings.Contains(line, "</namespaces>") {
				inNamespaces = false
				if key, ok := namespaces[opts.Namespace]; ok {
					templateKey = key
				} else {
					logger.Warn("Template namespace not in dump header, using default key",
						"namespace", opts.Namespace, "key", templateKey)
				}
				result.NamespaceKey = templateKey
			}

		case strings.Contains(line, "<namespaces>"):
			inNamespaces = true

		case inPage:
			if !strings.Contains(line, "</page>") {
				pageLines = append(pageLines, line)
				continue
			}
			inPage = false
			result.Pages++

			page, err := ParsePage(strings.Join(pageLines, "\n"))
			pageLines = nil
			if err != nil {
				logger.Warn("Skipping unparsable page", "page", result.Pages, "error", err)
				break
			}

			if opts.TemplateOnly && page.NS != templateKey {
				break
			}

			core.SetInputText(page.Text)
			page.Templates = core.GetTemplates()
			if err := emit(page); err != nil {
				return result, fmt.Errorf("emit page %q: %w", page.Title, err)
			}
			result.Emitted++
			logger.Debug("Page scanned", "title", page.Title, "ns", page.NS, "templates", len(page.Templates))

		case strings.Contains(line, "<page>"):
			inPage = true
			pageLines = pageLines[:0]
		}

		if opts.MaxPages > 0 && result.Pages >= opts.MaxPages {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read dump: %w", err)
	}

	if result.NamespaceKey == "" {
		result.NamespaceKey = templateKey
	}
	result.Stats = core.GetStats()
	return result, nil
}

// parseNamespaceLine reads a <namespace key="10" ...>Template</namespace>
// line. The default namespace has an empty name.
func parseNamespaceLine(line string) (key, name string, ok bool) {
	z := html.NewTokenizer(strings.NewReader(line))
	var text strings.Builder
	inNamespace := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return key, strings.TrimSpace(text.String()), ok
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := z.TagName()
			if string(tn) != "namespace" {
				continue
			}
			ok = true
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				if string(k) == "key" {
					key = string(v)
				}
			}
			inNamespace = tt == html.StartTagToken
		case html.TextToken:
			if inNamespace {
				text.Write(z.Text())
			}
		case html.EndTagToken:
			inNamespace = false
		}
	}
}

// ParsePage extracts the fields of one page from its XML. Only the first
// occurrence of an element is kept, so <id> is the page id. Self-closing
// elements such as <text bytes="0" /> are empty.
func ParsePage(pageXML string) (DumpPage, error) {
	z := html.NewTokenizer(strings.NewReader(pageXML))
	fields := make(map[string]*strings.Builder)
	open := ""

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return DumpPage{}, fmt.Errorf("parse page: %w", err)
			}
			return newDumpPage(fields)
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := z.TagName()
			name := string(tn)
			open = ""
			if _, seen := fields[name]; seen {
				continue
			}
			fields[name] = &strings.Builder{}
			if tt == html.StartTagToken {
				open = name
			}
		case html.TextToken:
			if open != "" {
				fields[open].Write(z.Text())
			}
		case html.EndTagToken:
			open = ""
		}
	}
}

func newDumpPage(fields map[string]*strings.Builder) (DumpPage, error) {
	field := func(name string) string {
		if b, ok := fields[name]; ok {
			return b.String()
		}
		return ""
	}

	page := DumpPage{
		Title:     strings.TrimSpace(field("title")),
		NS:        strings.TrimSpace(field("ns")),
		ID:        strings.TrimSpace(field("id")),
		Timestamp: strings.TrimSpace(field("timestamp")),
		Username:  strings.TrimSpace(field("username")),
		Text:      field("text"),
		SHA1:      strings.TrimSpace(field("sha1")),
	}
	if page.Title == "" {
		return DumpPage{}, fmt.Errorf("page without title")
	}
	return page, nil
}

// jsonLinesEmitter writes each page as one JSON object per line.
func jsonLinesEmitter(w io.Writer) func(DumpPage) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return func(page DumpPage) error {
		return enc.Encode(page)
	}
}
