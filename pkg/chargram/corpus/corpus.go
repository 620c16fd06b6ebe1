// Package corpus prepares plain-text input files from HTML pages.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements never contribute text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Head:     true,
}

// ExtractText returns the visible text of an HTML document. Text inside
// script, style and head elements is dropped.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(buf.String()), nil
}

// Stats reports what Build wrote.
type Stats struct {
	Files int
	Bytes int64
}

// Build extracts the text of every file in paths and appends it to out,
// separating documents with a newline. Files ending in .txt are copied as
// they are.
func Build(out io.Writer, paths []string) (Stats, error) {
	var stats Stats
	w := bufio.NewWriter(out)

	for _, p := range paths {
		text, err := fileText(p)
		if err != nil {
			return stats, fmt.Errorf("%s: %w", p, err)
		}
		n, err := w.WriteString(text)
		if err != nil {
			return stats, err
		}
		if err := w.WriteByte('\n'); err != nil {
			return stats, err
		}
		stats.Files++
		stats.Bytes += int64(n) + 1
	}
	return stats, w.Flush()
}

func fileText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".txt") {
		data, err := io.ReadAll(f)
		return string(data), err
	}
	return ExtractText(f)
}
