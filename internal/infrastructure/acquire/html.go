package acquire

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

const (
	minParagraphChars = 50
	maxFallbackParas  = 10
)

// ExtractReadableText pulls the readable body out of an academic landing
// page: scripts, styles and chrome are dropped, a semantic abstract/article
// region is preferred, and the first few substantial paragraphs serve as a
// last resort.
func ExtractReadableText(payload []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	if region := findContentRegion(doc); region != nil {
		if text := collapse(nodeText(region)); text != "" {
			return text, nil
		}
	}

	paras := collectParagraphs(doc)
	if len(paras) > maxFallbackParas {
		paras = paras[:maxFallbackParas]
	}
	return strings.Join(paras, " "), nil
}

// findContentRegion walks the tree for the common academic abstract
// containers, then generic article/main elements.
func findContentRegion(doc *html.Node) *html.Node {
	if n := findMatch(doc, func(n *html.Node) bool {
		return n.Data == "div" && (attr(n, "id") == "abstract" || hasClass(n, "abstract-content"))
	}); n != nil {
		return n
	}
	if n := findMatch(doc, func(n *html.Node) bool { return n.Data == "article" }); n != nil {
		return n
	}
	return findMatch(doc, func(n *html.Node) bool { return n.Data == "main" })
}

func findMatch(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode {
		if skippedElement(n.Data) {
			return nil
		}
		if match(n) {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findMatch(c, match); found != nil {
			return found
		}
	}
	return nil
}

func collectParagraphs(doc *html.Node) []string {
	var paras []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedElement(n.Data) {
				return
			}
			if n.Data == "p" {
				if text := collapse(nodeText(n)); len(text) > minParagraphChars {
					paras = append(paras, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return paras
}

// nodeText concatenates text nodes below n, skipping script/style/nav and
// similar chrome subtrees.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteString(" ")
			return
		case html.ElementNode:
			if skippedElement(n.Data) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func skippedElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "nav", "header", "footer", "aside", "iframe":
		return true
	default:
		return false
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
