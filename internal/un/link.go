// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package un

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

type anchor struct {
	href string
	text string
}

// FindXMLLink scans the list page HTML for the XML download link and
// resolves it against pageURL. Links whose href names an XML file of the
// consolidated or sanctions list win; otherwise the first link whose text
// mentions an XML format or download is used.
func FindXMLLink(r io.Reader, pageURL string) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing list page: %w", err)
	}

	var anchors []anchor
	collectAnchors(doc, &anchors)

	link := ""
	for _, a := range anchors {
		href := strings.ToLower(a.href)
		if strings.Contains(href, ".xml") && (strings.Contains(href, "consolidated") || strings.Contains(href, "sanctions")) {
			link = a.href
			break
		}
	}
	if link == "" {
		for _, a := range anchors {
			text := strings.ToLower(a.text)
			if strings.Contains(text, "xml") && (strings.Contains(text, "format") || strings.Contains(text, "download")) {
				link = a.href
				break
			}
		}
	}
	if link == "" {
		return "", types.ErrXMLLinkNotFound
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing page URL %s: %w", pageURL, err)
	}
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("parsing link %s: %w", link, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func collectAnchors(node *html.Node, out *[]anchor) {
	if node.Type == html.ElementNode && node.Data == "a" {
		for _, attr := range node.Attr {
			if attr.Key == "href" && attr.Val != "" {
				var text strings.Builder
				nodeText(node, &text)
				*out = append(*out, anchor{href: attr.Val, text: strings.TrimSpace(text.String())})
				break
			}
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectAnchors(child, out)
	}
}

func nodeText(node *html.Node, b *strings.Builder) {
	if node.Type == html.TextNode {
		b.WriteString(node.Data)
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		nodeText(child, b)
	}
}
