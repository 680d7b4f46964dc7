// Package htmlx cleans up html fragments stored in literals for display
package htmlx

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// dropped holds elements that are removed entirely, including their children
var dropped = []atom.Atom{
	atom.Script, atom.Style, atom.Iframe, atom.Frame, atom.Frameset, atom.Object, atom.Embed, atom.Applet,
	atom.Form, atom.Meta, atom.Base, atom.Link, atom.Svg, atom.Math,
}

// linkAttrs are attributes holding a single url
var linkAttrs = []string{"href", "src", "action", "formaction", "xlink:href", "poster", "background", "cite"}

// schemes are the url schemes links may use; relative urls are always allowed
var schemes = []string{"http", "https", "mailto"}

// Render parses source as a html fragment and renders it for display.
//
// Scripts, styles, embedded content and document metadata are removed, as are event handler attributes.
// Links using a scheme other than http, https or mailto are dropped.
// Every remaining url is passed through replace; a nil replace keeps them.
func Render(source string, replace func(string) string) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(source), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse html fragment: %w", err)
	}

	var builder strings.Builder
	builder.Grow(len(source))

	for _, node := range nodes {
		if isDropped(node) {
			continue
		}

		var remove []*html.Node
		for node := range IterTree(node) {
			if node.Type != html.ElementNode {
				continue
			}
			if isDropped(node) {
				remove = append(remove, node)
				continue
			}
			node.Attr = cleanAttrs(node.Attr, replace)
		}
		for _, node := range remove {
			if node.Parent != nil {
				node.Parent.RemoveChild(node)
			}
		}

		if err := html.Render(&builder, node); err != nil {
			return "", fmt.Errorf("failed to render node: %w", err)
		}
	}
	return builder.String(), nil
}

func isDropped(node *html.Node) bool {
	return node.Type == html.ElementNode && slices.Contains(dropped, node.DataAtom)
}

func cleanAttrs(attrs []html.Attribute, replace func(string) string) []html.Attribute {
	if replace == nil {
		replace = func(url string) string { return url }
	}

	cleaned := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if a.Namespace != "" {
			key = strings.ToLower(a.Namespace) + ":" + key
		}

		switch {
		case strings.HasPrefix(key, "on"):
			continue
		case key == "srcset":
			value, ok := cleanSrcset(a.Val, replace)
			if !ok {
				continue
			}
			a.Val = value
		case slices.Contains(linkAttrs, key):
			if !SafeURL(a.Val) {
				continue
			}
			a.Val = replace(a.Val)
		}
		cleaned = append(cleaned, a)
	}
	return cleaned
}

// cleanSrcset cleans every candidate of a srcset attribute.
// If any candidate is unsafe, ok is false.
func cleanSrcset(value string, replace func(string) string) (string, bool) {
	candidates := strings.Split(value, ",")
	for i, candidate := range candidates {
		url, descriptor, _ := strings.Cut(strings.TrimSpace(candidate), " ")
		if !SafeURL(url) {
			return "", false
		}
		candidates[i] = strings.TrimSpace(replace(url) + " " + descriptor)
	}
	return strings.Join(candidates, ", "), true
}

// SafeURL reports if url is relative or uses an allowed scheme.
// Whitespace and control characters are ignored, as browsers do when parsing a scheme.
func SafeURL(url string) bool {
	url = strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		return r
	}, url)

	end := strings.IndexAny(url, ":/?#")
	if end < 0 || url[end] != ':' {
		return true
	}
	return slices.Contains(schemes, strings.ToLower(url[:end]))
}

// IterTree iterates over all nodes in the tree starting at node.
//
// Children are visited first (in order), followed by the node itself.
// Nil nodes are never yielded.
func IterTree(node *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		iterTree(node, yield)
	}
}

func iterTree(node *html.Node, f func(node *html.Node) bool) bool {
	if node == nil {
		return true
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if !iterTree(child, f) {
			return false
		}
	}

	return f(node)
}
