package atlassian

import (
	"html"
	"strings"
	"unicode"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Confluence returns page bodies in storage format (XHTML with ac:/ri:
// namespaced macros). Flatten those to plain text before the content is
// handed to the model; everything else passes through untouched.

func normalizeConfluenceContent(content string) string {
	if !looksLikeStorageFormat(content) {
		return content
	}
	text, err := storageFormatToText(content)
	if err != nil || strings.TrimSpace(text) == "" {
		return content
	}
	return text
}

func looksLikeStorageFormat(s string) bool {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "<") {
		return false
	}
	lower := strings.ToLower(t)
	return strings.Contains(lower, "<p") || strings.Contains(lower, "<ac:") ||
		strings.Contains(lower, "<div") || strings.Contains(lower, "<table")
}

func storageFormatToText(input string) (string, error) {
	// Code macros embed their text in CDATA; unwrap so the HTML parser
	// keeps the payload.
	clean := stripCDATA(input)

	nodes, err := xhtml.ParseFragment(strings.NewReader(clean),
		&xhtml.Node{Type: xhtml.ElementNode, DataAtom: atom.Div, Data: "div"})
	if err != nil {
		return "", err
	}

	var w textWriter
	for _, n := range nodes {
		w.walk(n)
	}
	return strings.TrimSpace(collapseBlankLines(w.sb.String())), nil
}

func stripCDATA(s string) string {
	const open = "<![CDATA["
	const close = "]]>"
	for {
		i := strings.Index(s, open)
		if i < 0 {
			return s
		}
		j := strings.Index(s[i+len(open):], close)
		if j < 0 {
			return s
		}
		j = i + len(open) + j
		s = s[:i] + s[i+len(open):j] + s[j+len(close):]
	}
}

type textWriter struct {
	sb        strings.Builder
	listDepth int
	needSpace bool
}

func (w *textWriter) walk(n *xhtml.Node) {
	switch n.Type {
	case xhtml.TextNode:
		w.writeText(n.Data)
	case xhtml.ElementNode:
		tag := strings.ToLower(strings.TrimSpace(n.Data))

		switch tag {
		case "br":
			w.newline()
			return
		case "ul", "ol":
			w.listDepth++
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				w.walk(c)
			}
			w.listDepth--
			w.newline()
			return
		case "li":
			w.newline()
			if w.listDepth > 1 {
				w.sb.WriteString(strings.Repeat("  ", w.listDepth-1))
			}
			w.sb.WriteString("- ")
			w.needSpace = false
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				w.walk(c)
			}
			w.newline()
			return
		case "ri:url":
			w.writeText(getAttr(n, "ri:value"))
		case "ri:page":
			w.writeText(getAttr(n, "ri:content-title"))
		case "ri:attachment":
			w.writeText(getAttr(n, "ri:filename"))
		}

		block := isBlockTag(tag)
		if block {
			w.newline()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}
		if block {
			w.newline()
		}
	}
}

func getAttr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func isBlockTag(tag string) bool {
	switch tag {
	case "p", "div", "section", "h1", "h2", "h3", "h4", "h5", "h6",
		"pre", "blockquote", "table", "tr",
		"ac:structured-macro", "ac:rich-text-body", "ac:plain-text-body":
		return true
	}
	return false
}

func (w *textWriter) writeText(s string) {
	if s == "" {
		return
	}
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, " ", " ")

	for _, r := range s {
		if unicode.IsSpace(r) {
			w.needSpace = true
			continue
		}
		if w.needSpace && w.sb.Len() > 0 && !w.endsWithNewline() {
			w.sb.WriteByte(' ')
		}
		w.needSpace = false
		w.sb.WriteRune(r)
	}
}

func (w *textWriter) newline() {
	w.needSpace = false
	if w.sb.Len() == 0 || w.endsWithNewline() {
		return
	}
	w.sb.WriteByte('\n')
}

func (w *textWriter) endsWithNewline() bool {
	s := w.sb.String()
	return len(s) > 0 && s[len(s)-1] == '\n'
}

func collapseBlankLines(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	nl := 0
	for _, r := range s {
		if r == '\n' {
			nl++
			if nl > 2 {
				continue
			}
		} else {
			nl = 0
		}
		out.WriteRune(r)
	}
	return out.String()
}
