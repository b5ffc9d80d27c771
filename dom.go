package main

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func createElement(a atom.Atom, text ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for _, t := range text {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: t})
	}
	return n
}

func createTH(text ...string) *html.Node { return createElement(atom.Th, text...) }

func createTD(text string) *html.Node { return createElement(atom.Td, text) }

func createTR() *html.Node { return createElement(atom.Tr) }

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}

// prependChild inserts c as the first child of n.
func prependChild(n, c *html.Node) {
	if n.FirstChild == nil {
		n.AppendChild(c)
		return
	}
	n.InsertBefore(c, n.FirstChild)
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setClass(n *html.Node, class string) { setAttr(n, "class", class) }

// textContent concatenates the text nodes below n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// childElements returns the element children of n in order.
func childElements(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// renderChildren serialises the children of n without n itself.
func renderChildren(n *html.Node) (string, error) {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// Regions are the parts of the page the view renders into.
type Regions struct {
	Table   *html.Node // the TABLE element holding the three regions below
	Header  *html.Node // THEAD TR
	Body    *html.Node // TBODY
	Footer  *html.Node // TFOOT TR
	Formula *html.Node // the formula bar INPUT
}

// newPage builds the grid document for one sheet and returns it together
// with the regions the view writes to.
func newPage(sheetID, title string) (*html.Node, Regions) {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := createElement(atom.Html)
	setAttr(root, "lang", "en")
	doc.AppendChild(root)

	head := createElement(atom.Head)
	meta := createElement(atom.Meta)
	setAttr(meta, "charset", "utf-8")
	head.AppendChild(meta)
	head.AppendChild(createElement(atom.Title, title))
	css := createElement(atom.Link)
	setAttr(css, "rel", "stylesheet")
	setAttr(css, "href", "/style.css")
	head.AppendChild(css)
	script := createElement(atom.Script)
	setAttr(script, "src", "/app.js")
	setAttr(script, "defer", "")
	head.AppendChild(script)
	root.AppendChild(head)

	body := createElement(atom.Body)
	setAttr(body, "data-sheet", sheetID)
	root.AppendChild(body)

	toolbar := createElement(atom.Div)
	setClass(toolbar, "toolbar")
	formula := createElement(atom.Input)
	setAttr(formula, "id", "formula")
	setAttr(formula, "type", "text")
	setAttr(formula, "autocomplete", "off")
	toolbar.AppendChild(formula)
	for _, b := range []struct{ id, label string }{{"addRow", "Add row"}, {"addCol", "Add column"}} {
		btn := createElement(atom.Button, b.label)
		setAttr(btn, "id", b.id)
		setAttr(btn, "type", "button")
		toolbar.AppendChild(btn)
	}
	body.AppendChild(toolbar)

	table := createElement(atom.Table)
	setAttr(table, "id", "grid")
	thead, tbody, tfoot := createElement(atom.Thead), createElement(atom.Tbody), createElement(atom.Tfoot)
	headerRow, footerRow := createTR(), createTR()
	thead.AppendChild(headerRow)
	tfoot.AppendChild(footerRow)
	table.AppendChild(thead)
	table.AppendChild(tbody)
	table.AppendChild(tfoot)
	body.AppendChild(table)

	return doc, Regions{
		Table:   table,
		Header:  headerRow,
		Body:    tbody,
		Footer:  footerRow,
		Formula: formula,
	}
}
