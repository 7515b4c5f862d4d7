package surface

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "blockquote": true, "pre": true, "div": true,
	"table": true, "thead": true, "tbody": true, "tr": true, "td": true, "th": true,
	"figure": true, "hr": true, "section": true, "article": true, "iframe": true,
}

var textBlockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "pre": true, "li": true, "blockquote": true,
}

func isBlock(n *html.Node) bool {
	return n.Type == html.ElementNode && blockTags[n.Data]
}

func parseFragment(content string) (*html.Node, error) {
	root := newElement("div", nil)
	nodes, err := html.ParseFragment(strings.NewReader(content), root)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	normalize(root)
	return root, nil
}

// normalize оборачивает текст и инлайн-элементы верхнего уровня в параграфы
// и гарантирует, что в документе есть хотя бы один текстовый блок.
func normalize(root *html.Node) {
	var loose *html.Node
	var next *html.Node
	for c := root.FirstChild; c != nil; c = next {
		next = c.NextSibling
		switch {
		case c.Type == html.TextNode && loose == nil && strings.TrimSpace(c.Data) == "":
			root.RemoveChild(c)
		case c.Type == html.TextNode || (c.Type == html.ElementNode && !isBlock(c)):
			if loose == nil {
				loose = newElement("p", nil)
				root.InsertBefore(loose, c)
			}
			root.RemoveChild(c)
			loose.AppendChild(c)
		case c.Type == html.ElementNode:
			loose = nil
		default:
			root.RemoveChild(c)
		}
	}
	if len(textBlocks(root)) == 0 {
		root.AppendChild(newElement("p", nil))
	}
}

func renderChildren(root *html.Node) string {
	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			// strings.Builder не возвращает ошибок записи
			panic(err)
		}
	}
	return b.String()
}

// textBlocks возвращает редактируемые блоки в порядке документа. Блок текстовый,
// если его тег из textBlockTags и внутри нет других блочных элементов.
func textBlocks(root *html.Node) []*html.Node {
	var res []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || !isBlock(c) {
				continue
			}
			if textBlockTags[c.Data] && !hasBlockChild(c) {
				res = append(res, c)
				continue
			}
			walk(c)
		}
	}
	walk(root)
	return res
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isBlock(c) {
			return true
		}
	}
	return false
}

func newElement(tag string, attrs []html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

func rename(n *html.Node, tag string) {
	n.Data = tag
	n.DataAtom = atom.Lookup([]byte(tag))
}

func ancestor(n *html.Node, tags ...string) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		for _, t := range tags {
			if p.Data == t {
				return p
			}
		}
	}
	return nil
}

// topLevel возвращает предка n, который является прямым потомком root.
func topLevel(root, n *html.Node) *html.Node {
	for n != nil && n.Parent != root {
		n = n.Parent
	}
	return n
}

// liftOut выносит child из родителя на уровень выше, разрезая родителя на две части.
func liftOut(child *html.Node) {
	parent := child.Parent
	if parent == nil || parent.Parent == nil {
		return
	}
	grand := parent.Parent

	tail := newElement(parent.Data, cloneAttrs(parent.Attr))
	for c := child.NextSibling; c != nil; {
		next := c.NextSibling
		parent.RemoveChild(c)
		tail.AppendChild(c)
		c = next
	}

	parent.RemoveChild(child)
	grand.InsertBefore(child, parent.NextSibling)
	if tail.FirstChild != nil {
		grand.InsertBefore(tail, child.NextSibling)
	}
	if isEmptyContainer(parent) {
		grand.RemoveChild(parent)
	}
}

// unwrap заменяет элемент его потомками.
func unwrap(n *html.Node) {
	parent := n.Parent
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
		c = next
	}
	parent.RemoveChild(n)
}

func wrap(n *html.Node, wrapper *html.Node) {
	n.Parent.InsertBefore(wrapper, n)
	n.Parent.RemoveChild(n)
	wrapper.AppendChild(n)
}

func isEmptyContainer(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return false
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return false
		}
	}
	return true
}

// pruneEmpty удаляет опустевшие контейнеры (списки, цитаты) вверх от n.
func pruneEmpty(root, n *html.Node) {
	for n != nil && n != root {
		parent := n.Parent
		switch n.Data {
		case "ul", "ol", "blockquote", "li", "div":
			if !isEmptyContainer(n) || parent == nil {
				return
			}
			parent.RemoveChild(n)
		default:
			return
		}
		n = parent
	}
}

// mergeSiblingContainers склеивает соседние одноимённые контейнеры (списки и цитаты).
func mergeSiblingContainers(parent *html.Node) {
	for c := parent.FirstChild; c != nil; {
		next := nextElement(c)
		if next != nil && c.Type == html.ElementNode && c.Data == next.Data &&
			(c.Data == "ul" || c.Data == "ol" || c.Data == "blockquote") {
			for m := c.NextSibling; m != next; {
				n := m.NextSibling
				parent.RemoveChild(m)
				m = n
			}
			for gc := next.FirstChild; gc != nil; {
				n := gc.NextSibling
				next.RemoveChild(gc)
				c.AppendChild(gc)
				gc = n
			}
			parent.RemoveChild(next)
			continue
		}
		c = c.NextSibling
	}
}

func nextElement(n *html.Node) *html.Node {
	for c := n.NextSibling; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return nil
		}
	}
	return nil
}

func prevElement(n *html.Node) *html.Node {
	for c := n.PrevSibling; c != nil; c = c.PrevSibling {
		if c.Type == html.ElementNode {
			return c
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return nil
		}
	}
	return nil
}

func cloneAttrs(attrs []html.Attribute) []html.Attribute {
	if len(attrs) == 0 {
		return nil
	}
	res := make([]html.Attribute, len(attrs))
	copy(res, attrs)
	return res
}

// cloneTree делает глубокую копию узла без родителя и соседей.
func cloneTree(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      cloneAttrs(n.Attr),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneTree(ch))
	}
	return c
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
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

func removeAttr(n *html.Node, key string) {
	res := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			res = append(res, a)
		}
	}
	n.Attr = res
}

// setStyle выставляет CSS-свойство в атрибуте style. Пустое значение удаляет свойство.
// Объявления пишутся через "; " без завершающей точки с запятой, как их записывает UgcPolicy.
func setStyle(n *html.Node, prop, val string) {
	raw, _ := getAttr(n, "style")
	var decls []string
	for _, d := range strings.Split(raw, ";") {
		kv := strings.SplitN(d, ":", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == prop {
			continue
		}
		decls = append(decls, strings.TrimSpace(kv[0])+": "+strings.TrimSpace(kv[1]))
	}
	if val != "" {
		decls = append(decls, prop+": "+val)
	}
	if len(decls) == 0 {
		removeAttr(n, "style")
		return
	}
	setAttr(n, "style", strings.Join(decls, "; "))
}

func getStyle(n *html.Node, prop string) string {
	raw, _ := getAttr(n, "style")
	for _, d := range strings.Split(raw, ";") {
		kv := strings.SplitN(d, ":", 2)
		if len(kv) == 2 && strings.TrimSpace(kv[0]) == prop {
			return strings.TrimSpace(kv[1])
		}
	}
	return ""
}
