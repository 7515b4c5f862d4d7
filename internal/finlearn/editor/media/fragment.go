package media

import (
	"strings"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/apierrors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	LinkClass       = "text-blue-600 underline hover:text-blue-800"
	ImageClass      = "max-w-full h-auto rounded-lg my-4"
	VideoClass      = "video-embed"
	VideoFrameClass = "video-embed-frame"

	VideoAllow = "autoplay; fullscreen; picture-in-picture"
)

// LinkFragment строит ссылку, открывающуюся в новой вкладке. Пустая подпись заменяется адресом.
func LinkFragment(href, label string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", apierrors.ErrLinkURLRequired
	}
	if strings.TrimSpace(label) == "" {
		label = href
	}
	a := element(atom.A,
		html.Attribute{Key: "href", Val: href},
		html.Attribute{Key: "target", Val: "_blank"},
		html.Attribute{Key: "rel", Val: "noopener noreferrer"},
		html.Attribute{Key: "class", Val: LinkClass},
	)
	a.AppendChild(&html.Node{Type: html.TextNode, Data: label})
	return render(a), nil
}

// ImageFragment строит изображение по адресу после нормализации.
func ImageFragment(src string) (string, error) {
	src = NormalizeImageURL(src)
	if src == "" {
		return "", apierrors.ErrImageURLRequired
	}
	return render(element(atom.Img,
		html.Attribute{Key: "src", Val: src},
		html.Attribute{Key: "alt", Val: ""},
		html.Attribute{Key: "class", Val: ImageClass},
	)), nil
}

// VideoFragment строит контейнер с фиксированным соотношением сторон и плеером внутри.
func VideoFragment(rawURL string) (string, error) {
	embed, err := VideoEmbedURL(rawURL)
	if err != nil {
		return "", err
	}
	frame := element(atom.Iframe,
		html.Attribute{Key: "src", Val: embed},
		html.Attribute{Key: "class", Val: VideoFrameClass},
		html.Attribute{Key: "frameborder", Val: "0"},
		html.Attribute{Key: "allow", Val: VideoAllow},
		html.Attribute{Key: "allowfullscreen", Val: ""},
	)
	div := element(atom.Div, html.Attribute{Key: "class", Val: VideoClass})
	div.AppendChild(frame)
	return render(div), nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func render(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		panic(err)
	}
	return b.String()
}
