// Генерация справочника ошибок API в формате Markdown.
// Читает файл с определениями DefinedError и строит по таблице на каждую группу кодов.
// Группа начинается с комментария вида "// 1*** - editor validation errors".
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"strconv"
	"strings"

	md "github.com/nao1215/markdown"
)

var statusCodes = map[string]int{
	"StatusOK":                    200,
	"StatusCreated":               201,
	"StatusAccepted":              202,
	"StatusBadRequest":            400,
	"StatusUnauthorized":          401,
	"StatusForbidden":             403,
	"StatusNotFound":              404,
	"StatusConflict":              409,
	"StatusGone":                  410,
	"StatusRequestEntityTooLarge": 413,
	"StatusUnsupportedMediaType":  415,
	"StatusUnprocessableEntity":   422,
	"StatusTooManyRequests":       429,
	"StatusInternalServerError":   500,
	"StatusBadGateway":            502,
	"StatusServiceUnavailable":    503,
}

type group struct {
	title string
	rows  [][]string
}

func main() {
	errorsFile := flag.String("src", "internal/finlearn/apierrors/apierrors.go", "Path of apierrors.go")
	outputMd := flag.String("out", "api_errors.md", "Path to output md")
	flag.Parse()

	slog.Info("Generate api errors docs", "src", *errorsFile, "out", *outputMd)

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, *errorsFile, nil, parser.ParseComments)
	if err != nil {
		slog.Error("Parse errors file", "err", err)
		os.Exit(1)
	}

	out, err := os.Create(*outputMd)
	if err != nil {
		slog.Error("Create output file", "err", err)
		os.Exit(1)
	}
	defer out.Close()

	doc := md.NewMarkdown(out).
		H1("Перечень кодов ошибок").
		PlainText("Ошибки сервиса finlearn. Поле `code` ответа содержит код из таблиц ниже, `ru_error` - сообщение для автора.")
	for _, g := range getGroups(f) {
		doc = doc.H2(g.title).
			CustomTable(md.TableSet{
				Header: []string{"Код", "HTTP код", "Сообщение", "Сообщение на русском"},
				Rows:   g.rows,
			}, md.TableOptions{AutoWrapText: false})
	}
	if err := doc.Build(); err != nil {
		slog.Error("Generate docs fail", "err", err)
		os.Exit(1)
	}
	slog.Info("Docs generated")
}

func getGroups(f *ast.File) []group {
	var groups []group
	for _, d := range f.Decls {
		decl, ok := d.(*ast.GenDecl)
		if !ok || decl.Tok != token.VAR {
			continue
		}
		for _, spec := range decl.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok || len(vs.Values) == 0 {
				continue
			}
			lit, ok := vs.Values[0].(*ast.CompositeLit)
			if !ok {
				continue
			}
			if vs.Doc != nil || len(groups) == 0 {
				groups = append(groups, group{title: groupTitle(vs.Doc)})
			}
			g := &groups[len(groups)-1]
			g.rows = append(g.rows, getRow(f, lit))
		}
	}
	return groups
}

func groupTitle(doc *ast.CommentGroup) string {
	if doc == nil {
		return "Ошибки"
	}
	text := strings.TrimSpace(doc.Text())
	if _, title, ok := strings.Cut(text, " - "); ok {
		return strings.ToUpper(title[:1]) + title[1:]
	}
	return text
}

func getRow(f *ast.File, lit *ast.CompositeLit) []string {
	row := make([]string, 4)
	status := "StatusBadRequest"
	for _, v := range lit.Elts {
		kv, ok := v.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		switch fmt.Sprint(kv.Key) {
		case "Code":
			row[0] = md.Bold(kv.Value.(*ast.BasicLit).Value)
		case "StatusCode":
			status = kv.Value.(*ast.SelectorExpr).Sel.Name
		case "Err":
			row[2] = md.Code(exprString(f, kv.Value))
		case "RuErr":
			row[3] = md.Code(exprString(f, kv.Value))
		}
	}
	row[1] = fmt.Sprintf("%d %s", statusCodes[status], md.Italic(status))
	return row
}

// exprString собирает строку из литералов, конкатенаций и fmt.Sprint(CONST).
func exprString(f *ast.File, expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if s, err := strconv.Unquote(e.Value); err == nil {
			return s
		}
		return e.Value
	case *ast.BinaryExpr:
		return exprString(f, e.X) + exprString(f, e.Y)
	case *ast.CallExpr:
		if len(e.Args) == 1 {
			return exprString(f, e.Args[0])
		}
	case *ast.Ident:
		return constValue(f, e.Name)
	}
	slog.Warn("Unsupported expression in error definition", "expr", fmt.Sprintf("%T", expr))
	return ""
}

func constValue(f *ast.File, name string) string {
	for _, d := range f.Decls {
		decl, ok := d.(*ast.GenDecl)
		if !ok || decl.Tok != token.CONST {
			continue
		}
		for _, spec := range decl.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, id := range vs.Names {
				if id.Name == name && i < len(vs.Values) {
					return exprString(f, vs.Values[i])
				}
			}
		}
	}
	return name
}
