//go:build generate

// Command generate-keymap renders data/keymap.md into the Go key table.
// It is invoked through go:generate in the keymap package.
package main

import (
	"bytes"
	"fmt"
	"go/format"
	"log"
	"os"
	"strconv"

	"github.com/iancoleman/strcase"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

type key struct {
	name  string
	code  uint16
	usage uint8
}

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("usage: generate-keymap <output.go>")
	}
	src, err := os.ReadFile("data/keymap.md")
	if err != nil {
		log.Fatalf("failed to read keymap source: %v", err)
	}
	title, keys, err := parseKeys(src)
	if err != nil {
		log.Fatalf("failed to parse keymap source: %v", err)
	}
	out, err := render(keys)
	if err != nil {
		log.Fatalf("failed to render key table: %v", err)
	}
	if err := os.WriteFile(os.Args[1], out, 0o644); err != nil {
		log.Fatalf("failed to write %s: %v", os.Args[1], err)
	}
	log.Printf("generated %s from %q: %d keys", os.Args[1], title, len(keys))
}

func parseKeys(src []byte) (string, []key, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			meta.Meta,
		),
	)
	ctx := parser.NewContext()
	doc := md.Parser().Parse(text.NewReader(src), parser.WithContext(ctx))
	title, _ := meta.Get(ctx)["title"].(string)

	var keys []key
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		row, ok := n.(*east.TableRow)
		if !ok {
			return ast.WalkContinue, nil
		}
		cells := cellText(row, src)
		if len(cells) != 3 {
			return ast.WalkStop, fmt.Errorf("row %v: expected 3 columns, got %d", cells, len(cells))
		}
		code, err := strconv.ParseUint(cells[1], 10, 16)
		if err != nil {
			return ast.WalkStop, fmt.Errorf("row %v: bad evdev code: %w", cells, err)
		}
		usage, err := strconv.ParseUint(cells[2], 0, 8)
		if err != nil {
			return ast.WalkStop, fmt.Errorf("row %v: bad usage: %w", cells, err)
		}
		keys = append(keys, key{
			name:  strcase.ToSnake(cells[0]),
			code:  uint16(code),
			usage: uint8(usage),
		})
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", nil, err
	}
	return title, keys, nil
}

func cellText(row ast.Node, src []byte) []string {
	var cells []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		cells = append(cells, string(c.Text(src)))
	}
	return cells
}

func render(keys []key) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	buf.WriteString("// Code generated by generate-keymap. DO NOT EDIT.\n\n")
	buf.WriteString("package keymap\n\n")
	buf.WriteString("// Key maps an evdev key code to a HID usage on the Keyboard/Keypad page.\n")
	buf.WriteString("type Key struct {\n\tName string\n\tCode uint16\n\tUsage uint8\n}\n\n")
	buf.WriteString("var keys = []Key{\n")
	for _, k := range keys {
		fmt.Fprintf(buf, "\t{Name: %q, Code: %d, Usage: 0x%02x},\n", k.name, k.code, k.usage)
	}
	buf.WriteString("}\n")
	return format.Source(buf.Bytes())
}
