package assets

import (
	"bytes"
	"context"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/assetflow/internal/fileset"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

// MarkdownAction renders .md pages to standalone .html documents. Existing
// .html inputs are copied as they are; partials and other files are skipped.
type MarkdownAction struct {
	Dest string
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// ConfigKey implements task.ConfigKeyer.
func (a *MarkdownAction) ConfigKey() string {
	return a.Dest
}

// Execute implements task.Action.
func (a *MarkdownAction) Execute(ctx context.Context, tc *task.Context) (task.Result, error) {
	var res task.Result
	for _, src := range tc.Inputs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rel, ok := fileset.Rel(tc.Task.Root, src)
		if !ok || isPartial(rel) {
			continue
		}
		switch strings.ToLower(filepath.Ext(rel)) {
		case ".md", ".markdown":
			dst := filepath.Join(a.Dest, filepath.FromSlash(strings.TrimSuffix(rel, filepath.Ext(rel))+".html"))
			n, err := renderPage(src, dst)
			if err != nil {
				return res, err
			}
			res.Outputs = append(res.Outputs, dst)
			res.Bytes += n
		case ".html", ".htm":
			dst := filepath.Join(a.Dest, filepath.FromSlash(rel))
			n, err := copyFile(src, dst)
			if err != nil {
				return res, err
			}
			res.Outputs = append(res.Outputs, dst)
			res.Bytes += n
		default:
			tc.Logger.Debug("Skipping non-page input", "path", rel)
		}
	}
	return res, nil
}

func renderPage(src, dst string) (int64, error) {
	source, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return 0, fsError(err, "failed to read page", src)
	}
	page, err := RenderMarkdown(source, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)))
	if err != nil {
		return 0, fsError(err, "failed to render page", src)
	}
	if err := writeFile(dst, page); err != nil {
		return 0, err
	}
	return int64(len(page)), nil
}

// RenderMarkdown renders source as a complete HTML document. The first level
// one heading becomes the title; fallback is used when there is none.
func RenderMarkdown(source []byte, fallback string) ([]byte, error) {
	doc := markdown.Parser().Parse(text.NewReader(source))
	title := firstHeading(doc, source)
	if title == "" {
		title = fallback
	}

	var body bytes.Buffer
	if err := markdown.Renderer().Render(&body, source, doc); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteString("<!doctype html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	out.WriteString(html.EscapeString(title))
	out.WriteString("</title>\n</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

func firstHeading(doc gmast.Node, source []byte) string {
	var title string
	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		h, ok := n.(*gmast.Heading)
		if !ok || h.Level != 1 {
			return gmast.WalkContinue, nil
		}
		var b strings.Builder
		_ = gmast.Walk(h, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
			if t, ok := c.(*gmast.Text); ok && entering {
				b.Write(t.Segment.Value(source))
			}
			return gmast.WalkContinue, nil
		})
		title = strings.TrimSpace(b.String())
		return gmast.WalkStop, nil
	})
	return title
}
