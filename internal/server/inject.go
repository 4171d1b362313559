package server

import (
	"bytes"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxInjectSize = 512 * 1024

func isHTMLPath(p string) bool {
	return p == "" || strings.HasSuffix(p, "/") || strings.HasSuffix(p, ".html") || strings.HasSuffix(p, ".htm")
}

// injectReloadScript adds the reload client to HTML pages served by next.
func injectReloadScript(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isHTMLPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		// The rewritten body has a different length, so ranges and
		// conditional requests against the file on disk no longer apply.
		r.Header.Del("Range")
		r.Header.Del("If-Modified-Since")
		r.Header.Del("If-None-Match")

		in := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(in, r)
		in.finalize()
	})
}

// injector buffers an HTML response up to maxInjectSize and rewrites it on
// finalize. Larger or non-HTML responses pass through untouched.
type injector struct {
	http.ResponseWriter
	status        int
	buf           []byte
	buffering     bool
	passthrough   bool
	headerWritten bool
}

func (in *injector) WriteHeader(code int) {
	in.status = code
	if in.passthrough {
		in.ResponseWriter.WriteHeader(code)
		in.headerWritten = true
	}
}

func (in *injector) Write(data []byte) (int, error) {
	if !in.buffering && !in.passthrough {
		ct := in.Header().Get("Content-Type")
		if in.status != http.StatusOK || (ct != "" && !strings.Contains(ct, "text/html")) {
			in.startPassthrough()
			return in.ResponseWriter.Write(data)
		}
		in.buffering = true
	}
	if in.passthrough {
		return in.ResponseWriter.Write(data)
	}
	if len(in.buf)+len(data) > maxInjectSize {
		in.startPassthrough()
		if len(in.buf) > 0 {
			if _, err := in.ResponseWriter.Write(in.buf); err != nil {
				return 0, err
			}
			in.buf = nil
		}
		return in.ResponseWriter.Write(data)
	}
	in.buf = append(in.buf, data...)
	return len(data), nil
}

func (in *injector) startPassthrough() {
	in.passthrough = true
	if !in.headerWritten {
		in.ResponseWriter.WriteHeader(in.status)
		in.headerWritten = true
	}
}

func (in *injector) finalize() {
	if in.passthrough {
		return
	}
	if !in.buffering {
		in.ResponseWriter.WriteHeader(in.status)
		return
	}
	body := withReloadScript(in.buf)
	in.Header().Del("Content-Length")
	in.ResponseWriter.WriteHeader(in.status)
	_, _ = in.ResponseWriter.Write(body)
}

// withReloadScript appends the client script tag to the document body.
// Documents that fail to parse are returned unchanged.
func withReloadScript(page []byte) []byte {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return page
	}
	body := findElement(doc, atom.Body)
	if body == nil {
		return page
	}
	body.AppendChild(&html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Script,
		Data:     "script",
		Attr: []html.Attribute{
			{Key: "async"},
			{Key: "src", Val: "/livereload.js"},
		},
	})
	var out bytes.Buffer
	if err := html.Render(&out, doc); err != nil {
		return page
	}
	return out.Bytes()
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
