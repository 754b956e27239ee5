package markdown

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/goliatone/go-postindex/internal/logging"
	"github.com/goliatone/go-postindex/pkg/interfaces"
)

// RenderOptions toggles the goldmark features used for posts.
type RenderOptions struct {
	// Extensions selects goldmark extensions by name. Empty means the
	// default set: gfm, linkify and tasklist.
	Extensions []string
	HardWraps  bool
	// SafeMode drops raw HTML embedded in posts.
	SafeMode bool
	// ImagePrefix is prepended to relative image destinations, for example
	// "/static/images/". Absolute paths and URLs are left alone.
	ImagePrefix string
	// ImageClass is added to the class attribute of every rendered image.
	ImageClass string
}

// GoldmarkRenderer implements interfaces.Renderer. A single instance is safe
// for concurrent use.
type GoldmarkRenderer struct {
	engine goldmark.Markdown
	logger interfaces.Logger
}

var _ interfaces.Renderer = (*GoldmarkRenderer)(nil)

// NewGoldmarkRenderer builds the goldmark engine once for opts.
func NewGoldmarkRenderer(opts RenderOptions, logger interfaces.Logger) *GoldmarkRenderer {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &GoldmarkRenderer{engine: newEngine(opts), logger: logger}
}

// RenderHTML converts markdown into HTML. Front matter, when present, is
// stripped first. On failure a visible placeholder paragraph is returned.
func (r *GoldmarkRenderer) RenderHTML(markdown string) string {
	out, err := r.Render(markdown)
	if err != nil {
		r.logger.Error("markdown.render.failed", "error", err)
		return renderPlaceholder(err)
	}
	return out
}

// Render converts markdown into HTML and reports conversion errors.
func (r *GoldmarkRenderer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.engine.Convert(StripFrontMatter([]byte(markdown)), &buf); err != nil {
		return "", fmt.Errorf("markdown render: %w", err)
	}
	return buf.String(), nil
}

// StripFrontMatter removes a leading YAML/TOML/JSON front matter block.
// Malformed blocks leave the source untouched.
func StripFrontMatter(source []byte) []byte {
	var discard map[string]any
	body, err := frontmatter.Parse(bytes.NewReader(source), &discard)
	if err != nil {
		return source
	}
	return body
}

func renderPlaceholder(err error) string {
	return "<p>Error rendering content: " + html.EscapeString(err.Error()) + "</p>"
}

var extensionRegistry = map[string]goldmark.Extender{
	"gfm":           extension.GFM,
	"table":         extension.Table,
	"strikethrough": extension.Strikethrough,
	"linkify":       extension.Linkify,
	"tasklist":      extension.TaskList,
	"definition":    extension.DefinitionList,
	"footnote":      extension.Footnote,
	"typographer":   extension.Typographer,
}

func newEngine(opts RenderOptions) goldmark.Markdown {
	var rendererOptions []renderer.Option
	if opts.HardWraps {
		rendererOptions = append(rendererOptions, gmhtml.WithHardWraps())
	}
	if !opts.SafeMode {
		rendererOptions = append(rendererOptions, gmhtml.WithUnsafe())
	}

	parserOptions := []parser.Option{parser.WithAutoHeadingID(), parser.WithAttribute()}
	if opts.ImagePrefix != "" || opts.ImageClass != "" {
		parserOptions = append(parserOptions, parser.WithASTTransformers(
			util.Prioritized(imageTransformer{prefix: opts.ImagePrefix, class: opts.ImageClass}, 500),
		))
	}

	return goldmark.New(
		goldmark.WithExtensions(resolveExtensions(opts.Extensions)...),
		goldmark.WithParserOptions(parserOptions...),
		goldmark.WithRendererOptions(rendererOptions...),
	)
}

type imageTransformer struct {
	prefix string
	class  string
}

func (t imageTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		img, ok := node.(*ast.Image)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		if t.prefix != "" {
			img.Destination = []byte(rewriteImagePath(string(img.Destination), t.prefix))
		}
		if t.class != "" {
			class := t.class
			if existing, found := img.AttributeString("class"); found {
				if b, isBytes := existing.([]byte); isBytes && len(b) > 0 {
					class = string(b) + " " + class
				}
			}
			img.SetAttributeString("class", []byte(class))
		}
		return ast.WalkContinue, nil
	})
}

func rewriteImagePath(dest, prefix string) string {
	if dest == "" || strings.HasPrefix(dest, "/") || strings.Contains(dest, "://") || strings.HasPrefix(dest, "data:") {
		return dest
	}
	dest = strings.TrimLeft(dest, "./")
	return strings.TrimRight(prefix, "/") + "/" + dest
}

func resolveExtensions(names []string) []goldmark.Extender {
	if len(names) == 0 {
		return []goldmark.Extender{extension.GFM, extension.Linkify, extension.TaskList}
	}
	seen := map[string]bool{}
	var out []goldmark.Extender
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		ext, ok := extensionRegistry[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ext)
	}
	return out
}
