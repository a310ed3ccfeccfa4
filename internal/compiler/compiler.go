// Package compiler folds platform-agnostic elements through an ordered stack
// of platform configs into compiled tags.
package compiler

import (
	"context"
	"fmt"

	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/specialistvlad/stackmark/internal/element"
	"github.com/specialistvlad/stackmark/internal/extract"
	"github.com/specialistvlad/stackmark/internal/platform"
	"github.com/specialistvlad/stackmark/internal/style"
)

const (
	// FallbackTag is used for elements no platform claims.
	FallbackTag = "div"
	// MissingClass marks elements compiled by the fallback.
	MissingClass = "stackmark-missing-element"
	// TypeAttr carries the element type on fallback output.
	TypeAttr = "data-type"
)

// Interface compiles one element tree.
type Interface interface {
	Compile(ctx context.Context, el *element.Element, cctx Context) (*element.Tag, error)
}

// StackResolver resolves the configs of a platform stack.
type StackResolver interface {
	ResolveStack(ctx context.Context, names []string, projectContext string) ([]*platform.Config, error)
}

// Compiler is the uncached stack compiler.
type Compiler struct {
	resolver StackResolver
}

var _ Interface = (*Compiler)(nil)

// New creates a compiler resolving platforms through r.
func New(r StackResolver) *Compiler {
	return &Compiler{resolver: r}
}

// Compile resolves every config of the stack and folds el through them.
func (c *Compiler) Compile(ctx context.Context, el *element.Element, cctx Context) (*element.Tag, error) {
	if el == nil {
		return nil, fmt.Errorf("cannot compile a nil element")
	}
	stack := cctx.Stack()
	configs, err := c.resolver.ResolveStack(ctx, stack, cctx.ProjectContext)
	if err != nil {
		return nil, err
	}
	ctx, _ = ctxlog.With(ctx, "stack", stack)
	return CompileWith(ctx, el, configs, cctx), nil
}

// CompileWith folds el through already resolved configs.
func CompileWith(ctx context.Context, el *element.Element, configs []*platform.Config, cctx Context) *element.Tag {
	return (&pass{configs: configs, cctx: cctx}).compile(ctx, el)
}

// pass is one compile of one tree.
type pass struct {
	configs []*platform.Config
	cctx    Context
}

// compile folds the element through every platform that claims its type.
// Later platforms refine the result of earlier ones.
func (p *pass) compile(ctx context.Context, el *element.Element) *element.Tag {
	kids := newChildren(p, el)

	st := &stage{dropped: map[string]bool{}}
	for _, cfg := range p.configs {
		contract, ok := cfg.Contract(el.Type)
		if !ok {
			continue
		}
		next := p.applyContract(ctx, el, contract, kids, st)
		if st.acc == nil {
			st.acc = next
			continue
		}
		refine(st.acc, next)
	}

	if st.acc == nil {
		ctxlog.FromContext(ctx).Warn("No platform defines element type, using fallback.", "type", el.Type)
		return p.fallback(ctx, el, kids)
	}
	return st.acc
}

// stage is what the fold has produced so far for one element.
type stage struct {
	acc *element.Tag
	// dropped holds the properties a claiming contract excluded from styles
	// or consumed through a mapping. No later contract extracts them again.
	dropped map[string]bool
}

func (s *stage) emitted() map[string]string {
	if s.acc == nil {
		return nil
	}
	return s.acc.Attrs
}

// refine applies a later platform's result on top of the accumulated one.
func refine(acc, next *element.Tag) {
	if next.Name != "" {
		acc.Name = next.Name
	}
	for k, v := range next.Attrs {
		if k == "style" {
			if prev, ok := acc.Attrs[k]; ok {
				v = style.Merge(v, prev)
			}
		}
		acc.Attrs[k] = v
	}
	if next.Children != nil {
		acc.Children = next.Children
	}
}

func (p *pass) fallback(ctx context.Context, el *element.Element, kids *children) *element.Tag {
	attrs := map[string]string{}
	props := filterProps(el.Properties, reservedProps(""), nil)
	for _, kind := range extract.Kinds(p.configs) {
		res := extract.Extract(ctx, props, p.configs, kind)
		mergeExtracted(attrs, res.Attrs)
	}

	class := MissingClass
	if extracted := attrs["class"]; extracted != "" {
		class = extracted + " " + MissingClass
	}
	attrs["class"] = class
	attrs[TypeAttr] = el.Type

	body := kids.all(ctx)
	if len(body) == 0 {
		body = nil
	}
	return &element.Tag{Name: FallbackTag, Attrs: attrs, Children: body}
}

// children compiles each child of an element at most once per pass, however
// many platforms ask for it.
type children struct {
	p        *pass
	el       *element.Element
	compiled []element.Node
	done     []bool
}

func newChildren(p *pass, el *element.Element) *children {
	return &children{
		p:        p,
		el:       el,
		compiled: make([]element.Node, len(el.Children)),
		done:     make([]bool, len(el.Children)),
	}
}

func (c *children) len() int { return len(c.el.Children) }

func (c *children) at(ctx context.Context, i int) element.Node {
	if !c.done[i] {
		switch v := c.el.Children[i].(type) {
		case *element.Element:
			c.compiled[i] = c.p.compile(ctx, v)
		case element.Text:
			c.compiled[i] = v
		}
		c.done[i] = true
	}
	return c.compiled[i]
}

func (c *children) all(ctx context.Context) []element.Node {
	out := make([]element.Node, 0, c.len())
	for i := 0; i < c.len(); i++ {
		if n := c.at(ctx, i); n != nil {
			out = append(out, n)
		}
	}
	return out
}
