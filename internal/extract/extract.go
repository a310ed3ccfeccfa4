// Package extract interprets the declarative extractor rules of platform
// configs and turns element properties into output attributes.
package extract

import (
	"context"
	"sort"

	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/specialistvlad/stackmark/internal/platform"
	"github.com/specialistvlad/stackmark/internal/style"
)

// DefaultOutputKey receives property-selector declarations when the rule
// does not name a key.
const DefaultOutputKey = "style"

// Result is the folded output of every extractor of one kind.
type Result struct {
	Attrs map[string]string
	// Skipped lists "<platform>/<type>" for extractors of unknown type.
	Skipped []string
}

// Extract runs every extractor declared under kind by any config, in stack
// order. Later platforms win per attribute; declaration strings are merged per
// property with the later platform winning.
func Extract(ctx context.Context, props map[string]any, configs []*platform.Config, kind string) Result {
	return run(ctx, props, configs, kind, true)
}

func run(ctx context.Context, props map[string]any, configs []*platform.Config, kind string, forward bool) Result {
	res := Result{Attrs: map[string]string{}}
	declKeys := map[string]bool{}

	for _, cfg := range configs {
		spec, ok := cfg.Extractors[kind]
		if !ok {
			continue
		}

		var out map[string]string
		var decls map[string]bool
		switch spec.Type {
		case platform.PropertySelector:
			out, decls = propertySelector(props, spec)
		case platform.AttributeSelector:
			out = attributeSelector(props, spec)
		case platform.PropertyMapper:
			var skipped []string
			out, decls, skipped = propertyMapper(ctx, props, spec, configs, forward)
			res.Skipped = append(res.Skipped, skipped...)
		default:
			ctxlog.FromContext(ctx).Debug("Skipping extractor of unknown type.", "platform", cfg.Name, "kind", kind, "type", spec.Type)
			res.Skipped = append(res.Skipped, cfg.Name+"/"+string(spec.Type))
			continue
		}

		fold(res.Attrs, declKeys, out, decls)
	}
	return res
}

// fold merges a later output into the accumulated one.
func fold(acc map[string]string, accDecls map[string]bool, out map[string]string, decls map[string]bool) {
	for k, v := range out {
		prev, exists := acc[k]
		if exists && accDecls[k] && decls[k] {
			acc[k] = style.Merge(v, prev)
			continue
		}
		acc[k] = v
		accDecls[k] = decls[k]
	}
}

func propertySelector(props map[string]any, spec platform.ExtractorSpec) (map[string]string, map[string]bool) {
	out := map[string]string{}

	if spec.OutputFormat == platform.FormatAttributes {
		for _, k := range spec.Keys {
			if v, ok := declarationValue(props[k]); ok {
				out[k] = v
			}
		}
		return out, nil
	}

	d := style.New()
	for _, k := range spec.Keys {
		if v, ok := declarationValue(props[k]); ok {
			d.Set(k, v)
		}
	}
	if d.Len() == 0 {
		return out, nil
	}
	key := spec.OutputKey
	if key == "" {
		key = DefaultOutputKey
	}
	out[key] = d.String()
	return out, map[string]bool{key: true}
}

func attributeSelector(props map[string]any, spec platform.ExtractorSpec) map[string]string {
	out := map[string]string{}
	for _, k := range spec.Keys {
		v, ok := Scalar(props[k])
		if !ok || v == "" {
			continue
		}
		out[k] = v
	}
	for _, rule := range spec.Sugar {
		trigger, ok := Scalar(props[rule.Trigger])
		if !ok {
			continue
		}
		if mapped, ok := rule.Table[trigger]; ok && rule.Attribute != "" {
			out[rule.Attribute] = mapped
		}
	}
	return out
}

// propertyMapper renames properties. With a target extractor the renamed bag
// is fed once into the extractors of that kind; forwarded passes never
// forward again.
func propertyMapper(ctx context.Context, props map[string]any, spec platform.ExtractorSpec, configs []*platform.Config, forward bool) (map[string]string, map[string]bool, []string) {
	from := make([]string, 0, len(spec.Rename))
	for k := range spec.Rename {
		from = append(from, k)
	}
	sort.Strings(from)

	renamed := map[string]any{}
	for _, k := range from {
		v, ok := props[k]
		if !ok || v == nil {
			continue
		}
		renamed[spec.Rename[k]] = v
	}

	if spec.TargetExtractor != "" && forward {
		res := run(ctx, renamed, configs, spec.TargetExtractor, false)
		return res.Attrs, declarationKeys(configs, spec.TargetExtractor), res.Skipped
	}

	out := map[string]string{}
	for k, v := range renamed {
		if s, ok := Scalar(v); ok && s != "" {
			out[k] = s
		}
	}
	return out, nil, nil
}

// declarationKeys lists the output keys property-selectors of kind write
// declaration strings to.
func declarationKeys(configs []*platform.Config, kind string) map[string]bool {
	keys := map[string]bool{}
	for _, cfg := range configs {
		spec, ok := cfg.Extractors[kind]
		if !ok || spec.Type != platform.PropertySelector || spec.OutputFormat == platform.FormatAttributes {
			continue
		}
		key := spec.OutputKey
		if key == "" {
			key = DefaultOutputKey
		}
		keys[key] = true
	}
	return keys
}

// Kinds lists the extractor kinds declared by the stack in first-declared
// order. Kinds of one config are taken in sorted order.
func Kinds(configs []*platform.Config) []string {
	seen := map[string]bool{}
	var kinds []string
	for _, cfg := range configs {
		local := make([]string, 0, len(cfg.Extractors))
		for k := range cfg.Extractors {
			local = append(local, k)
		}
		sort.Strings(local)
		for _, k := range local {
			if !seen[k] {
				seen[k] = true
				kinds = append(kinds, k)
			}
		}
	}
	return kinds
}
