package platform

// hclFile is the root schema of an HCL platform document.
type hclFile struct {
	Platforms []*hclPlatform `hcl:"platform,block"`
}

type hclPlatform struct {
	Name                string                 `hcl:"name,label"`
	Extends             *string                `hcl:"extends,optional"`
	OutputFormats       []string               `hcl:"output_formats,optional"`
	DefaultOutputFormat *string                `hcl:"default_output_format,optional"`
	Elements            []*hclElement          `hcl:"element,block"`
	Extractors          []*hclExtractor        `hcl:"extractor,block"`
	ComponentMappings   []*hclComponentMapping `hcl:"component_mapping,block"`
}

type hclElement struct {
	Type              string            `hcl:"type,label"`
	Tag               *string           `hcl:"tag,optional"`
	TagByProp         *hclTagByProp     `hcl:"tag_by_prop,block"`
	ClassAttr         *string           `hcl:"class_attr,optional"`
	ContentSource     *string           `hcl:"content_source,optional"`
	ContentPath       *string           `hcl:"content_path,optional"`
	ContentHandling   *string           `hcl:"content_handling,optional"`
	ChildrenHandling  *string           `hcl:"children_handling,optional"`
	AttrMap           map[string]string `hcl:"attr_map,optional"`
	DefaultAttrs      map[string]string `hcl:"default_attrs,optional"`
	ExcludeFromStyles []string          `hcl:"exclude_from_styles,optional"`
}

type hclTagByProp struct {
	Prop    string            `hcl:"prop"`
	Tags    map[string]string `hcl:"tags"`
	Default *string           `hcl:"default,optional"`
}

type hclExtractor struct {
	Kind            string            `hcl:"kind,label"`
	Type            *string           `hcl:"type,optional"`
	Keys            []string          `hcl:"keys,optional"`
	OutputFormat    *string           `hcl:"output_format,optional"`
	OutputKey       *string           `hcl:"output_key,optional"`
	Sugar           []*hclSugar       `hcl:"sugar,block"`
	Rename          map[string]string `hcl:"rename,optional"`
	TargetExtractor *string           `hcl:"target_extractor,optional"`
}

type hclSugar struct {
	Trigger   string            `hcl:"trigger"`
	Attribute string            `hcl:"attribute"`
	Table     map[string]string `hcl:"table"`
}

type hclComponentMapping struct {
	Type         string            `hcl:"type,label"`
	Mappings     map[string]string `hcl:"mappings,optional"`
	DefaultAttrs map[string]string `hcl:"default_attrs,optional"`
}

// raw translates the block into the camelCase document schema. Attributes
// that were not written are left out so they never mask inherited values in
// DeepMerge.
func (p *hclPlatform) raw() map[string]any {
	out := map[string]any{"name": p.Name}
	setString(out, "extends", p.Extends)
	setStrings(out, "outputFormats", p.OutputFormats)
	setString(out, "defaultOutputFormat", p.DefaultOutputFormat)

	if len(p.Elements) > 0 {
		elements := make(map[string]any, len(p.Elements))
		for _, e := range p.Elements {
			elements[e.Type] = e.raw()
		}
		out["elements"] = elements
	}
	if len(p.Extractors) > 0 {
		extractors := make(map[string]any, len(p.Extractors))
		for _, e := range p.Extractors {
			extractors[e.Kind] = e.raw()
		}
		out["extractors"] = extractors
	}
	if len(p.ComponentMappings) > 0 {
		mappings := make(map[string]any, len(p.ComponentMappings))
		for _, m := range p.ComponentMappings {
			cm := map[string]any{}
			setMap(cm, "mappings", m.Mappings)
			setMap(cm, "defaultAttrs", m.DefaultAttrs)
			mappings[m.Type] = cm
		}
		out["componentMappings"] = mappings
	}
	return out
}

func (e *hclElement) raw() map[string]any {
	out := map[string]any{}
	setString(out, "elementTag", e.Tag)
	if e.TagByProp != nil {
		byProp := map[string]any{"prop": e.TagByProp.Prop}
		setMap(byProp, "tags", e.TagByProp.Tags)
		setString(byProp, "default", e.TagByProp.Default)
		out["elementByProp"] = byProp
	}
	setString(out, "classAttr", e.ClassAttr)
	setString(out, "contentSource", e.ContentSource)
	setString(out, "contentPath", e.ContentPath)
	setString(out, "contentHandling", e.ContentHandling)
	setString(out, "childrenHandling", e.ChildrenHandling)
	setMap(out, "attrMap", e.AttrMap)
	setMap(out, "defaultAttrs", e.DefaultAttrs)
	setStrings(out, "excludeFromStyles", e.ExcludeFromStyles)
	return out
}

func (e *hclExtractor) raw() map[string]any {
	out := map[string]any{}
	setString(out, "type", e.Type)
	setStrings(out, "keys", e.Keys)
	setString(out, "outputFormat", e.OutputFormat)
	setString(out, "outputKey", e.OutputKey)
	if len(e.Sugar) > 0 {
		sugar := make([]any, 0, len(e.Sugar))
		for _, s := range e.Sugar {
			rule := map[string]any{"trigger": s.Trigger, "attribute": s.Attribute}
			setMap(rule, "table", s.Table)
			sugar = append(sugar, rule)
		}
		out["sugar"] = sugar
	}
	setMap(out, "rename", e.Rename)
	setString(out, "targetExtractor", e.TargetExtractor)
	return out
}

func setString(m map[string]any, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

func setStrings(m map[string]any, key string, v []string) {
	if v == nil {
		return
	}
	list := make([]any, len(v))
	for i, s := range v {
		list[i] = s
	}
	m[key] = list
}

func setMap(m map[string]any, key string, v map[string]string) {
	if v == nil {
		return
	}
	out := make(map[string]any, len(v))
	for k, s := range v {
		out[k] = s
	}
	m[key] = out
}
