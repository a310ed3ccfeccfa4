package platform

// ContentSource selects where an element's body comes from.
type ContentSource string

const (
	ContentChildren   ContentSource = "children"
	ContentText       ContentSource = "text"
	ContentPath       ContentSource = "path"
	ContentFirstChild ContentSource = "first-child"
)

// ContentHandling controls how textual content is post-processed.
type ContentHandling string

const (
	HandlingNone        ContentHandling = "none"
	HandlingResolveVars ContentHandling = "resolve-vars"
	HandlingRaw         ContentHandling = "raw"
)

// ChildrenHandling controls which children are compiled.
type ChildrenHandling string

const (
	ChildrenCompileAll ChildrenHandling = "compile-all"
	ChildrenFirstOnly  ChildrenHandling = "first-only"
	ChildrenNone       ChildrenHandling = "none"
)

// ExtractorType discriminates ExtractorSpec.
type ExtractorType string

const (
	PropertySelector  ExtractorType = "property-selector"
	AttributeSelector ExtractorType = "attribute-selector"
	PropertyMapper    ExtractorType = "property-mapper"
)

// Output formats of a property-selector.
const (
	FormatCSS        = "css"
	FormatAttributes = "attributes"
)

// Config is a fully resolved platform: its own document deep-merged over every
// ancestor reachable through extends. Resolved configs are shared between
// callers and must be treated as read-only.
type Config struct {
	Name    string `mapstructure:"name"`
	Extends string `mapstructure:"extends"`
	// Chain lists the platform names from this one to the root ancestor.
	Chain []string `mapstructure:"-"`
	// Files lists the documents the config was merged from, in chain order.
	Files []string `mapstructure:"-"`

	Elements            map[string]ElementContract  `mapstructure:"elements"`
	Extractors          map[string]ExtractorSpec    `mapstructure:"extractors"`
	ComponentMappings   map[string]ComponentMapping `mapstructure:"componentMappings"`
	OutputFormats       []string                    `mapstructure:"outputFormats"`
	DefaultOutputFormat string                      `mapstructure:"defaultOutputFormat"`
}

// Contract returns the element contract for a type.
func (c *Config) Contract(typ string) (ElementContract, bool) {
	if c == nil {
		return ElementContract{}, false
	}
	ec, ok := c.Elements[typ]
	return ec, ok
}

// ElementContract describes how one element type compiles on a platform.
type ElementContract struct {
	ElementTag        string            `mapstructure:"elementTag"`
	ElementByProp     *ElementByProp    `mapstructure:"elementByProp"`
	ClassAttr         string            `mapstructure:"classAttr"`
	ContentSource     ContentSource     `mapstructure:"contentSource"`
	ContentPath       string            `mapstructure:"contentPath"`
	ContentHandling   ContentHandling   `mapstructure:"contentHandling"`
	ChildrenHandling  ChildrenHandling  `mapstructure:"childrenHandling"`
	AttrMap           map[string]string `mapstructure:"attrMap"`
	DefaultAttrs      map[string]string `mapstructure:"defaultAttrs"`
	ExcludeFromStyles []string          `mapstructure:"excludeFromStyles"`
}

// ElementByProp picks the tag from a property value, e.g. level=2 -> h2.
type ElementByProp struct {
	Prop    string            `mapstructure:"prop"`
	Tags    map[string]string `mapstructure:"tags"`
	Default string            `mapstructure:"default"`
}

// ExtractorSpec is a declarative extraction rule. Type selects which of the
// remaining fields apply.
type ExtractorSpec struct {
	Type ExtractorType `mapstructure:"type"`

	// property-selector and attribute-selector
	Keys []string `mapstructure:"keys"`

	// property-selector
	OutputFormat string `mapstructure:"outputFormat"`
	OutputKey    string `mapstructure:"outputKey"`

	// attribute-selector
	Sugar []SugarRule `mapstructure:"sugar"`

	// property-mapper
	Rename          map[string]string `mapstructure:"rename"`
	TargetExtractor string            `mapstructure:"targetExtractor"`
}

// SugarRule maps the value of Trigger through Table into Attribute.
type SugarRule struct {
	Trigger   string            `mapstructure:"trigger"`
	Attribute string            `mapstructure:"attribute"`
	Table     map[string]string `mapstructure:"table"`
}

// ComponentMapping renames semantic properties of a component type into
// output attributes.
type ComponentMapping struct {
	Mappings     map[string]string `mapstructure:"mappings"`
	DefaultAttrs map[string]string `mapstructure:"defaultAttrs"`
}
