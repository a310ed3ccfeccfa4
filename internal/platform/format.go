package platform

import (
	"fmt"
	"slices"
)

// OutputFormat picks the output format for a stack. A requested format must be
// declared by at least one platform when any platform declares formats. With
// nothing requested the last declared default wins.
func OutputFormat(configs []*Config, requested string) (string, error) {
	var declared []string
	def := ""
	for _, c := range configs {
		for _, f := range c.OutputFormats {
			if !slices.Contains(declared, f) {
				declared = append(declared, f)
			}
		}
		if c.DefaultOutputFormat != "" {
			def = c.DefaultOutputFormat
		}
	}

	format := requested
	if format == "" {
		format = def
	}
	if format == "" {
		if len(declared) > 0 {
			return declared[0], nil
		}
		return "", fmt.Errorf("no output format requested and none declared by the stack")
	}
	if len(declared) > 0 && !slices.Contains(declared, format) {
		return "", fmt.Errorf("output format %q is not supported by the stack (supported: %v)", format, declared)
	}
	return format, nil
}
