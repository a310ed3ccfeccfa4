package platform

import (
	"github.com/mitchellh/copystructure"
)

// DeepMerge returns base overlaid with over. Where both sides hold a map the
// maps are merged key by key; for every other pair the value from over wins.
// Neither input is modified and the result shares no memory with them.
func DeepMerge(base, over map[string]any) map[string]any {
	out := copyMap(base)
	for k, ov := range over {
		bv, ok := out[k]
		bm, bIsMap := bv.(map[string]any)
		om, oIsMap := ov.(map[string]any)
		if ok && bIsMap && oIsMap {
			out[k] = DeepMerge(bm, om)
			continue
		}
		out[k] = copyValue(ov)
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return copyValue(m).(map[string]any)
}

// copyValue panics only on values that cannot come out of a document decoder.
func copyValue(v any) any {
	if v == nil {
		return nil
	}
	return copystructure.Must(copystructure.Copy(v))
}
