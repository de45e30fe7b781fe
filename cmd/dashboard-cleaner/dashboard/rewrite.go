package dashboard

import (
	"slices"

	"github.com/tidwall/gjson"
)

// Top level keys of a dashboard export that the cleaner strips or pins.
const (
	keyInputs   = "__inputs"
	keyElements = "__elements"
	keyRequires = "__requires"

	keyID    = "id"
	keyUID   = "uid"
	keyTitle = "title"
)

var pinnedKeys = []string{keyID, keyUID, keyTitle}

// rewriteDashboard rebuilds the top level object in one pass. Every copy of
// a template key is dropped, every __requires array loses its datasource
// entries, and each pinned key is written once: at its first position if the
// export has it, appended otherwise. Everything else is normalized.
func (n *normalizer) rewriteDashboard(doc gjson.Result) ([]byte, error) {
	buf := []byte{'{'}
	written := make(map[string]bool, len(pinnedKeys))

	doc.ForEach(func(key, val gjson.Result) bool {
		name := key.String()
		switch {
		case name == keyInputs || name == keyElements:
			n.stripped++
		case slices.Contains(pinnedKeys, name):
			if written[name] {
				break
			}
			written[name] = true
			buf = appendKey(buf, key.Raw)
			buf = append(buf, n.pinned.Get(name).Raw...)
		case name == keyRequires && val.IsArray():
			buf = appendKey(buf, key.Raw)
			buf = n.appendRequires(buf, val)
		case name == datasourceKey:
			buf = appendKey(buf, key.Raw)
			buf = n.appendDatasource(buf, val)
		default:
			buf = appendKey(buf, n.replacePlaceholder(key.Raw))
			buf = n.appendValue(buf, val)
		}
		return true
	})

	for _, name := range pinnedKeys {
		if !written[name] {
			buf = appendKey(buf, `"`+name+`"`)
			buf = append(buf, n.pinned.Get(name).Raw...)
		}
	}
	buf = append(buf, '}')

	if n.err != nil {
		return nil, n.err
	}
	return buf, nil
}

// appendRequires drops the datasource requirements the target instance
// already satisfies, keeping the rest in order.
func (n *normalizer) appendRequires(buf []byte, requires gjson.Result) []byte {
	buf = append(buf, '[')
	first := true
	requires.ForEach(func(_, req gjson.Result) bool {
		if req.Get("type").String() == "datasource" {
			n.dropped++
			return true
		}
		if !first {
			buf = append(buf, ',')
		}
		first = false
		buf = n.appendValue(buf, req)
		return true
	})
	return append(buf, ']')
}

func appendKey(buf []byte, rawKey string) []byte {
	if buf[len(buf)-1] != '{' {
		buf = append(buf, ',')
	}
	buf = append(buf, rawKey...)
	return append(buf, ':')
}
