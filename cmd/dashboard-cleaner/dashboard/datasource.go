package dashboard

import (
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const datasourceKey = "datasource"

// normalizer rewrites a dashboard document into compact JSON, replacing the
// import placeholder everywhere and turning every Prometheus datasource
// reference into the canonical {"type": ..., "uid": ...} object. Keys keep
// their order and untouched values are copied verbatim.
type normalizer struct {
	opts      Options
	canonical []byte
	pinned    gjson.Result

	placeholders int
	rewritten    int
	stripped     int
	dropped      int
	err          error
}

func newNormalizer(opts Options) (*normalizer, error) {
	canonical, err := sjson.SetBytes([]byte(`{}`), "type", opts.DatasourceType)
	if err != nil {
		return nil, err
	}
	canonical, err = sjson.SetBytes(canonical, "uid", opts.DatasourceUID)
	if err != nil {
		return nil, err
	}

	pinned, err := sjson.SetRawBytes([]byte(`{}`), keyID, []byte("null"))
	if err != nil {
		return nil, err
	}
	if pinned, err = sjson.SetBytes(pinned, keyUID, opts.UID); err != nil {
		return nil, err
	}
	if pinned, err = sjson.SetBytes(pinned, keyTitle, opts.Title); err != nil {
		return nil, err
	}

	return &normalizer{
		opts:      opts,
		canonical: canonical,
		pinned:    gjson.ParseBytes(pinned),
	}, nil
}

func (n *normalizer) normalize(doc gjson.Result) ([]byte, error) {
	out := n.appendValue(nil, doc)
	if n.err != nil {
		return nil, n.err
	}
	return out, nil
}

func (n *normalizer) appendValue(buf []byte, v gjson.Result) []byte {
	switch {
	case v.IsObject():
		return n.appendObject(buf, v)
	case v.IsArray():
		buf = append(buf, '[')
		first := true
		v.ForEach(func(_, elem gjson.Result) bool {
			if !first {
				buf = append(buf, ',')
			}
			first = false
			buf = n.appendValue(buf, elem)
			return true
		})
		return append(buf, ']')
	case v.Type == gjson.String:
		return append(buf, n.replacePlaceholder(v.Raw)...)
	default:
		return append(buf, v.Raw...)
	}
}

func (n *normalizer) appendObject(buf []byte, v gjson.Result) []byte {
	buf = append(buf, '{')
	first := true
	v.ForEach(func(key, val gjson.Result) bool {
		if !first {
			buf = append(buf, ',')
		}
		first = false
		buf = append(buf, n.replacePlaceholder(key.Raw)...)
		buf = append(buf, ':')
		if key.String() == datasourceKey {
			buf = n.appendDatasource(buf, val)
		} else {
			buf = n.appendValue(buf, val)
		}
		return true
	})
	return append(buf, '}')
}

// appendDatasource handles the value of a "datasource" key. Legacy string
// references and Prometheus objects without a uid become the canonical
// object; a Prometheus object that already names a uid is kept as is.
func (n *normalizer) appendDatasource(buf []byte, v gjson.Result) []byte {
	switch {
	case v.Type == gjson.String:
		raw := n.replacePlaceholder(v.Raw)
		if slices.Contains(n.opts.LegacyNames, gjson.Parse(raw).String()) {
			n.rewritten++
			return append(buf, n.canonical...)
		}
		return append(buf, raw...)
	case v.IsObject():
		obj := n.appendObject(nil, v)
		ref := gjson.ParseBytes(obj)
		if ref.Get("type").String() != n.opts.DatasourceType || ref.Get("uid").Exists() {
			return append(buf, obj...)
		}
		withUID, err := sjson.SetBytes(obj, "uid", n.opts.DatasourceUID)
		if err != nil {
			n.err = err
			return append(buf, obj...)
		}
		n.rewritten++
		return append(buf, withUID...)
	default:
		return n.appendValue(buf, v)
	}
}

// replacePlaceholder works on raw JSON string tokens. Tokens holding escapes
// are decoded first and re-encoded only when they contain the placeholder.
func (n *normalizer) replacePlaceholder(raw string) string {
	if n.opts.Placeholder == "" {
		return raw
	}
	if strings.Contains(raw, `\`) {
		s := gjson.Parse(raw).String()
		c := strings.Count(s, n.opts.Placeholder)
		if c == 0 {
			return raw
		}
		quoted, err := sjson.SetBytes([]byte(`{}`), "s", strings.ReplaceAll(s, n.opts.Placeholder, n.opts.PlaceholderValue))
		if err != nil {
			n.err = err
			return raw
		}
		n.placeholders += c
		return gjson.GetBytes(quoted, "s").Raw
	}
	if c := strings.Count(raw, n.opts.Placeholder); c > 0 {
		n.placeholders += c
		return strings.ReplaceAll(raw, n.opts.Placeholder, n.opts.PlaceholderValue)
	}
	return raw
}
