package dashboard

import (
	"os"

	"github.com/tidwall/gjson"
)

// Dashboard contains the bare minimum information necessary to
// report on a cleaned Grafana dashboard written to disk.
type Dashboard struct {
	Title    string
	UID      string
	Panels   int
	Filename string
}

const unknownTitle = "Unknown"

// NewFromBytes summarizes a raw dashboard document. A missing title is
// reported as "Unknown" and a missing or non-array panels key as zero panels.
// Keys repeated in the document resolve to their last occurrence.
func NewFromBytes(filename string, b []byte) (Dashboard, error) {
	if !gjson.ValidBytes(b) {
		return Dashboard{}, &FormatError{Source: filename, Reason: "not valid JSON"}
	}
	res := gjson.ParseBytes(b)
	if !res.IsObject() {
		return Dashboard{}, &FormatError{Source: filename, Reason: "top level is not an object"}
	}

	d := Dashboard{
		Filename: filename,
		Title:    unknownTitle,
	}
	res.ForEach(func(key, val gjson.Result) bool {
		switch key.String() {
		case keyTitle:
			d.Title = val.String()
		case keyUID:
			d.UID = val.String()
		case "panels":
			d.Panels = 0
			if val.IsArray() {
				d.Panels = len(val.Array())
			}
		}
		return true
	})
	return d, nil
}

// NewFromFile summarizes the dashboard stored at path.
func NewFromFile(path string) (Dashboard, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Dashboard{}, &IOError{Op: "read", Path: path, Err: err}
	}
	return NewFromBytes(path, b)
}
