// Package dashboard cleans Grafana dashboard exports for import into the
// cluster's Grafana instance.
package dashboard

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Options holds the fixed values a cleaned dashboard is rewritten to.
type Options struct {
	UID   string
	Title string

	// DatasourceType and DatasourceUID make up the canonical datasource
	// reference every Prometheus reference is rewritten to.
	DatasourceType string
	DatasourceUID  string

	// Placeholder is the import-time template token and PlaceholderValue
	// what it is replaced with wherever it appears.
	Placeholder      string
	PlaceholderValue string

	// LegacyNames are the string datasource references that resolve to
	// the canonical reference.
	LegacyNames []string
}

func DefaultOptions() Options {
	return Options{
		UID:              "node-exporter-full",
		Title:            "Node Exporter Full - Pi Cluster",
		DatasourceType:   "prometheus",
		DatasourceUID:    "prometheus",
		Placeholder:      "${DS_PROMETHEUS}",
		PlaceholderValue: "prometheus",
		LegacyNames:      []string{"prometheus", "Prometheus"},
	}
}

var indentOptions = &pretty.Options{
	Width:    0,
	Prefix:   "",
	Indent:   "  ",
	SortKeys: false,
}

// Cleaner strips template metadata from dashboard exports, pins their
// identity and normalizes their datasource references.
type Cleaner struct {
	log  logrus.FieldLogger
	opts Options
}

func NewCleaner(log logrus.FieldLogger, opts Options) *Cleaner {
	return &Cleaner{
		log:  log.WithField("component", "dashboard-cleaner"),
		opts: opts,
	}
}

// Clean reads the dashboard at inputPath, cleans it and writes it to
// outputPath with a two space indent. If the write fails part way the output
// file may be left incomplete.
func (c *Cleaner) Clean(inputPath, outputPath string) (Dashboard, error) {
	in, err := os.ReadFile(inputPath)
	if err != nil {
		return Dashboard{}, &IOError{Op: "read", Path: inputPath, Err: err}
	}

	out, err := c.cleanDocument(inputPath, in)
	if err != nil {
		return Dashboard{}, err
	}

	out = pretty.PrettyOptions(out, indentOptions)

	//nolint:gosec // Dashboards are meant to be readable by Grafana provisioning
	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		return Dashboard{}, &IOError{Op: "write", Path: outputPath, Err: err}
	}

	d, err := NewFromFile(outputPath)
	if err != nil {
		return Dashboard{}, err
	}

	c.log.WithFields(logrus.Fields{
		"path":   outputPath,
		"panels": d.Panels,
	}).Debug("wrote cleaned dashboard")

	return d, nil
}

// CleanBytes cleans an in-memory dashboard and returns it as compact JSON.
func (c *Cleaner) CleanBytes(data []byte) ([]byte, error) {
	return c.cleanDocument("<input>", data)
}

func (c *Cleaner) cleanDocument(source string, b []byte) ([]byte, error) {
	if !gjson.ValidBytes(b) {
		return nil, &FormatError{Source: source, Reason: "not valid JSON"}
	}
	if !gjson.ParseBytes(b).IsObject() {
		return nil, &FormatError{Source: source, Reason: "top level is not an object"}
	}

	n, err := newNormalizer(c.opts)
	if err != nil {
		return nil, &FormatError{Source: source, Reason: "building pinned values", Err: err}
	}

	out, err := n.rewriteDashboard(gjson.ParseBytes(b))
	if err != nil {
		return nil, &FormatError{Source: source, Reason: "rewriting dashboard", Err: err}
	}

	if !gjson.ValidBytes(out) {
		return nil, &FormatError{Source: source, Reason: "normalized document is not valid JSON"}
	}

	c.log.WithFields(logrus.Fields{
		"source":       source,
		"stripped":     n.stripped,
		"dropped":      n.dropped,
		"placeholders": n.placeholders,
		"rewritten":    n.rewritten,
	}).Debug("rewrote dashboard")

	return out, nil
}
