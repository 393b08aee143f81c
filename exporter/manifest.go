package exporter

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestKey is the default key the run manifest is written under.
const ManifestKey = "manifest.yaml"

// Manifest summarizes one export run.
type Manifest struct {
	RunID       string `yaml:"run_id" json:"run_id"`
	Source      string `yaml:"source" json:"source"`
	Output      string `yaml:"output" json:"output"`
	ContentType string `yaml:"content_type" json:"content_type"`
	// IdentifierField is the field left out of every record.
	IdentifierField string             `yaml:"identifier_field" json:"identifier_field"`
	StartedAt       time.Time          `yaml:"started_at" json:"started_at"`
	FinishedAt      time.Time          `yaml:"finished_at,omitempty" json:"finished_at,omitempty"`
	Collections     []CollectionReport `yaml:"collections" json:"collections"`
}

// CollectionReport is what was exported from one collection.
type CollectionReport struct {
	Database   string `yaml:"database" json:"database"`
	Collection string `yaml:"collection" json:"collection"`
	Documents  int64  `yaml:"documents" json:"documents"`
	// Repaired counts number fields rewritten to text by the repair pass.
	Repaired int64 `yaml:"repaired" json:"repaired"`
	// SourceBytes is the summed size of the source documents.
	SourceBytes int64    `yaml:"source_bytes" json:"source_bytes"`
	Keys        []string `yaml:"keys" json:"keys"`
	Locations   []string `yaml:"locations,omitempty" json:"locations,omitempty"`
}

func (r *CollectionReport) addKey(key, location string) {
	for _, k := range r.Keys {
		if k == key {
			return
		}
	}
	r.Keys = append(r.Keys, key)
	if location != "" {
		r.Locations = append(r.Locations, location)
	}
}

// Documents is the total number of documents exported.
func (m *Manifest) Documents() int64 {
	var n int64
	for _, c := range m.Collections {
		n += c.Documents
	}
	return n
}

// Repaired is the total number of repaired fields.
func (m *Manifest) Repaired() int64 {
	var n int64
	for _, c := range m.Collections {
		n += c.Repaired
	}
	return n
}

// MarshalManifest renders m as YAML with two-space indentation.
func MarshalManifest(m *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return buf.Bytes(), nil
}

func ParseManifest(b []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
