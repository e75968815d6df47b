package runtimecfg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/oshokin/launchpad/internal/domain/endpoint"
)

const (
	// Filename is the name of the document inside the workspace.
	Filename = "config.json"

	// fileMode restricts the document, it carries the account identifier.
	fileMode = 0o600
)

// Top-level keys owned by Document.
const (
	keyAutosave = "autosave"
	keyCPU      = "cpu"
	keyPools    = "pools"
)

var (
	errNoPools       = errors.New("runtime configuration needs at least one endpoint")
	errExtraNotAnObj = errors.New("extra configuration must be a JSON object")
)

// Flags are the execution flags written into the document.
type Flags struct {
	// Autosave lets the launched program rewrite its configuration.
	Autosave bool
	// CPUEnabled enables the CPU backend.
	CPUEnabled bool
	// HugePages requests large memory pages.
	HugePages bool
}

// CPU is the nested execution-flags section.
type CPU struct {
	Enabled   bool `json:"enabled"`
	HugePages bool `json:"huge-pages"`
}

// Pool is one endpoint entry.
type Pool struct {
	URL       string `json:"url"`
	User      string `json:"user"`
	Pass      string `json:"pass"`
	Keepalive bool   `json:"keepalive"`
}

// Document is the runtime configuration.
type Document struct {
	Autosave bool   `json:"autosave"`
	CPU      CPU    `json:"cpu"`
	Pools    []Pool `json:"pools"`

	// Extra holds pass-through top-level keys.
	Extra map[string]json.RawMessage `json:"-"`
}

// Build creates a document for set, in set order.
func Build(set endpoint.Set, flags Flags, extra map[string]json.RawMessage) (*Document, error) {
	if len(set) == 0 {
		return nil, errNoPools
	}

	pools := make([]Pool, 0, len(set))
	for _, ep := range set {
		pools = append(pools, Pool{
			URL:       ep.URL(),
			User:      ep.Account,
			Pass:      ep.SessionLabel,
			Keepalive: ep.Keepalive,
		})
	}

	return &Document{
		Autosave: flags.Autosave,
		CPU: CPU{
			Enabled:   flags.CPUEnabled,
			HugePages: flags.HugePages,
		},
		Pools: pools,
		Extra: extra,
	}, nil
}

// MarshalJSON writes the owned keys over any extra keys.
func (d Document) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(d.Extra)+3)
	for key, value := range d.Extra {
		fields[key] = value
	}

	fields[keyAutosave] = d.Autosave
	fields[keyCPU] = d.CPU
	fields[keyPools] = d.Pools

	return json.Marshal(fields)
}

// UnmarshalJSON reads owned keys into fields and keeps the rest in Extra.
func (d *Document) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	type owned struct {
		Autosave bool   `json:"autosave"`
		CPU      CPU    `json:"cpu"`
		Pools    []Pool `json:"pools"`
	}

	var o owned
	if err := json.Unmarshal(data, &o); err != nil {
		return err
	}

	d.Autosave = o.Autosave
	d.CPU = o.CPU
	d.Pools = o.Pools

	delete(fields, keyAutosave)
	delete(fields, keyCPU)
	delete(fields, keyPools)

	d.Extra = nil
	if len(fields) > 0 {
		d.Extra = fields
	}

	return nil
}

// Write persists doc as indented JSON at path.
func Write(path string, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode runtime configuration: %w", err)
	}

	var indented bytes.Buffer
	if err = json.Indent(&indented, data, "", "  "); err != nil {
		return fmt.Errorf("indent runtime configuration: %w", err)
	}

	indented.WriteByte('\n')

	if err = os.WriteFile(filepath.Clean(path), indented.Bytes(), fileMode); err != nil {
		return fmt.Errorf("write runtime configuration: %w", err)
	}

	return nil
}

// Read loads a document written by Write.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read runtime configuration: %w", err)
	}

	var doc Document
	if err = json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode runtime configuration: %w", err)
	}

	return &doc, nil
}

// LoadExtra reads a JSONC object whose keys are passed through verbatim.
// An empty path yields no extras.
func LoadExtra(path string) (map[string]json.RawMessage, error) {
	if path == "" {
		return nil, nil //nolint:nilnil // No file means no extra keys.
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read extra configuration: %w", err)
	}

	return ParseExtra(data)
}

// ParseExtra strips JSONC comments and trailing commas and decodes a JSON object.
func ParseExtra(data []byte) (map[string]json.RawMessage, error) {
	stripped := bytes.TrimSpace(jsonc.ToJSON(data))
	if len(stripped) == 0 || stripped[0] != '{' {
		return nil, errExtraNotAnObj
	}

	var extra map[string]json.RawMessage
	if err := json.Unmarshal(stripped, &extra); err != nil {
		return nil, fmt.Errorf("decode extra configuration: %w", err)
	}

	return extra, nil
}
