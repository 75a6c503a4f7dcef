// Package trialschema validates trial records against a JSON Schema and decodes them into
// trialsink.Trial values. Records are read from a JSON array or from JSON Lines.
package trialschema

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/trialsink"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidTrial is returned for a record that does not match the trial schema.
var ErrInvalidTrial = errors.New("invalid trial record")

const schemaURL = "https://trialsink.local/trial.schema.json"

//go:embed trial.schema.json
var schemaJSON []byte

// Validator checks trial records against the trial schema.
type Validator struct {
	schema *jsonschema.Schema
}

// New compiles the trial schema.
func New() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse trial schema")
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to add trial schema")
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compile trial schema")
	}

	return &Validator{schema: schema}, nil
}

// Decode validates one raw JSON record and decodes it.
func (v *Validator) Decode(raw []byte) (*trialsink.Trial, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidTrial, "malformed JSON", goerr.V("cause", err.Error()))
	}
	if err := v.schema.Validate(inst); err != nil {
		return nil, goerr.Wrap(ErrInvalidTrial, "schema violation", goerr.V("cause", err.Error()))
	}

	var trial trialsink.Trial
	if err := json.Unmarshal(raw, &trial); err != nil {
		return nil, goerr.Wrap(ErrInvalidTrial, "cannot decode trial", goerr.V("cause", err.Error()))
	}
	return &trial, nil
}

// Load reads every record from r, which holds either a JSON array of trials or one trial per
// line. The first invalid record aborts loading.
func (v *Validator) Load(r io.Reader) ([]trialsink.Trial, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read trials")
	}

	var records []json.RawMessage
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, goerr.Wrap(ErrInvalidTrial, "malformed JSON array", goerr.V("cause", err.Error()))
		}
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(trimmed))
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			records = append(records, json.RawMessage(bytes.Clone(line)))
		}
		if err := scanner.Err(); err != nil {
			return nil, goerr.Wrap(err, "failed to scan trial lines")
		}
	}

	trials := make([]trialsink.Trial, 0, len(records))
	for i, raw := range records {
		trial, err := v.Decode(raw)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load trial", goerr.V("index", i))
		}
		trials = append(trials, *trial)
	}

	return trials, nil
}

// LoadFile reads trials from the file at path.
func (v *Validator) LoadFile(path string) ([]trialsink.Trial, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open trials file", goerr.V("path", path))
	}
	defer func() { _ = f.Close() }()

	trials, err := v.Load(f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load trials file", goerr.V("path", path))
	}
	return trials, nil
}
