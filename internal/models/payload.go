package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Payload is the client-side mirror of a Job: a bundle of input files staged
// for local execution by the runner.
//
// Input holds the submitted files in memory between submit-time and
// prepare-time only; it is never persisted in the payloads table.
type Payload struct {
	ID        int64     `json:"id"`
	Status    Status    `json:"status"`
	Loc       string    `json:"loc"`
	CreatedAt time.Time `json:"created_at"`

	Input map[string][]byte `json:"-"`
}

// NewPayload creates an empty unpersisted payload.
func NewPayload() *Payload {
	return &Payload{
		Status: StatusUnknown,
		Input:  make(map[string][]byte),
	}
}

// AddInput stages one submitted file. The name must already be sanitized.
func (p *Payload) AddInput(name string, data []byte) {
	if p.Input == nil {
		p.Input = make(map[string][]byte)
	}
	p.Input[name] = data
}

// Prepare materializes the payload directory under dataPath, named by the
// decimal id, and writes all staged inputs into it. Must be called after the
// payload has been persisted (the id is part of the path).
func (p *Payload) Prepare(dataPath string) error {
	if p.ID == 0 {
		return fmt.Errorf("prepare: payload not persisted")
	}
	p.Loc = filepath.Join(dataPath, strconv.FormatInt(p.ID, 10))
	if err := os.MkdirAll(p.Loc, 0o755); err != nil {
		return fmt.Errorf("prepare: create %s: %w", p.Loc, err)
	}
	for name, data := range p.Input {
		if err := os.WriteFile(filepath.Join(p.Loc, name), data, 0o644); err != nil {
			return fmt.Errorf("prepare: write %s: %w", name, err)
		}
	}
	return nil
}

// RunScript returns the path of the execution script the runner expects.
func (p *Payload) RunScript() string {
	return filepath.Join(p.Loc, "run.sh")
}

// OutputZip returns the path of the cached output bundle.
func (p *Payload) OutputZip() string {
	return filepath.Join(p.Loc, "output.zip")
}
