// Package prompts assembles the text sent to the inference endpoint: the
// participant and district data blocks and the instruction templates that
// wrap them.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"text/template"
)

//go:embed templates/*.txt
var defaultFS embed.FS

const (
	participantFile = "templates/participant.txt"
	districtFile    = "templates/district.txt"
)

// Templates holds the parsed instruction templates.
type Templates struct {
	participant *template.Template
	district    *template.Template
}

// ParticipantData is the template data for participant prompts.
type ParticipantData struct {
	Participant string
	Block       string
}

// DistrictData is the template data for district prompts.
type DistrictData struct {
	District string
	Block    string
}

// Default parses the embedded templates.
func Default() (*Templates, error) {
	return Load(defaultFS)
}

// Load parses templates/participant.txt and templates/district.txt from fsys.
func Load(fsys fs.FS) (*Templates, error) {
	participant, err := parse(fsys, participantFile)
	if err != nil {
		return nil, err
	}
	district, err := parse(fsys, districtFile)
	if err != nil {
		return nil, err
	}
	return &Templates{participant: participant, district: district}, nil
}

// LoadDir parses templates from an override directory, falling back to the
// embedded copy for any file the directory lacks.
func LoadDir(dir string) (*Templates, error) {
	if dir == "" {
		return Default()
	}
	return Load(overlayFS{primary: os.DirFS(dir), fallback: defaultFS})
}

// overlayFS serves files by base name from primary, then by full name from
// fallback when primary lacks them.
type overlayFS struct {
	primary  fs.FS
	fallback fs.FS
}

func (o overlayFS) Open(name string) (fs.File, error) {
	f, err := o.primary.Open(path.Base(name))
	if errors.Is(err, fs.ErrNotExist) {
		return o.fallback.Open(name)
	}
	return f, err
}

func parse(fsys fs.FS, name string) (*template.Template, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read prompt template %s: %w", name, err)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

// Participant renders the participant summarization prompt.
func (t *Templates) Participant(data ParticipantData) (string, error) {
	return execute(t.participant, data)
}

// District renders the district analysis prompt.
func (t *Templates) District(data DistrictData) (string, error) {
	return execute(t.district, data)
}

func execute(tmpl *template.Template, data any) (string, error) {
	if tmpl == nil {
		return "", errors.New("prompt template not loaded")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
