package runner

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"text/template"

	"github.com/google/uuid"

	"lessonload/internal/catalog"
)

// NameData is what a username template is executed against.
type NameData struct {
	Category string
	Index    int
	RunID    string
	UUID     string
}

var nameFuncs = template.FuncMap{
	"randomInt": func(min, max int) int {
		if max <= min {
			return min
		}
		return rand.Intn(max-min) + min
	},
	"uuid": func() string { return uuid.NewString() },
	"pad": func(width, n int) string {
		return fmt.Sprintf("%0*d", width, n)
	},
	"upper": strings.ToUpper,
}

// Preprocess turns the short placeholders {{category}}, {{index}}, {{runID}}
// and {{uuid}} into field references.
func Preprocess(input string) string {
	return strings.NewReplacer(
		"{{category}}", "{{.Category}}",
		"{{index}}", "{{.Index}}",
		"{{runID}}", "{{.RunID}}",
		"{{uuid}}", "{{.UUID}}",
	).Replace(input)
}

// Namer renders usernames for the identity pool.
type Namer struct {
	tmpl  *template.Template
	runID string
}

// NewNamer parses text as a username template.
func NewNamer(text, runID string) (*Namer, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("username template is empty")
	}
	t, err := template.New("username").Funcs(nameFuncs).Option("missingkey=error").Parse(Preprocess(text))
	if err != nil {
		return nil, fmt.Errorf("parse username template: %w", err)
	}
	return &Namer{tmpl: t, runID: runID}, nil
}

// Name implements identity.NameFunc.
func (n *Namer) Name(cat catalog.Category, index int) (string, error) {
	var buf bytes.Buffer
	err := n.tmpl.Execute(&buf, NameData{
		Category: cat.String(),
		Index:    index,
		RunID:    n.runID,
		UUID:     uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("render username: %w", err)
	}
	name := strings.TrimSpace(buf.String())
	if name == "" {
		return "", fmt.Errorf("username template rendered an empty name")
	}
	return name, nil
}
