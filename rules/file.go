package rules

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ruleSetDoc is the on-disk layout of a rule set. JSON documents parse as
// well since they are valid YAML, including sets exported by the API; the
// stored id, owner and timestamps are accepted and dropped.
type ruleSetDoc struct {
	ID          string     `yaml:"id"`
	Owner       string     `yaml:"owner"`
	CreatedAt   string     `yaml:"createdAt"`
	UpdatedAt   string     `yaml:"updatedAt"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Categories  []string   `yaml:"categories"`
	ResultLabel string     `yaml:"resultLabel"`
	WarningText string     `yaml:"warningText"`
	Fields      []fieldDoc `yaml:"fields"`
	Rules       []ruleWire `yaml:"rules"`
}

type fieldDoc struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Label     string    `yaml:"label"`
	Type      FieldType `yaml:"type"`
	Required  bool      `yaml:"required"`
	Options   []string  `yaml:"options"`
	SortOrder int       `yaml:"sortOrder"` // ignored, document order decides
}

// DecodeRuleSet reads a rule set document into an authoring session.
// Fields and rules are appended in document order, which becomes their
// SortOrder; any sortOrder keys in the document are ignored.
func DecodeRuleSet(r io.Reader, owner string) (*Session, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc ruleSetDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "decode rule set")
	}

	s := NewSession(owner, Metadata{
		Name:        doc.Name,
		Description: doc.Description,
		Categories:  doc.Categories,
		ResultLabel: doc.ResultLabel,
		WarningText: doc.WarningText,
	})
	for _, f := range doc.Fields {
		s.AddField(Field{
			ID:       f.ID,
			Name:     f.Name,
			Label:    f.Label,
			Type:     f.Type,
			Required: f.Required,
			Options:  f.Options,
		})
	}
	for i, w := range doc.Rules {
		rule, err := w.rule()
		if err != nil {
			return nil, eris.Wrapf(err, "rules[%d]", i)
		}
		s.AddRule(rule)
	}
	return s, nil
}

// ReadRuleSetFile opens path and decodes it with DecodeRuleSet
func ReadRuleSetFile(path, owner string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	return DecodeRuleSet(f, owner)
}
