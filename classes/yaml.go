package classes

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type yamlField struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	View    bool   `yaml:"view,omitempty"`
	Tag     int    `yaml:"tag,omitempty"`
	Default any    `yaml:"default,omitempty"`
}

type yamlClass struct {
	Name    string      `yaml:"name"`
	Extends string      `yaml:"extends,omitempty"`
	Fields  []yamlField `yaml:"fields"`
}

type yamlSchema struct {
	Classes []yamlClass `yaml:"classes"`
}

// LoadYAML reads class definitions into r. Class names may be used
// as field types before their definition; a parent class must be
// listed before the classes extending it.
func LoadYAML(r *Registry, in io.Reader) ([]*Class, error) {
	var schema yamlSchema
	if err := yaml.NewDecoder(in).Decode(&schema); err != nil && err != io.EOF {
		return nil, err
	}
	declared := make([]*Class, 0, len(schema.Classes))
	for _, yc := range schema.Classes {
		var parent *Class
		if yc.Extends != "" {
			if parent = r.ByName(yc.Extends); parent == nil {
				return nil, errors.Wrapf(ErrUnknownClass, "%s extends %s", yc.Name, yc.Extends)
			}
		}
		c, err := r.declare(yc.Name, parent)
		if err != nil {
			return nil, err
		}
		declared = append(declared, c)
	}
	for i, yc := range schema.Classes {
		fields := make(Fields, 0, len(yc.Fields))
		for _, yf := range yc.Fields {
			t, err := ParseType(yf.Type, r.ByName)
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s", yc.Name, yf.Name)
			}
			f := Field{Name: yf.Name, Type: t, Tag: ViewTag(yf.Tag), Default: yf.Default}
			if yf.View {
				f.Tag = DefaultTag
			}
			fields = append(fields, f)
		}
		if err := declared[i].setFields(fields); err != nil {
			return nil, err
		}
	}
	return declared, nil
}
