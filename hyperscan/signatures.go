package hyperscan

import (
	"fmt"

	hs "github.com/flier/gohs/hyperscan"
	"gopkg.in/yaml.v3"
)

// signatureFile is the YAML document the Hyperscan engine compiles, for example:
//
//	rules:
//	  - id: evil_pattern
//	    tags: [malware, trojan]
//	    patterns: ['evil\d+', 'EVIL']
type signatureFile struct {
	Rules []*signature `yaml:"rules"`
}

// signature is a rule that matches when any of its patterns matches.
type signature struct {
	Name     string   `yaml:"id"`
	Labels   []string `yaml:"tags"`
	Patterns []string `yaml:"patterns"`
	Caseless bool     `yaml:"caseless"`

	line int
}

func (s *signature) Identifier() string { return s.Name }
func (s *signature) Tags() []string     { return s.Labels }

func (s *signature) UnmarshalYAML(value *yaml.Node) error {
	type plain signature
	if err := value.Decode((*plain)(s)); err != nil {
		return err
	}
	s.line = value.Line
	return nil
}

func (s *signature) flags() hs.CompileFlag {
	// SingleMatch makes Hyperscan only report the first match of each pattern, which is all a tag needs.
	f := hs.SingleMatch | hs.DotAll
	if s.Caseless {
		f |= hs.Caseless
	}
	return f
}

// diagnostic is a problem found while compiling a signature file.
type diagnostic struct {
	line int
	msg  string
}

func parseSignatures(src []byte) (sigs []*signature, diags []diagnostic) {
	var f signatureFile
	if err := yaml.Unmarshal(src, &f); err != nil {
		diags = append(diags, diagnostic{line: yamlErrorLine(err), msg: err.Error()})
		return
	}

	seen := make(map[string]int)
	for _, s := range f.Rules {
		switch {
		case s == nil:
			continue
		case s.Name == "":
			diags = append(diags, diagnostic{line: s.line, msg: "rule has no id"})
			continue
		case len(s.Patterns) == 0:
			diags = append(diags, diagnostic{line: s.line, msg: fmt.Sprintf("rule %v has no patterns", s.Name)})
			continue
		}

		if prev, ok := seen[s.Name]; ok {
			diags = append(diags, diagnostic{line: s.line, msg: fmt.Sprintf("duplicate rule id %v, first defined on line %d", s.Name, prev)})
			continue
		}
		seen[s.Name] = s.line

		sigs = append(sigs, s)
	}

	return
}

func yamlErrorLine(err error) int {
	var line int
	if te, ok := err.(*yaml.TypeError); ok && len(te.Errors) > 0 {
		fmt.Sscanf(te.Errors[0], "line %d:", &line)
		return line
	}
	fmt.Sscanf(err.Error(), "yaml: line %d:", &line)
	return line
}
