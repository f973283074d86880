package discovery

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

// Pattern is one entry in a domain's rule list. Kind selects how Path
// is interpreted: "fixed" appends Path verbatim to the origin;
// "pathToRss" substitutes the request's first path segment into Path
// wherever "{s}" appears.
type Pattern struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// domainRules maps a registrable domain to its ordered pattern list,
// loaded once from the embedded YAML table.
var domainRules map[string][]Pattern

//go:embed domain_rules.yaml
var domainRulesYAML []byte

func init() {
	var table struct {
		Domains map[string][]Pattern `yaml:"domains"`
	}
	if err := yaml.Unmarshal(domainRulesYAML, &table); err != nil {
		panic("discovery: malformed embedded domain_rules.yaml: " + err.Error())
	}
	domainRules = table.Domains
}

// rulesForDomain returns the ordered pattern list for a registrable
// domain, or nil if the domain has no entry.
func rulesForDomain(domain string) []Pattern {
	return domainRules[domain]
}
