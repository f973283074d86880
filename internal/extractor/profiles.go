package extractor

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

// SiteProfile supplies the selector set used to extract articles from a
// registrable domain's article-listing pages. Missing entries inherit
// from the "default" profile.
type SiteProfile struct {
	ArticleSelector      string   `yaml:"articleSelector"`
	TitleSelectors       []string `yaml:"titleSelectors"`
	LinkSelectors        []string `yaml:"linkSelectors"`
	DescriptionSelectors []string `yaml:"descriptionSelectors"`
	ImageSelectors       []string `yaml:"imageSelectors"`
	DateSelectors        []string `yaml:"dateSelectors"`
	RemoveSelectors      []string `yaml:"removeSelectors"`
}

//go:embed site_profiles.yaml
var siteProfilesYAML []byte

var siteProfiles map[string]SiteProfile

func init() {
	var table struct {
		Profiles map[string]SiteProfile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(siteProfilesYAML, &table); err != nil {
		panic("extractor: malformed embedded site_profiles.yaml: " + err.Error())
	}
	siteProfiles = table.Profiles
}

// profileFor returns the profile for domain, falling back to "default"
// for any field the domain's entry leaves empty.
func profileFor(domain string) SiteProfile {
	def := siteProfiles["default"]
	p, ok := siteProfiles[domain]
	if !ok {
		return def
	}
	if p.ArticleSelector == "" {
		p.ArticleSelector = def.ArticleSelector
	}
	if len(p.TitleSelectors) == 0 {
		p.TitleSelectors = def.TitleSelectors
	}
	if len(p.LinkSelectors) == 0 {
		p.LinkSelectors = def.LinkSelectors
	}
	if len(p.DescriptionSelectors) == 0 {
		p.DescriptionSelectors = def.DescriptionSelectors
	}
	if len(p.ImageSelectors) == 0 {
		p.ImageSelectors = def.ImageSelectors
	}
	if len(p.DateSelectors) == 0 {
		p.DateSelectors = def.DateSelectors
	}
	p.RemoveSelectors = append(append([]string{}, def.RemoveSelectors...), p.RemoveSelectors...)
	return p
}
