package templating

// TemplateConfig holds all configuration options for the templating engine.
type TemplateConfig struct {
	// TemplateDir is an optional directory of *.tmpl.html and *.part.html files
	// parsed on top of the embedded defaults. A file with the same name as a
	// default replaces it.
	TemplateDir string `json:"template_dir" yaml:"template_dir"`

	// Lang is written to the lang attribute of the default page template.
	Lang string `json:"lang" yaml:"lang"`

	// SiteName is appended to every page title when set.
	SiteName string `json:"site_name" yaml:"site_name"`
}

// DefaultConfig returns a TemplateConfig that renders with the embedded
// templates only.
func DefaultConfig() *TemplateConfig {
	return &TemplateConfig{
		TemplateDir: "",
		Lang:        "en",
		SiteName:    "",
	}
}
