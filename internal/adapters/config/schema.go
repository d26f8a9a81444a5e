package config

// configFile mirrors the top-level TOML sections. Unknown top-level keys
// are dropped by the decoder; no warning is reported for them.
type configFile struct {
	Tools    map[string]any     `toml:"tools"`
	Env      map[string]any     `toml:"env"`
	Settings map[string]any     `toml:"settings"`
	Tasks    map[string]taskDTO `toml:"tasks"`
	Alias    map[string]any     `toml:"alias"`

	TaskConfig map[string]any `toml:"task_config"`
	Hooks      map[string]any `toml:"hooks"`
	Vars       map[string]any `toml:"vars"`
}

// taskDTO is one task table. Run, Depends, and DependsPost accept a string
// or an array of strings.
type taskDTO struct {
	Run         any               `toml:"run"`
	Depends     any               `toml:"depends"`
	DependsPost any               `toml:"depends_post"`
	Env         map[string]string `toml:"env"`
	Dir         string            `toml:"dir"`
	Sources     []string          `toml:"sources"`
	Outputs     []string          `toml:"outputs"`
	Description string            `toml:"description"`
	Hide        bool              `toml:"hide"`
	Raw         bool              `toml:"raw"`
}

// toolTableDTO is the long form of a tools entry.
type toolTableDTO struct {
	Version string            `toml:"version"`
	Options map[string]string `toml:"options"`
}
