package domain

// TaskDef is one task definition from the effective config. Names are
// globally unique within the effective config.
type TaskDef struct {
	Name        string
	Run         []string
	Depends     []string
	DependsPost []string
	Env         map[string]string
	Dir         string
	Sources     []string
	Outputs     []string
	Description string
	Hide        bool
	Raw         bool
}
