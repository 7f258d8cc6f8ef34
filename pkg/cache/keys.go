package cache

// Keyer generates cache keys for the different cacheable artifacts.
// Using an interface allows prefixed keyers for shared backends where
// multiple projects point at the same Redis server.
type Keyer interface {
	// StepKey generates a key for a flow step result.
	StepKey(design, step string, opts StepKeyOpts) string

	// TechKey generates a key for a parsed technology database.
	TechKey(lefHash string) string
}

// StepKeyOpts captures everything that makes a step result unique.
// Two runs with identical options may share a cached result.
type StepKeyOpts struct {
	// Tool and Task identify the driver binding.
	Tool string `json:"tool"`
	Task string `json:"task"`

	// ScriptHash is the hash of the generated tool script. Any change to
	// the configuration values feeding the script changes this hash.
	ScriptHash string `json:"script_hash"`

	// InputHashes are the hashes of the step's input files, sorted by name.
	InputHashes []string `json:"input_hashes"`

	// ToolVersion pins the result to the external tool release.
	ToolVersion string `json:"tool_version"`
}

// DefaultKeyer is the standard key generator.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// StepKey generates a key for a flow step result.
func (k *DefaultKeyer) StepKey(design, step string, opts StepKeyOpts) string {
	return hashKey("step", design, step, opts)
}

// TechKey generates a key for a parsed technology database.
func (k *DefaultKeyer) TechKey(lefHash string) string {
	return "tech:" + lefHash
}

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// Useful when several projects share one Redis-backed step cache.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "proj:zerosoc:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// StepKey generates a prefixed key for a flow step result.
func (k *ScopedKeyer) StepKey(design, step string, opts StepKeyOpts) string {
	return k.prefix + k.inner.StepKey(design, step, opts)
}

// TechKey generates a prefixed key for a parsed technology database.
func (k *ScopedKeyer) TechKey(lefHash string) string {
	return k.prefix + k.inner.TechKey(lefHash)
}
