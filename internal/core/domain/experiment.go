package domain

// Experiment describes one containerized experiment as declared in the
// registry configuration. The name doubles as the source directory name
// and as the basis for the image tag and container name.
type Experiment struct {
	Name          string `json:"name" yaml:"name"`
	Reference     string `json:"reference" yaml:"reference"`
	SourceCode    string `json:"sourceCode" yaml:"source_code"`
	Entrypoint    string `json:"entrypoint" yaml:"entrypoint"`
	ArtifactsPath string `json:"artifactsPath" yaml:"artifacts_path"`

	// Memory is an optional human-readable limit ("512m", "2g") applied
	// to the container. Parsed into MemoryBytes at config load time.
	Memory      string `json:"-" yaml:"memory"`
	MemoryBytes int64  `json:"-" yaml:"-"`
}
