// Package execctx tracks the per-request call path and ambient state that
// the authorization engine checks permissions against: the artifact stack,
// the user identity, and the locale/timezone/currency a request is running
// under.
package execctx

// ArtifactType classifies a node on the artifact call path.
type ArtifactType string

const (
	ArtifactScreen   ArtifactType = "screen"
	ArtifactService  ArtifactType = "service"
	ArtifactEntity   ArtifactType = "entity"
	ArtifactTemplate ArtifactType = "template"
	ArtifactOther    ArtifactType = "other"
)

// Artifact is a single named node pushed onto an ArtifactStack.
type Artifact struct {
	Name string
	Type ArtifactType
}
