package session

const (
	// NamespaceTypeLabel/NamespaceTypeSession mark a session namespace so the
	// Reaper Loop can select all of them with one label selector (spec §4.7).
	NamespaceTypeLabel   = "NAMESPACE_TYPE"
	NamespaceTypeSession = "NAMESPACE_SESSION"

	OwnerLabel   = "owner"
	PoolLabel    = "app.playground/pool"
	PodName      = "session"
	ServiceName  = "service"
	PVCName      = "repo"

	TemplateAnnotation         = "playground.substrate.io/template"
	SessionDurationAnnotation  = "playground.substrate.io/session_duration"
	RepositorySourceAnnotation = "playground.substrate.io/repository_source"

	WorkspaceEnvVar = "SUBSTRATE_PLAYGROUND_WORKSPACE"

	webPortName = "web"
	webPort     = int32(3000)
)

// Namespace returns the dedicated namespace a session is materialized in
// (spec §3/§6: "session-<id>").
func Namespace(id string) string {
	return "session-" + id
}

// ExternalServiceName returns the control-namespace ExternalName service
// that fronts a session (spec §4.5 step 5: "service-<id>").
func ExternalServiceName(id string) string {
	return "service-" + id
}
