// Package models holds the wire and domain types of the playground control
// plane data model (spec §3): User, Role, Repository, RepositoryVersion,
// Pool, Session, and the shared runtime/port descriptors each resource
// operation passes between the REST boundary and the components in
// internal/{store,authz,repository,session,ingress}.
package models

// Permission is one element of a Role's permission set. Custom(name) permissions
// are represented as Permission{Kind: PermCustom, Name: name}.
type PermissionKind string

const (
	PermRead   PermissionKind = "Read"
	PermCreate PermissionKind = "Create"
	PermUpdate PermissionKind = "Update"
	PermDelete PermissionKind = "Delete"
	PermCustom PermissionKind = "Custom"
)

// Named Custom permissions the Session Orchestrator consults (spec §4.3 step 4).
const (
	CustomizeSessionName         = "CustomizeSessionName"
	CustomizeSessionDuration     = "CustomizeSessionDuration"
	CustomizeSessionPoolAffinity = "CustomizeSessionPoolAffinity"
)

type Permission struct {
	Kind PermissionKind `json:"kind"`
	// Name is set only when Kind == PermCustom.
	Name string `json:"name,omitempty"`
}

func (p Permission) String() string {
	if p.Kind == PermCustom {
		return "Custom(" + p.Name + ")"
	}
	return string(p.Kind)
}

// ResourceType names the resource class a Permission or error applies to.
type ResourceType string

const (
	ResourceUser              ResourceType = "User"
	ResourceRole              ResourceType = "Role"
	ResourceRepository        ResourceType = "Repository"
	ResourceRepositoryVersion ResourceType = "RepositoryVersion"
	ResourcePool              ResourceType = "Pool"
	ResourceSession           ResourceType = "Session"
)

// PermissionTuple is the (ResourceType, Permission) pair a Role's permission
// set is composed of (spec §3 Role).
type PermissionTuple struct {
	Resource   ResourceType `json:"resourceType"`
	Permission Permission   `json:"permission"`
}

// User is persisted as a Kubernetes Namespace (spec §3/§6).
type User struct {
	ID          string            `json:"id"`
	Role        string            `json:"role"`
	Preferences map[string]string `json:"preferences"`

	// PoolAffinity is not part of spec §3's literal User shape but is
	// consulted by admission (spec §4.5 step 4); it is carried on the
	// Caller, read from the bearer token's claims, rather than stored on
	// User itself, so User carries no extra fields beyond preferences.
}

// UserConfiguration is the PUT /users/{id} request body.
type UserConfiguration struct {
	Role        string            `json:"role"`
	Preferences map[string]string `json:"preferences"`
}

// UserUpdateConfiguration is the PATCH /users/{id} request body.
type UserUpdateConfiguration struct {
	Role        string            `json:"role"`
	Preferences map[string]string `json:"preferences"`
}

// Role is persisted in the control-namespace config map `playground-roles`.
type Role struct {
	ID          string            `json:"id"`
	Permissions []PermissionTuple `json:"permissions"`
}

// Has reports whether the role grants the given (resource, permission) tuple.
func (r Role) Has(resource ResourceType, perm Permission) bool {
	for _, t := range r.Permissions {
		if t.Resource != resource {
			continue
		}
		if t.Permission.Kind == PermCustom {
			if perm.Kind == PermCustom && t.Permission.Name == perm.Name {
				return true
			}
			continue
		}
		if t.Permission.Kind == perm.Kind {
			return true
		}
	}
	return false
}

// Repository is persisted in the control-namespace config map
// `playground-repositories`. Tags is a SUPPLEMENT carried from the original
// source's Repository shape; it is never required or interpreted.
type Repository struct {
	ID   string            `json:"id"`
	URL  string             `json:"url"`
	Tags map[string]string `json:"tags,omitempty"`
}

// RepositoryConfiguration is the PUT /repositories/{id} request body.
type RepositoryConfiguration struct {
	URL  string            `json:"url"`
	Tags map[string]string `json:"tags,omitempty"`
}

// NameValue is a single environment variable entry in a RuntimeConfiguration.
type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Port is one exposed port of a runtime configuration (spec §3).
type Port struct {
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Path     string `json:"path"`
	Port     int32  `json:"port"`
	Target   int32  `json:"target"`
}

// RuntimeConfiguration describes a session's container runtime: optional base
// image override, environment, and exposed ports. The same shape is used for
// a Template's pre-declared runtime and for the decoded /runtime.yaml a
// builder job produces once a RepositoryVersion reaches Ready.
type RuntimeConfiguration struct {
	BaseImage string      `json:"baseImage,omitempty" yaml:"baseImage,omitempty"`
	Env       []NameValue `json:"env,omitempty" yaml:"env,omitempty"`
	Ports     []Port      `json:"ports,omitempty" yaml:"ports,omitempty"`
}

// RepositoryVersionStateTag discriminates the RepositoryVersionState variants.
type RepositoryVersionStateTag string

const (
	RepositoryVersionCloning  RepositoryVersionStateTag = "Cloning"
	RepositoryVersionBuilding RepositoryVersionStateTag = "Building"
	RepositoryVersionReady    RepositoryVersionStateTag = "Ready"
	RepositoryVersionFailed   RepositoryVersionStateTag = "Failed"
)

// RepositoryVersionState is the tagged union from spec §3/§9; dispatch is by
// Tag, never by type assertion or inheritance.
type RepositoryVersionState struct {
	Tag      RepositoryVersionStateTag `json:"tag"`
	Progress int                       `json:"progress,omitempty"`
	Runtime  *RuntimeConfiguration     `json:"runtime,omitempty"`
	Reason   string                    `json:"reason,omitempty"`
	Message  string                    `json:"message,omitempty"`
}

// RepositoryVersion is keyed by (RepositoryID, VersionID); backed by the
// shared workspace-template PVC and the builder Job of the same name suffix.
type RepositoryVersion struct {
	RepositoryID string                 `json:"repositoryId"`
	VersionID    string                 `json:"versionId"`
	Reference    string                 `json:"reference"`
	State        RepositoryVersionState `json:"state"`
}

// Node is one cluster node belonging to a Pool.
type Node struct {
	Hostname string `json:"hostname"`
}

// Pool is derived at read time from Nodes labeled app.playground/pool=<id>;
// never persisted by the control plane (spec §3).
type Pool struct {
	ID                 string `json:"id"`
	InstanceType        string `json:"instanceType,omitempty"`
	Nodes               []Node `json:"nodes"`
	MaxSessionsPerNode  int    `json:"maxSessionsPerNode"`
}

// RepositorySource identifies the RepositoryVersion a Session is built from.
type RepositorySource struct {
	RepositoryID string `json:"repositoryId"`
	VersionID    string `json:"repositoryVersionId"`
}

// SessionStateTag discriminates the SessionState variants (spec §3).
type SessionStateTag string

const (
	SessionDeploying SessionStateTag = "Deploying"
	SessionRunning   SessionStateTag = "Running"
	SessionPaused    SessionStateTag = "Paused"
	SessionFailed    SessionStateTag = "Failed"
)

// SessionState is the tagged union spec §3/§9 describes; dispatch by Tag.
type SessionState struct {
	Tag       SessionStateTag       `json:"tag"`
	StartTime *UnixSeconds          `json:"startTime,omitempty"`
	Node      string                `json:"node,omitempty"`
	Runtime   *RuntimeConfiguration `json:"runtime,omitempty"`
	Reason    string                `json:"reason,omitempty"`
	Message   string                `json:"message,omitempty"`
}

// Session is the core resource (spec §3); its State is always derived from
// observed Kubernetes Pod state, never stored in-process (spec §4.5).
type Session struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	MaxDuration      Minutes          `json:"maxDuration"`
	RepositorySource RepositorySource `json:"repositorySource"`
	State            SessionState     `json:"state"`
}

// SessionConfiguration is the PUT /sessions/{id} request body.
type SessionConfiguration struct {
	RepositorySource RepositorySource `json:"repositorySource"`
	Duration         *Minutes         `json:"duration,omitempty"`
	PoolAffinity     *string          `json:"poolAffinity,omitempty"`
}

// SessionUpdateConfiguration is the PATCH /sessions/{id} request body; only
// Duration is settable (spec §4.5 Update semantics).
type SessionUpdateConfiguration struct {
	Duration Minutes `json:"duration"`
}

// SessionExecutionConfiguration is the PUT /sessions/{id}/execution request body.
type SessionExecutionConfiguration struct {
	Argv []string `json:"argv"`
}

// SessionExecution is the result of an exec call (spec §4.5): stdout fully
// drained before returning, no stdin, no pseudo-TTY.
type SessionExecution struct {
	Stdout string `json:"stdout"`
}

// Caller is the identity the HTTP boundary resolves from a bearer token
// before delegating into Authorization, the Session Orchestrator, or the
// Repository Pipeline. The identity provider (out of scope per spec §1) is
// responsible for everything upstream of producing the bearer token; every
// field here, including RoleID and PoolAffinity, is read from the token's
// claims, and no User record is loaded to fill it in.
type Caller struct {
	ID           string
	RoleID       string
	Admin        bool
	PoolAffinity string
	// Custom(name) permissions are not carried on Caller; the REST handlers
	// check them through Authorizer.Ensure.
}
