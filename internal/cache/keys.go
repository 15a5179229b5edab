package cache

import "fmt"

// Key prefixes for the config-map-backed resources the Resource Store
// fronts with this cache.
const (
	PrefixRole          = "role"
	PrefixRoleList      = "role:list"
	PrefixRepository    = "repository"
	PrefixRepositoryList = "repository:list"
)

func RoleKey(id string) string {
	return fmt.Sprintf("%s:%s", PrefixRole, id)
}

func RoleListKey() string {
	return PrefixRoleList
}

func RepositoryKey(id string) string {
	return fmt.Sprintf("%s:%s", PrefixRepository, id)
}

func RepositoryListKey() string {
	return PrefixRepositoryList
}
