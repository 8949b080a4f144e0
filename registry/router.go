// ABOUTME: RouterProvider lets a node-type package contribute its own HTTP
// ABOUTME: sub-router (e.g. a tool-provider's OAuth callback), aggregated
// ABOUTME: the Go-native way in place of the Python original's dynamic
// ABOUTME: per-plugin router module import.
package registry

import "github.com/go-chi/chi/v5"

// RouterProvider is implemented by a NodeHandler that also needs to expose
// HTTP routes of its own.
type RouterProvider interface {
	Router() chi.Router
}

var routerProviders = map[string]func() chi.Router{}

// RegisterRouter records a sibling router constructor under the same node
// type string passed to Register.
func RegisterRouter(typ string, ctor func() chi.Router) {
	routerProviders[typ] = ctor
}

// MountAll mounts every registered sibling router onto parent at
// "/plugins/{type}".
func MountAll(parent chi.Router) {
	for typ, ctor := range routerProviders {
		parent.Mount("/plugins/"+typ, ctor())
	}
}
