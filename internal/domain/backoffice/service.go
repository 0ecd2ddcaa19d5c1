package backoffice

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// AppVersion invalidates cached client state when it changes.
const AppVersion = "1.0.1"

// ModuleGridVersion resets per-role module usage counters when the module
// grid layout changes.
const ModuleGridVersion = "2.0.0"

// authKeys survive a cache clear so the user stays signed in.
var authKeys = map[string]bool{
	"auth_token": true,
	"user_data":  true,
}

// ModuleUsage is one module's launch counter on a role's dashboard grid.
type ModuleUsage struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// ClientState manages the per-client UI state that the browser front end
// keeps for version gating, cache busting, and module usage ranking.
type ClientState struct {
	store Store
}

func NewClientState(store Store) *ClientState {
	return &ClientState{store: store}
}

func (c *ClientState) Get(ctx context.Context, key string) (string, bool, error) {
	return c.store.Get(ctx, key)
}

func (c *ClientState) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	return c.store.Set(ctx, key, value)
}

// CheckVersion compares the stored app_version against the running one,
// storing the current version either way. It reports true when the client
// must refresh.
func (c *ClientState) CheckVersion(ctx context.Context) (bool, error) {
	stored, _, err := c.store.Get(ctx, "app_version")
	if err != nil {
		return false, err
	}
	if stored == AppVersion {
		return false, nil
	}
	if err := c.store.Set(ctx, "app_version", AppVersion); err != nil {
		return false, err
	}
	return true, nil
}

func usageKey(role string) string {
	return role + "_module_usage"
}

// ModuleUsageFor returns a role's usage counters, most used first. A module
// grid version change resets the counters.
func (c *ClientState) ModuleUsageFor(ctx context.Context, role string) ([]ModuleUsage, error) {
	if err := c.checkGridVersion(ctx, role); err != nil {
		return nil, err
	}
	raw, found, err := c.store.Get(ctx, usageKey(role))
	if err != nil || !found {
		return []ModuleUsage{}, err
	}
	var usage []ModuleUsage
	if err := json.Unmarshal([]byte(raw), &usage); err != nil {
		// Corrupt usage data resets rather than wedging the dashboard.
		return []ModuleUsage{}, nil
	}
	sort.SliceStable(usage, func(i, j int) bool { return usage[i].Count > usage[j].Count })
	return usage, nil
}

// RecordModuleUse bumps one module's counter for a role.
func (c *ClientState) RecordModuleUse(ctx context.Context, role, moduleID string) ([]ModuleUsage, error) {
	if role == "" || moduleID == "" {
		return nil, fmt.Errorf("role and module id are required")
	}
	usage, err := c.ModuleUsageFor(ctx, role)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range usage {
		if usage[i].ID == moduleID {
			usage[i].Count++
			found = true
			break
		}
	}
	if !found {
		usage = append(usage, ModuleUsage{ID: moduleID, Count: 1})
	}
	sort.SliceStable(usage, func(i, j int) bool { return usage[i].Count > usage[j].Count })
	payload, err := json.Marshal(usage)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, usageKey(role), string(payload)); err != nil {
		return nil, err
	}
	return usage, nil
}

func (c *ClientState) checkGridVersion(ctx context.Context, role string) error {
	stored, _, err := c.store.Get(ctx, "module_grid_version")
	if err != nil {
		return err
	}
	if stored == ModuleGridVersion {
		return nil
	}
	if err := c.store.Set(ctx, "module_grid_version", ModuleGridVersion); err != nil {
		return err
	}
	return c.store.Delete(ctx, usageKey(role))
}

// ClearCache deletes every stored key except the auth ones, then stamps the
// current app version.
func (c *ClientState) ClearCache(ctx context.Context) error {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return err
	}
	var doomed []string
	for _, k := range keys {
		if !authKeys[k] {
			doomed = append(doomed, k)
		}
	}
	if err := c.store.Delete(ctx, doomed...); err != nil {
		return err
	}
	return c.store.Set(ctx, "app_version", AppVersion)
}

// Service flag statuses.
const (
	ServiceRunning = "running"
	ServiceStopped = "stopped"
)

// ServiceFlag is one toggleable service on the control screen.
type ServiceFlag struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// ServiceRegistry tracks named service flags in memory.
type ServiceRegistry struct {
	mu       sync.RWMutex
	order    []string
	services map[string]*ServiceFlag
}

func NewServiceRegistry(names ...string) *ServiceRegistry {
	r := &ServiceRegistry{services: make(map[string]*ServiceFlag)}
	now := time.Now()
	for _, name := range names {
		r.services[name] = &ServiceFlag{Name: name, Status: ServiceRunning, UpdatedAt: now}
		r.order = append(r.order, name)
	}
	return r
}

func (r *ServiceRegistry) Status() []ServiceFlag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ServiceFlag, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.services[name])
	}
	return out
}

// Control starts, stops, or restarts a named service flag. Restart leaves
// the flag running with a fresh timestamp.
func (r *ServiceRegistry) Control(name, action, actor string) (*ServiceFlag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[name]
	if !ok {
		return nil, fmt.Errorf("unknown service: %s", name)
	}
	switch action {
	case "start", "restart":
		svc.Status = ServiceRunning
	case "stop":
		svc.Status = ServiceStopped
	default:
		return nil, fmt.Errorf("invalid action: %s", action)
	}
	svc.UpdatedAt = time.Now()
	svc.UpdatedBy = actor
	cp := *svc
	return &cp, nil
}
