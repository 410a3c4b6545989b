package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"
)

const (
	RegistryFileName = "dynproxy_services.json"
	DiscoveryTimeout = 5 * time.Second

	// RegistryEnv overrides the directory file path
	RegistryEnv = "DYNPROXY_REGISTRY"
)

var ErrServiceNotFound = errors.New("service not found")

// ServiceInfo holds service registration data
type ServiceInfo struct {
	Endpoint  string    `json:"endpoint"`
	Port      int       `json:"port"`
	PID       int       `json:"pid"`
	StartTime time.Time `json:"start_time"`
}

// Directory is a JSON-file service directory shared by the processes of one
// host. Servers register their endpoint under a service ID and clients
// discover it by that ID.
type Directory struct {
	mu   sync.Mutex
	path string
}

// NewDirectory opens the directory stored at path. An empty path selects
// DefaultPath.
func NewDirectory(path string) *Directory {
	if path == "" {
		path = DefaultPath()
	}
	return &Directory{path: path}
}

// DefaultPath returns $DYNPROXY_REGISTRY, or a file in the temp directory
func DefaultPath() string {
	if p := os.Getenv(RegistryEnv); p != "" {
		return p
	}
	// Use temp directory for cross-platform compatibility
	return filepath.Join(os.TempDir(), RegistryFileName)
}

// Path returns the directory file path
func (d *Directory) Path() string {
	return d.path
}

// load reads the directory from disk; callers hold d.mu
func (d *Directory) load() (map[string]ServiceInfo, error) {
	services := make(map[string]ServiceInfo)

	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return services, nil // File doesn't exist yet
		}
		return nil, err
	}
	if len(data) == 0 {
		return services, nil
	}

	if err := json.Unmarshal(data, &services); err != nil {
		return nil, fmt.Errorf("parse %s: %w", d.path, err)
	}
	return services, nil
}

// save writes the directory to disk; callers hold d.mu
func (d *Directory) save(services map[string]ServiceInfo) error {
	data, err := json.MarshalIndent(services, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(d.path, data, 0644)
}

// Register records serviceID at endpoint for the current process
func (d *Directory) Register(serviceID, endpoint string, port int) error {
	if serviceID == "" {
		return fmt.Errorf("register: empty service ID")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	services, err := d.load()
	if err != nil {
		return err
	}
	services[serviceID] = ServiceInfo{
		Endpoint:  endpoint,
		Port:      port,
		PID:       os.Getpid(),
		StartTime: time.Now(),
	}
	return d.save(services)
}

// Unregister removes a service from the directory
func (d *Directory) Unregister(serviceID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	services, err := d.load()
	if err != nil {
		return err
	}
	if _, ok := services[serviceID]; !ok {
		return nil
	}
	delete(services, serviceID)
	return d.save(services)
}

// Lookup returns the entry for serviceID if it exists and its process is
// alive. Entries of dead processes are removed.
func (d *Directory) Lookup(serviceID string) (ServiceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	services, err := d.load()
	if err != nil {
		return ServiceInfo{}, err
	}

	info, exists := services[serviceID]
	if !exists {
		return ServiceInfo{}, fmt.Errorf("%q: %w", serviceID, ErrServiceNotFound)
	}
	if !isProcessAlive(info.PID) {
		// Process dead, clean up
		delete(services, serviceID)
		_ = d.save(services)
		return ServiceInfo{}, fmt.Errorf("%q: %w", serviceID, ErrServiceNotFound)
	}
	return info, nil
}

// Discover polls the directory until serviceID appears, ctx is done or
// timeout elapses. A zero timeout means DiscoveryTimeout.
func (d *Directory) Discover(ctx context.Context, serviceID string, timeout time.Duration) (ServiceInfo, error) {
	if timeout == 0 {
		timeout = DiscoveryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		info, err := d.Lookup(serviceID)
		if err == nil {
			return info, nil
		}

		select {
		case <-ctx.Done():
			return ServiceInfo{}, fmt.Errorf("discover %q: %w", serviceID, ErrServiceNotFound)
		case <-ticker.C:
		}
	}
}

// List returns all registered services whose process is alive. Entries of
// dead processes are removed.
func (d *Directory) List() (map[string]ServiceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	services, err := d.load()
	if err != nil {
		return nil, err
	}

	pruned := false
	for id, info := range services {
		if !isProcessAlive(info.PID) {
			delete(services, id)
			pruned = true
		}
	}
	if pruned {
		_ = d.save(services)
	}
	return services, nil
}

// Clear removes all services from the directory
func (d *Directory) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.save(make(map[string]ServiceInfo))
}

// isProcessAlive checks if a process with the given PID is running
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 probes for existence.
	// Windows has no signal 0, so an open handle is enough there.
	if runtime.GOOS == "windows" {
		return true
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
