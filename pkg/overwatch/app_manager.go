package overwatch

import (
	"sort"
	"sync"

	"github.com/jxo-me/ddnsd/core/service"
)

// ServiceCallback is a service notify it's run loop finished.
// the first parameter is the service name,
// the second parameter is the service hash,
// the third parameter is an optional error if the service failed
type ServiceCallback func(string, string, error)

// AppManager is the default implementation of over-watched service management
type AppManager struct {
	mu       sync.Mutex
	services map[string]service.IService
	callback ServiceCallback
	wg       sync.WaitGroup
}

// NewAppManager creates a new over-watched manager
func NewAppManager(callback ServiceCallback) Manager {
	return &AppManager{services: make(map[string]service.IService), callback: callback}
}

// Add takes in a new service to manage.
// It stops the service if it already exists in the manager and is running
// It then starts the newly added service
func (m *AppManager) Add(svc service.IService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// check for existing service
	if current, ok := m.services[svc.String()]; ok {
		if current.Hash() == svc.Hash() {
			return // the exact same service, no changes, so move along
		}
		_ = current.Stop() // shutdown the old one since a new one is starting
	}
	m.services[svc.String()] = svc

	m.wg.Add(1)
	go m.serviceRun(svc)
}

// Remove shutdowns the service by name and removes it from its current management list
func (m *AppManager) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.services[name]; ok {
		_ = current.Stop()
	}
	delete(m.services, name)
}

// Services returns all the current Services being managed, ordered by name
func (m *AppManager) Services() []service.IService {
	m.mu.Lock()
	defer m.mu.Unlock()
	values := make([]service.IService, 0, len(m.services))
	for _, value := range m.services {
		values = append(values, value)
	}
	sort.Slice(values, func(i, j int) bool { return values[i].String() < values[j].String() })
	return values
}

// Shutdown stops every managed service and waits for their run loops.
func (m *AppManager) Shutdown() {
	m.mu.Lock()
	for name, svc := range m.services {
		_ = svc.Stop()
		delete(m.services, name)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *AppManager) serviceRun(svc service.IService) {
	defer m.wg.Done()
	err := svc.Start()
	if m.callback != nil {
		m.callback(svc.String(), svc.Hash(), err)
	}
}
