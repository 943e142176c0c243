package overwatch

import "github.com/jxo-me/ddnsd/core/service"

// Manager is based type to manage running services
type Manager interface {
	Add(service service.IService)
	Remove(string)
	Services() []service.IService
	// Shutdown stops every service and waits until their run loops return.
	Shutdown()
}
