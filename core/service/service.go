package service

// IService is a long-running unit supervised by the overwatch manager.
// Start blocks until the service stops; Stop makes Start return.
type IService interface {
	String() string
	// Hash identifies the configuration the service runs with. A service
	// added under the same name with a different hash replaces the old one.
	Hash() string
	Start() error
	Stop() error
}
