package types

// Service is the contract every action service implements
type Service interface {
	Name() string
	Methods() Signatures
	Method(name string) (Executable, error)
}

// Proxy decorates a base action service
type Proxy func(base Service) Service
