package protocol

// Method names a kitex service method bound to a protocol command.
type Method struct {
	Service string
	Name    string
}

func NewMethod(service, name string) Method {
	return Method{
		Service: service,
		Name:    name,
	}
}

// FullName returns the "Service.Method" form used by the command table.
func (m Method) FullName() string {
	return m.Service + "." + m.Name
}
