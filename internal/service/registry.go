package service

import (
	"sync"

	"github.com/gogogo1024/filegate"
	"github.com/gogogo1024/filegate/protocol"
	"github.com/gogogo1024/filegate/transfer"
)

// ServiceName is the kitex service the file commands are exposed under.
const ServiceName = "FileService"

var (
	MetadataMethod = protocol.NewMethod(ServiceName, "Metadata")
	ContentsMethod = protocol.NewMethod(ServiceName, "Contents")

	registerMethodsOnce sync.Once
)

// RegisterMethods fills the method→command table used by the kitex codec.
// It is safe to call more than once.
func RegisterMethods() {
	registerMethodsOnce.Do(func() {
		protocol.RegisterMethodCommand(MetadataMethod, protocol.CmdRequestMetadata)
		protocol.RegisterMethodCommand(ContentsMethod, protocol.CmdRequestFile)
	})
}

// RegisterHandlers wires the file commands to svc.
//
// This keeps main.go thin and lets the storage backend change without
// touching the protocol/transport stack.
func RegisterHandlers(r *filegate.Router, svc *transfer.Service) {
	RegisterMethods()
	r.Register(protocol.CmdRequestMetadata, filegate.PayloadHandler(svc.Metadata))
	r.Register(protocol.CmdRequestFile, filegate.PayloadHandler(svc.Contents))
}
