package protocol

import (
	"fmt"
	"strings"
	"sync"
)

var (
	methodCommandMu sync.RWMutex
	methodCommand   = map[string]Command{}
	commandMethod   = map[Command]string{}
)

// RegisterMethodCommand binds a service+method to a protocol command.
// The key format is "Service.Method".
func RegisterMethodCommand(m Method, cmd Command) {
	RegisterFullMethodCommand(m.FullName(), cmd)
}

// RegisterFullMethodCommand binds a full method name ("Service.Method") to a protocol command.
func RegisterFullMethodCommand(fullMethod string, cmd Command) {
	fullMethod = strings.TrimSpace(fullMethod)
	if fullMethod == "" {
		panic("RegisterFullMethodCommand: empty fullMethod")
	}
	if _, _, err := splitFullMethod(fullMethod); err != nil {
		panic("RegisterFullMethodCommand: " + err.Error())
	}

	methodCommandMu.Lock()
	if existing, ok := commandMethod[cmd]; ok && existing != fullMethod {
		methodCommandMu.Unlock()
		panic(fmt.Sprintf("command %s already bound to %q (attempted %q)", cmd, existing, fullMethod))
	}
	methodCommand[fullMethod] = cmd
	commandMethod[cmd] = fullMethod
	methodCommandMu.Unlock()
}

// MapMethodToCommand resolves a registered "Service.Method" name.
// Only the commands this protocol defines can be bound, so there is no fallback.
func MapMethodToCommand(fullMethod string) (Command, error) {
	service, method, err := splitFullMethod(strings.TrimSpace(fullMethod))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnknownCommand, err)
	}
	normalized := service + "." + method

	methodCommandMu.RLock()
	cmd, ok := methodCommand[normalized]
	methodCommandMu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: no command mapping for %q", ErrUnknownCommand, normalized)
	}
	return cmd, nil
}

// MethodForCommand is the reverse lookup of MapMethodToCommand.
func MethodForCommand(cmd Command) (string, bool) {
	methodCommandMu.RLock()
	defer methodCommandMu.RUnlock()
	m, ok := commandMethod[cmd]
	return m, ok
}

func splitFullMethod(fullMethod string) (service string, method string, err error) {
	idx := strings.LastIndexByte(fullMethod, '.')
	if idx <= 0 || idx >= len(fullMethod)-1 {
		return "", "", fmt.Errorf("invalid method format: %s", fullMethod)
	}
	service = strings.TrimSpace(fullMethod[:idx])
	method = strings.TrimSpace(fullMethod[idx+1:])
	if service == "" || method == "" {
		return "", "", fmt.Errorf("invalid method format: %s", fullMethod)
	}
	return service, method, nil
}
