//go:build !((linux || darwin || freebsd) && cgo)

package hotload

func openPlugin(string) (LookupFunc, error) {
	return nil, ErrUnsupported
}
