//go:build !linux

package assets

func exchange(a, b string) error {
	return errExchangeUnsupported
}
