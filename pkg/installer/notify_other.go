//go:build !windows
// +build !windows

package installer

// notify is a no-op, only windows has somewhere to show it.
func notify(_, _, _, _ string) error {
	return nil
}
