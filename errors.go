package kvengine

import "fmt"

// Errors returned by Open. The public PUT/GET/DEL surface itself never
// returns an error (see spec.md §7): failures there collapse to a boolean
// or an empty value, exactly as specified.
var (
	ErrOpenStorageDir = addPrefix("failed to open or lock storage directory")
)

func addPrefix(errStr string) error {
	return fmt.Errorf("kvengine err: %s", errStr)
}
