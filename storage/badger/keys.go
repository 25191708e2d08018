package badger

import (
	"fmt"
	"strings"

	"github.com/poiesic/docket/storage"
)

// keySeparator splits the container name from the item key.
// NUL sorts before every other byte, so one container's keys never interleave
// with a container whose name extends it.
const keySeparator = "\x00"

// validateContainerName rejects names that cannot be mapped to a key prefix.
func validateContainerName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: container name", storage.ErrEmptyKey)
	}
	if strings.Contains(name, keySeparator) {
		return fmt.Errorf("%w: %q contains NUL", storage.ErrInvalidContainerName, name)
	}
	return nil
}

// makeContainerPrefix generates the prefix shared by every key in a container.
// Format: name\x00
func makeContainerPrefix(name string) []byte {
	return []byte(name + keySeparator)
}

// makeItemKey generates a key for an item in a container.
// Format: name\x00key
func makeItemKey(prefix []byte, key string) []byte {
	buf := make([]byte, len(prefix)+len(key))
	offset := copy(buf, prefix)
	copy(buf[offset:], key)
	return buf
}

// itemKeyFromKey strips the container prefix from a backend key.
func itemKeyFromKey(prefix, key []byte) string {
	return string(key[len(prefix):])
}
