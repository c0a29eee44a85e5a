package logging

import (
	"fmt"

	"github.com/Graylog2/go-gelf/gelf"
)

// EnableGraylog dials a GELF UDP endpoint and forwards every record there
// as JSON. Takes effect on the next Setup call.
func (m *SlogManager) EnableGraylog(address string) error {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return fmt.Errorf("error connecting to graylog at %s: %w", address, err)
	}
	m.graylog = w
	return nil
}
