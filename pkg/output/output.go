package output

import "github.com/ericogr/envnode/pkg/sensor"

// Output receives one record per cycle.
type Output interface {
	Publish(sensor.Record) error
	Close() error
}

// helper constructors are in subpackages
