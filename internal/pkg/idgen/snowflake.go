// Package idgen produces the time-ordered string IDs used for all absentia
// entities (users, leave requests, absences, conversions).
package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	generator *snowflake.Node
	initOnce  sync.Once
)

// Initialize configures the generator with the node ID distinguishing this
// server instance. Only the first call takes effect.
func Initialize(nodeID int64) error {
	var err error
	initOnce.Do(func() {
		generator, err = snowflake.NewNode(nodeID)
	})
	return err
}

// GenerateID returns a new unique ID, sortable by creation time. Falls back
// to node 1 when Initialize was never called.
func GenerateID() string {
	if generator == nil {
		_ = Initialize(1)
	}
	return generator.Generate().String()
}
