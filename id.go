package livequeue

import "github.com/omnikit/livequeue/id"

// ID is the primary identifier type for all livequeue entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
