package distask

import "github.com/xraph/distask/id"

// TaskID is the identity of a task instance.
type TaskID = id.TaskID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
