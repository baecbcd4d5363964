package uptrends

import "github.com/jpalmerr/uptrends/internal/registry"

// ErrInvalidConfig is wrapped by every configuration error returned from
// [New], [NewOperation], [NewOperationGrid] and [ParseSchedule].
var ErrInvalidConfig = registry.ErrInvalidConfig
