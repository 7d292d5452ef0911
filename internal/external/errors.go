package external

import "errors"

// ErrQuotaExceeded signals that an upstream provider's rate or usage limit
// has been reached. Callers must treat it differently from an ordinary miss:
// continuing to fetch only burns more quota.
var ErrQuotaExceeded = errors.New("provider quota exceeded")
