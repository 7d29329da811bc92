package repo

import "errors"

// ErrUnsupported is returned by backends that cannot honor a collection
// operation, such as Drop against a relational table.
var ErrUnsupported = errors.New("unsupported operation")
