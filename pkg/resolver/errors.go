package resolver

import "errors"

var errNotVisible = errors.New("row not visible after conditional insert")
